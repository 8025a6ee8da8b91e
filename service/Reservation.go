package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"raffle-service/metrics"
	"raffle-service/model"
	"raffle-service/store"
)

type TicketEvents interface {
	TicketReserved(ctx context.Context, event model.TicketReservedEvent) error
}

type ReservationRequest struct {
	Numbers     []string          `json:"numbers" validate:"required,min=1,dive,required"`
	Participant model.Participant `json:"participant"`
}

// CancelledReason is recorded on tickets released by their participant before paying.
const CancelledReason = "cancelled by participant"

type CancelRequest struct {
	TicketIds        []string `json:"ticketIds" validate:"required,min=1,dive,required"`
	ParticipantEmail string   `json:"participantEmail" validate:"required,email"`
}

type ReservationService struct {
	store  store.Store
	window WindowPolicy
	events TicketEvents
	now    func() time.Time
}

func NewReservationService(s store.Store, window WindowPolicy, events TicketEvents) *ReservationService {
	return &ReservationService{store: s, window: window, events: events, now: time.Now}
}

// Reserve creates one pending ticket per number, all or none.
func (s *ReservationService) Reserve(ctx context.Context, lotteryId string, req ReservationRequest) ([]model.Ticket, error) {
	tickets, err := s.reserve(ctx, lotteryId, req)
	metrics.ReservationsTotal.WithLabelValues(reservationResult(err)).Inc()
	return tickets, err
}

func (s *ReservationService) reserve(ctx context.Context, lotteryId string, req ReservationRequest) ([]model.Ticket, error) {
	req.Participant.Name = strings.TrimSpace(req.Participant.Name)
	req.Participant.Email = strings.TrimSpace(req.Participant.Email)
	req.Participant.Phone = strings.TrimSpace(req.Participant.Phone)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	numbers := make([]string, 0, len(req.Numbers))
	seen := make(map[string]bool, len(req.Numbers))
	for _, raw := range req.Numbers {
		n, err := NormalizeNumber(raw)
		if err != nil {
			return nil, err
		}
		if seen[n] {
			return nil, &ValidationError{Field: "numbers", Message: "number " + n + " is repeated"}
		}
		seen[n] = true
		numbers = append(numbers, n)
	}

	lottery, err := s.store.GetLottery(ctx, lotteryId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLotteryNotFound
		}
		return nil, &StoreError{Op: "get lottery", Err: err}
	}
	now := s.now()
	if err := s.window.Evaluate(lottery, now).Err(); err != nil {
		return nil, err
	}

	for _, n := range numbers {
		_, err := s.store.FindHeldTicket(ctx, lotteryId, n)
		if err == nil {
			return nil, &NumberTakenError{Number: n}
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, &StoreError{Op: "check number", Err: err}
		}
	}

	batch := make([]*model.Ticket, len(numbers))
	for i, n := range numbers {
		batch[i] = &model.Ticket{
			Id:             uuid.NewString(),
			LotteryId:      lotteryId,
			SelectedNumber: n,
			Participant:    req.Participant,
			PaymentStatus:  model.PaymentPending,
			// keeps creation order stable inside the batch
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		}
	}
	if err := s.store.InsertTickets(ctx, batch); err != nil {
		var dup *store.DuplicateNumberError
		if errors.As(err, &dup) {
			return nil, &NumberTakenError{Number: dup.Number}
		}
		return nil, &StoreError{Op: "insert tickets", Err: err}
	}

	tickets := make([]model.Ticket, len(batch))
	ids := make([]string, len(batch))
	for i, t := range batch {
		tickets[i] = *t
		ids[i] = t.Id
	}
	log.Info().Str("Service", "reservation").Str("lottery", lotteryId).Strs("numbers", numbers).Msg("numbers reserved")
	if req.Participant.UserId != "" && s.events != nil {
		s.publish(model.TicketReservedEvent{UserId: req.Participant.UserId, LotteryId: lotteryId, TicketIds: ids, Numbers: numbers, At: now})
	}
	return tickets, nil
}

// Cancel releases pending tickets of one participant so the numbers can be chosen again. The tickets are kept
// as rejected with CancelledReason. Every ticket is checked before any is released.
func (s *ReservationService) Cancel(ctx context.Context, lotteryId string, req CancelRequest) ([]model.Ticket, error) {
	tickets, err := s.cancel(ctx, lotteryId, req)
	if err == nil {
		metrics.ReservationsTotal.WithLabelValues("cancelled").Inc()
	}
	return tickets, err
}

func (s *ReservationService) cancel(ctx context.Context, lotteryId string, req CancelRequest) ([]model.Ticket, error) {
	req.ParticipantEmail = strings.TrimSpace(req.ParticipantEmail)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	lottery, err := s.store.GetLottery(ctx, lotteryId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLotteryNotFound
		}
		return nil, &StoreError{Op: "get lottery", Err: err}
	}
	if lottery.IsDrawn() {
		return nil, ErrAlreadyDrawn
	}

	ids := make([]string, 0, len(req.TicketIds))
	seen := make(map[string]bool, len(req.TicketIds))
	for _, id := range req.TicketIds {
		if seen[id] {
			continue
		}
		seen[id] = true
		t, err := s.store.GetTicket(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrTicketNotFound
			}
			return nil, &StoreError{Op: "get ticket", Err: err}
		}
		if t.LotteryId != lotteryId {
			return nil, &ValidationError{Field: "ticketIds", Message: "ticket " + id + " does not belong to this lottery"}
		}
		if !strings.EqualFold(t.Participant.Email, req.ParticipantEmail) {
			return nil, &ValidationError{Field: "participantEmail", Message: "ticket " + id + " was reserved with another email"}
		}
		if t.PaymentStatus != model.PaymentPending {
			return nil, ErrInvalidTransition
		}
		ids = append(ids, id)
	}

	now := s.now()
	released := make([]model.Ticket, 0, len(ids))
	numbers := make([]string, 0, len(ids))
	for _, id := range ids {
		t, err := s.store.UpdateTicketStatus(ctx, store.StatusChange{
			TicketId: id,
			From:     []model.PaymentStatus{model.PaymentPending},
			To:       model.PaymentRejected,
			At:       now,
			Reason:   CancelledReason,
		})
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, ErrInvalidTransition
			}
			return nil, &StoreError{Op: "cancel ticket", Err: err}
		}
		released = append(released, *t)
		numbers = append(numbers, t.SelectedNumber)
	}
	log.Info().Str("Service", "reservation").Str("lottery", lotteryId).Strs("numbers", numbers).Msg("selection cancelled, numbers released")
	return released, nil
}

// publish is fire and forget; the reservation is already committed.
func (s *ReservationService) publish(event model.TicketReservedEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.events.TicketReserved(ctx, event); err != nil {
			log.Warn().Str("Service", "reservation").Str("lottery", event.LotteryId).Err(err).Msg("ticket reserved event not published")
		}
	}()
}

func reservationResult(err error) string {
	var taken *NumberTakenError
	var invalid *ValidationError
	switch {
	case err == nil:
		return "reserved"
	case errors.As(err, &taken):
		return "taken"
	case errors.Is(err, ErrParticipationClosed):
		return "closed"
	case errors.As(err, &invalid), errors.Is(err, ErrLotteryNotFound):
		return "invalid"
	}
	return "error"
}
