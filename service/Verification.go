package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/phuslu/log"

	"raffle-service/model"
	"raffle-service/notification"
	"raffle-service/store"
)

type ReceiptStore interface {
	Save(lotteryId string, ticketId string, fileName string, r io.Reader) (string, error)
}

type VerificationResult struct {
	Ticket model.Ticket `json:"ticket"`
	// Changed is false when the ticket already had the requested status.
	Changed     bool   `json:"changed"`
	Notified    bool   `json:"notified"`
	NotifyError string `json:"notifyError,omitempty"`
}

type ReceiptSubmission struct {
	LotteryId        string    `validate:"required"`
	TicketIds        []string  `validate:"required,min=1,dive,required"`
	ParticipantEmail string    `validate:"omitempty,email"`
	ParticipantName  string    `validate:"omitempty"`
	FileName         string    `validate:"required"`
	File             io.Reader `validate:"-"`
}

type ReceiptResult struct {
	ReceiptUrl    string               `json:"publicUrl"`
	Tickets       []model.Ticket       `json:"tickets"`
	Notifications model.DispatchReport `json:"notifications"`
}

// VerificationService drives a ticket's payment status: pending -> verifying -> verified | rejected.
type VerificationService struct {
	store      store.Store
	dispatcher *Dispatcher
	receipts   ReceiptStore
	links      Links
	now        func() time.Time
}

func NewVerificationService(s store.Store, dispatcher *Dispatcher, receipts ReceiptStore, links Links) *VerificationService {
	return &VerificationService{store: s, dispatcher: dispatcher, receipts: receipts, links: links, now: time.Now}
}

// Verify approves a pending or verifying ticket. Verifying an already verified ticket succeeds without side effects.
func (s *VerificationService) Verify(ctx context.Context, ticketId string) (*VerificationResult, error) {
	ticket, err := s.getTicket(ctx, ticketId)
	if err != nil {
		return nil, err
	}
	switch ticket.PaymentStatus {
	case model.PaymentVerified:
		return &VerificationResult{Ticket: *ticket}, nil
	case model.PaymentRejected:
		return nil, ErrInvalidTransition
	}
	updated, err := s.store.UpdateTicketStatus(ctx, store.StatusChange{
		TicketId: ticketId,
		From:     []model.PaymentStatus{model.PaymentPending, model.PaymentVerifying},
		To:       model.PaymentVerified,
		At:       s.now(),
	})
	if err != nil {
		return s.resolveConflict(ctx, ticketId, model.PaymentVerified, err)
	}
	log.Info().Str("Service", "verification").Str("ticket", ticketId).Str("number", updated.SelectedNumber).Msg("payment verified")
	result := &VerificationResult{Ticket: *updated, Changed: true}
	s.notify(ctx, result, notification.PaymentApproved, "")
	return result, nil
}

// Reject refuses a pending or verifying ticket, releasing its number. The reason is kept and relayed verbatim.
func (s *VerificationService) Reject(ctx context.Context, ticketId string, reason string) (*VerificationResult, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Field: "reason", Message: "a rejection reason is required"}
	}
	ticket, err := s.getTicket(ctx, ticketId)
	if err != nil {
		return nil, err
	}
	switch ticket.PaymentStatus {
	case model.PaymentRejected:
		return &VerificationResult{Ticket: *ticket}, nil
	case model.PaymentVerified:
		return nil, ErrInvalidTransition
	}
	updated, err := s.store.UpdateTicketStatus(ctx, store.StatusChange{
		TicketId: ticketId,
		From:     []model.PaymentStatus{model.PaymentPending, model.PaymentVerifying},
		To:       model.PaymentRejected,
		At:       s.now(),
		Reason:   reason,
	})
	if err != nil {
		return s.resolveConflict(ctx, ticketId, model.PaymentRejected, err)
	}
	log.Info().Str("Service", "verification").Str("ticket", ticketId).Str("number", updated.SelectedNumber).Msg("payment rejected, number released")
	result := &VerificationResult{Ticket: *updated, Changed: true}
	s.notify(ctx, result, notification.PaymentRejected, reason)
	return result, nil
}

// AttachReceipt stores the uploaded receipt, moves the tickets to verifying and alerts participant and organizer.
func (s *VerificationService) AttachReceipt(ctx context.Context, sub ReceiptSubmission) (*ReceiptResult, error) {
	if err := validateStruct(sub); err != nil {
		return nil, err
	}
	if sub.File == nil {
		return nil, &ValidationError{Field: "file", Message: "a receipt file is required"}
	}
	lottery, err := s.store.GetLottery(ctx, sub.LotteryId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLotteryNotFound
		}
		return nil, &StoreError{Op: "get lottery", Err: err}
	}
	if lottery.IsDrawn() {
		return nil, ErrAlreadyDrawn
	}
	tickets := make([]*model.Ticket, 0, len(sub.TicketIds))
	for _, id := range sub.TicketIds {
		t, err := s.getTicket(ctx, id)
		if err != nil {
			return nil, err
		}
		if t.LotteryId != lottery.Id {
			return nil, &ValidationError{Field: "ticketIds", Message: "ticket " + id + " does not belong to this lottery"}
		}
		if t.PaymentStatus != model.PaymentPending && t.PaymentStatus != model.PaymentVerifying {
			return nil, ErrInvalidTransition
		}
		tickets = append(tickets, t)
	}

	url, err := s.receipts.Save(lottery.Id, tickets[0].Id, sub.FileName, sub.File)
	if err != nil {
		return nil, &ValidationError{Field: "file", Message: err.Error()}
	}
	result := &ReceiptResult{ReceiptUrl: url, Tickets: make([]model.Ticket, 0, len(tickets))}
	numbers := make([]string, 0, len(tickets))
	for _, t := range tickets {
		updated, err := s.store.UpdateTicketStatus(ctx, store.StatusChange{
			TicketId: t.Id,
			From:     []model.PaymentStatus{model.PaymentPending, model.PaymentVerifying},
			To:       model.PaymentVerifying,
			At:       s.now(),
			Receipt:  url,
		})
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, ErrInvalidTransition
			}
			return nil, &StoreError{Op: "attach receipt", Err: err}
		}
		result.Tickets = append(result.Tickets, *updated)
		numbers = append(numbers, updated.SelectedNumber)
	}

	participant := participantOf(tickets[0])
	if sub.ParticipantEmail != "" {
		participant.Email = sub.ParticipantEmail
	}
	if sub.ParticipantName != "" {
		participant.Name = sub.ParticipantName
	}
	payload := lotteryPayload(lottery, s.links)
	payload.Numbers = numbers
	payload.ParticipantName = participant.Name
	payload.ParticipantEmail = participant.Email
	payload.ReceiptUrl = url
	result.Notifications = s.dispatcher.Run(ctx, []Job{
		{To: participant, Kind: notification.PaymentConfirmation, Payload: payload},
		{To: organizerOf(lottery), Kind: notification.NewPaymentAlert, Payload: payload},
	})
	log.Info().Str("Service", "verification").Str("lottery", lottery.Id).Strs("numbers", numbers).Msg("receipt attached")
	return result, nil
}

func (s *VerificationService) getTicket(ctx context.Context, id string) (*model.Ticket, error) {
	t, err := s.store.GetTicket(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, &StoreError{Op: "get ticket", Err: err}
	}
	return t, nil
}

// resolveConflict handles a concurrent change between our read and the conditional update.
func (s *VerificationService) resolveConflict(ctx context.Context, ticketId string, target model.PaymentStatus, err error) (*VerificationResult, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if !errors.Is(err, store.ErrConflict) {
		return nil, &StoreError{Op: "update ticket status", Err: err}
	}
	current, getErr := s.getTicket(ctx, ticketId)
	if getErr != nil {
		return nil, getErr
	}
	if current.PaymentStatus == target {
		return &VerificationResult{Ticket: *current}, nil
	}
	return nil, ErrInvalidTransition
}

// notify never fails the status change; the outcome is reported on the result.
func (s *VerificationService) notify(ctx context.Context, result *VerificationResult, kind notification.Kind, reason string) {
	lottery, err := s.store.GetLottery(ctx, result.Ticket.LotteryId)
	if err != nil {
		result.NotifyError = err.Error()
		log.Warn().Str("Service", "verification").Str("ticket", result.Ticket.Id).Err(err).Msg("unable to load lottery for notification")
		return
	}
	payload := lotteryPayload(lottery, s.links)
	payload.Numbers = []string{result.Ticket.SelectedNumber}
	payload.Reason = reason
	payload.ParticipantName = result.Ticket.Participant.Name
	payload.ParticipantEmail = result.Ticket.Participant.Email
	if err := s.dispatcher.Notify(ctx, Job{To: participantOf(&result.Ticket), Kind: kind, Payload: payload}); err != nil {
		result.NotifyError = err.Error()
		return
	}
	result.Notified = true
}
