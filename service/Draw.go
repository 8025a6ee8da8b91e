package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/phuslu/log"

	"raffle-service/metrics"
	"raffle-service/model"
	"raffle-service/notification"
	"raffle-service/store"
)

// Locker serialises draw attempts per lottery. ok is false when the lock is already held.
type Locker interface {
	Acquire(ctx context.Context, lotteryId string, ttl time.Duration) (release func(), ok bool, err error)
}

// maxDrawAttempts bounds how often a draw is repeated when its winner is rejected before the commit.
const maxDrawAttempts = 3

type DrawEngine struct {
	store      store.Store
	dispatcher *Dispatcher
	locker     Locker
	links      Links
	random     io.Reader
	now        func() time.Time
	lockTTL    time.Duration
}

func NewDrawEngine(s store.Store, dispatcher *Dispatcher, locker Locker, links Links) *DrawEngine {
	return &DrawEngine{
		store:      s,
		dispatcher: dispatcher,
		locker:     locker,
		links:      links,
		random:     rand.Reader,
		now:        time.Now,
		lockTTL:    10 * time.Minute,
	}
}

// PerformDraw picks one winner among verified and verifying tickets, closes the lottery and notifies every
// eligible ticket holder. A lottery can be drawn once; later calls get ErrAlreadyDrawn.
func (e *DrawEngine) PerformDraw(ctx context.Context, lotteryId string) (*model.DrawResult, error) {
	result, err := e.performDraw(ctx, lotteryId)
	outcome := "error"
	switch {
	case err == nil && result.NoWinner:
		outcome = "no_winner"
	case err == nil:
		outcome = "winner"
	case errors.Is(err, ErrAlreadyDrawn):
		outcome = "already_drawn"
	}
	metrics.DrawsTotal.WithLabelValues(outcome).Inc()
	return result, err
}

func (e *DrawEngine) performDraw(ctx context.Context, lotteryId string) (*model.DrawResult, error) {
	lottery, err := e.store.GetLottery(ctx, lotteryId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLotteryNotFound
		}
		return nil, &StoreError{Op: "get lottery", Err: err}
	}
	if lottery.IsDrawn() {
		return nil, ErrAlreadyDrawn
	}
	if e.locker != nil {
		release, ok, err := e.locker.Acquire(ctx, lotteryId, e.lockTTL)
		if err != nil {
			log.Warn().Str("Service", "draw").Str("lottery", lotteryId).Err(err).Msg("draw lock unavailable, relying on conditional update")
		} else if !ok {
			return nil, ErrAlreadyDrawn
		}
		if release != nil {
			defer release()
		}
	}

	started := time.Now()
	var winner model.Ticket
	var eligible []model.Ticket
	var result *model.DrawResult
	autoVerified := false
	for attempt := 1; ; attempt++ {
		tickets, err := e.store.ListTickets(ctx, lotteryId)
		if err != nil {
			return nil, &StoreError{Op: "list tickets", Err: err}
		}
		breakdown := make(map[model.PaymentStatus]int)
		eligible = make([]model.Ticket, 0, len(tickets))
		for _, t := range tickets {
			breakdown[t.PaymentStatus]++
			if t.PaymentStatus == model.PaymentVerified || t.PaymentStatus == model.PaymentVerifying {
				eligible = append(eligible, t)
			}
		}
		result = &model.DrawResult{
			LotteryId:         lotteryId,
			TotalParticipants: len(eligible),
			EmailResults:      []model.NotificationOutcome{},
			StatusBreakdown:   breakdown,
		}

		if len(eligible) == 0 {
			if _, err := e.commit(ctx, lotteryId, nil); err != nil {
				return nil, err
			}
			metrics.DrawDuration.Observe(float64(time.Since(started).Milliseconds()))
			log.Info().Str("Service", "draw").Str("lottery", lotteryId).Int("tickets", len(tickets)).Msg("lottery completed without winner")
			result.NoWinner = true
			return result, nil
		}

		idx, err := rand.Int(e.random, big.NewInt(int64(len(eligible))))
		if err != nil {
			return nil, fmt.Errorf("unable to draw a random index: %w", err)
		}
		winner = eligible[idx.Int64()]
		autoVerified, err = e.commit(ctx, lotteryId, &winner)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrWinnerIneligible) {
			return nil, err
		}
		if attempt >= maxDrawAttempts {
			return nil, &StoreError{Op: "complete draw", Err: err}
		}
		log.Warn().Str("Service", "draw").Str("lottery", lotteryId).Str("ticket", winner.Id).
			Msg("winning ticket changed status during the draw, drawing again")
	}
	metrics.DrawDuration.Observe(float64(time.Since(started).Milliseconds()))

	if autoVerified {
		log.Warn().Str("Service", "draw").Str("lottery", lotteryId).Str("ticket", winner.Id).
			Msg("winning ticket was still verifying and has been auto-verified, review its receipt")
	}
	log.Info().Str("Service", "draw").Str("lottery", lotteryId).Str("number", winner.SelectedNumber).
		Int("eligible", len(eligible)).Msg("winner selected")
	result.Winner = &model.Winner{
		TicketId:     winner.Id,
		Name:         winner.Participant.Name,
		Email:        winner.Participant.Email,
		Number:       winner.SelectedNumber,
		AutoVerified: autoVerified,
	}

	base := lotteryPayload(lottery, e.links)
	base.WinningNumber = winner.SelectedNumber
	jobs := make([]Job, len(eligible))
	for i := range eligible {
		t := &eligible[i]
		payload := base
		payload.Numbers = []string{t.SelectedNumber}
		payload.ParticipantName = t.Participant.Name
		payload.ParticipantEmail = t.Participant.Email
		kind := notification.NonWinner
		if t.Id == winner.Id {
			kind = notification.Winner
		}
		jobs[i] = Job{To: participantOf(t), Kind: kind, Payload: payload, IsWinner: t.Id == winner.Id}
	}
	report := e.dispatcher.Run(ctx, jobs)
	result.EmailsSent = report.Sent
	result.EmailsFailed = report.Failed
	result.EmailResults = report.Outcomes
	log.Info().Str("Service", "draw").Str("lottery", lotteryId).Int("sent", report.Sent).Int("failed", report.Failed).Msg("draw notifications finished")
	return result, nil
}

// commit records the draw. store.ErrWinnerIneligible is passed through so the caller can draw again.
func (e *DrawEngine) commit(ctx context.Context, lotteryId string, winner *model.Ticket) (bool, error) {
	promoted, err := e.store.CompleteDraw(ctx, lotteryId, winner, e.now())
	switch {
	case err == nil:
		return promoted, nil
	case errors.Is(err, store.ErrConflict):
		return false, ErrAlreadyDrawn
	case errors.Is(err, store.ErrNotFound):
		return false, ErrLotteryNotFound
	case errors.Is(err, store.ErrWinnerIneligible):
		return false, err
	}
	return false, &StoreError{Op: "complete draw", Err: err}
}
