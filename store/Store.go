package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raffle-service/model"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned by conditional writes whose precondition no longer holds.
	ErrConflict = errors.New("conditional write rejected")
	// ErrShareCodeTaken is returned when a generated share code collides with an existing lottery.
	ErrShareCodeTaken = errors.New("share code already in use")
	// ErrWinnerIneligible is returned by CompleteDraw when the chosen ticket is no longer verified or verifying.
	ErrWinnerIneligible = errors.New("winning ticket is no longer eligible")
)

// DuplicateNumberError is the store's uniqueness violation on (lottery, number) among non-rejected tickets.
type DuplicateNumberError struct {
	LotteryId string
	Number    string
}

func (e *DuplicateNumberError) Error() string {
	return fmt.Sprintf("number %s already held in lottery %s", e.Number, e.LotteryId)
}

// StatusChange moves a ticket to To only when its current status is one of From.
type StatusChange struct {
	TicketId string
	From     []model.PaymentStatus
	To       model.PaymentStatus
	At       time.Time
	Reason   string
	Receipt  string
}

// LotteryFilter selects lotteries for listings. With OpenAfter set only active, undrawn lotteries drawing after
// that instant are returned, soonest first; otherwise the newest lotteries come first.
type LotteryFilter struct {
	OrganizerId string
	OpenAfter   time.Time
}

type Store interface {
	CreateLottery(ctx context.Context, lottery *model.Lottery) error
	GetLottery(ctx context.Context, id string) (*model.Lottery, error)
	GetLotteryByShareCode(ctx context.Context, code string) (*model.Lottery, error)
	ListLotteries(ctx context.Context, filter LotteryFilter) ([]model.Lottery, error)
	// CountTickets returns the per-status ticket counts of each lottery; every requested id has an entry.
	CountTickets(ctx context.Context, lotteryIds []string) (map[string]map[model.PaymentStatus]int, error)

	// FindHeldTicket returns the non-rejected ticket holding number, or ErrNotFound.
	FindHeldTicket(ctx context.Context, lotteryId string, number string) (*model.Ticket, error)
	// InsertTickets inserts all tickets or none. A uniqueness violation yields *DuplicateNumberError.
	InsertTickets(ctx context.Context, tickets []*model.Ticket) error
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	// ListTickets returns tickets of a lottery ordered by creation, optionally restricted to statuses.
	ListTickets(ctx context.Context, lotteryId string, statuses ...model.PaymentStatus) ([]model.Ticket, error)
	// UpdateTicketStatus applies a conditional status change. ErrConflict when the current status is not in From.
	UpdateTicketStatus(ctx context.Context, change StatusChange) (*model.Ticket, error)

	// CompleteDraw atomically marks an active, undrawn lottery completed with the given winner
	// (nil for no winner) and promotes a verifying winner to verified, reporting whether it did.
	// ErrConflict when already drawn, ErrWinnerIneligible when the winner is no longer verified or verifying.
	CompleteDraw(ctx context.Context, lotteryId string, winner *model.Ticket, at time.Time) (promoted bool, err error)
}
