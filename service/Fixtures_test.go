package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"raffle-service/model"
	"raffle-service/notification"
	"raffle-service/store"
)

var ctx = context.Background()

type sentMessage struct {
	To      notification.Recipient
	Kind    notification.Kind
	Payload notification.Payload
}

type recordingChannel struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[string]error
}

func (c *recordingChannel) Send(ctx context.Context, to notification.Recipient, kind notification.Kind, payload notification.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failOn[to.Email]; err != nil {
		return err
	}
	c.sent = append(c.sent, sentMessage{To: to, Kind: kind, Payload: payload})
	return nil
}

func (c *recordingChannel) kinds() []notification.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]notification.Kind, len(c.sent))
	for i, m := range c.sent {
		kinds[i] = m.Kind
	}
	return kinds
}

type fixture struct {
	store      *store.Memory
	channel    *recordingChannel
	dispatcher *Dispatcher
	waits      []time.Duration
	now        time.Time
	seq        int
}

func newFixture() *fixture {
	f := &fixture{
		store:   store.NewMemory(),
		channel: &recordingChannel{failOn: map[string]error{}},
		now:     time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.dispatcher = NewDispatcher(f.channel, DefaultSendDelay)
	f.dispatcher.wait = func(ctx context.Context, d time.Duration) error {
		f.waits = append(f.waits, d)
		return ctx.Err()
	}
	return f
}

func (f *fixture) clock() time.Time {
	return f.now
}

// seedLottery creates an active lottery drawing in 48h, created a week before the fixture time.
func (f *fixture) seedLottery(t *testing.T) *model.Lottery {
	t.Helper()
	l := &model.Lottery{
		Id:          uuid.NewString(),
		Organizer:   model.Organizer{Id: "org-1", Name: "Luis Organizer", Email: "luis@example.com", Phone: "+34 600 000 000"},
		PrizeTitle:  "Bicicleta",
		DrawDate:    f.now.Add(48 * time.Hour),
		TicketPrice: decimal.RequireFromString("5.50"),
		ShareCode:   uuid.NewString()[:8],
		Status:      model.LotteryActive,
		Bank:        model.BankDetails{BankName: "Banco", BankAccount: "ES00 0000"},
		CreatedAt:   f.now.Add(-7 * 24 * time.Hour),
		UpdatedAt:   f.now.Add(-7 * 24 * time.Hour),
	}
	require.NoError(t, f.store.CreateLottery(ctx, l))
	return l
}

func (f *fixture) seedTicket(t *testing.T, lotteryId string, number string, status model.PaymentStatus, email string) *model.Ticket {
	t.Helper()
	tk := &model.Ticket{
		Id:             uuid.NewString(),
		LotteryId:      lotteryId,
		SelectedNumber: number,
		Participant:    model.Participant{Name: "Participant " + number, Email: email, Phone: "+34 611 111 111"},
		PaymentStatus:  status,
		CreatedAt:      f.now.Add(-time.Hour + time.Duration(f.seq)*time.Second),
	}
	f.seq++
	if status == model.PaymentRejected {
		reason := "seeded"
		tk.RejectionReason = &reason
	}
	require.NoError(t, f.store.InsertTickets(ctx, []*model.Ticket{tk}))
	return tk
}

func participant(name string) model.Participant {
	return model.Participant{Name: name, Email: name + "@example.com", Phone: "+34 600 123 456"}
}

// failingStore fails the configured operation with a driver-like error.
type failingStore struct {
	store.Store
	failList bool
}

var errDriver = errors.New("connection reset by peer")

func (s *failingStore) ListTickets(ctx context.Context, lotteryId string, statuses ...model.PaymentStatus) ([]model.Ticket, error) {
	if s.failList {
		return nil, errDriver
	}
	return s.Store.ListTickets(ctx, lotteryId, statuses...)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
