package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raffle-service/config"
	"raffle-service/model"
)

// testPostgres connects with the postgres_db.* settings (POSTGRES_DB_* in the environment)
// and applies the migrations. Tests are skipped when no server answers.
func testPostgres(t *testing.T) *Postgres {
	t.Helper()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("postgres_db.user", "postgres")
	viper.SetDefault("postgres_db.password", "postgres")
	viper.SetDefault("postgres_db.cluster", "localhost")
	viper.SetDefault("postgres_db.keyspace", "raffle_test")
	viper.Set("postgres_db.migrations", "file://../migration")
	cfg := config.LoadDatabaseConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := pgx.Connect(ctx, cfg.URL())
	if err != nil {
		t.Skipf("postgres not reachable at %s: %v", cfg.Host, err)
	}
	conn.Close(ctx)

	pool, err := config.ConnectDb(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewPostgres(pool)
}

func seedPgLottery(t *testing.T, p *Postgres, organizer string, drawIn time.Duration) *model.Lottery {
	t.Helper()
	now := time.Now()
	l := &model.Lottery{
		Id:          uuid.NewString(),
		Organizer:   model.Organizer{Id: organizer, Name: "Organizer", Email: "org@example.com"},
		PrizeTitle:  "Bicycle",
		DrawDate:    now.Add(drawIn),
		TicketPrice: decimal.RequireFromString("10.00"),
		ShareCode:   strings.ToUpper(uuid.NewString()[:8]),
		Status:      model.LotteryActive,
		Bank:        model.BankDetails{BankName: "Banco", BankAccount: "ES00 0000"},
		CreatedAt:   now,
	}
	require.NoError(t, p.CreateLottery(ctx, l))
	t.Cleanup(func() {
		_, _ = p.DB.Exec(context.Background(), `delete from lotteries where id::text = $1`, l.Id)
	})
	return l
}

func TestPostgresShareCodeIsCaseInsensitive(t *testing.T) {
	p := testPostgres(t)
	l := seedPgLottery(t, p, "org-"+uuid.NewString(), 48*time.Hour)

	clash := *l
	clash.Id, clash.ShareCode = uuid.NewString(), strings.ToLower(l.ShareCode)
	assert.ErrorIs(t, p.CreateLottery(ctx, &clash), ErrShareCodeTaken)

	found, err := p.GetLotteryByShareCode(ctx, strings.ToLower(l.ShareCode))
	require.NoError(t, err)
	assert.Equal(t, l.Id, found.Id)
	assert.True(t, l.TicketPrice.Equal(found.TicketPrice))

	_, err = p.GetLottery(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresConcurrentReservationsOfOneNumber(t *testing.T) {
	p := testPostgres(t)
	l := seedPgLottery(t, p, "org-"+uuid.NewString(), 48*time.Hour)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = p.InsertTickets(ctx, []*model.Ticket{newTicket(l.Id, "07", time.Now())})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var dup *DuplicateNumberError
		require.True(t, errors.As(err, &dup), "unexpected error: %v", err)
		assert.Equal(t, "07", dup.Number)
		assert.Equal(t, l.Id, dup.LotteryId)
	}
	assert.Equal(t, 1, succeeded)

	tickets, err := p.ListTickets(ctx, l.Id)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
}

func TestPostgresInsertTicketsIsAllOrNothing(t *testing.T) {
	p := testPostgres(t)
	l := seedPgLottery(t, p, "org-"+uuid.NewString(), 48*time.Hour)
	now := time.Now()
	require.NoError(t, p.InsertTickets(ctx, []*model.Ticket{newTicket(l.Id, "01", now)}))

	err := p.InsertTickets(ctx, []*model.Ticket{newTicket(l.Id, "02", now), newTicket(l.Id, "01", now)})
	var dup *DuplicateNumberError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "01", dup.Number)

	tickets, err := p.ListTickets(ctx, l.Id)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "01", tickets[0].SelectedNumber)
}

func TestPostgresRejectedTicketReleasesNumber(t *testing.T) {
	p := testPostgres(t)
	l := seedPgLottery(t, p, "org-"+uuid.NewString(), 48*time.Hour)
	first := newTicket(l.Id, "05", time.Now())
	require.NoError(t, p.InsertTickets(ctx, []*model.Ticket{first}))

	rejected, err := p.UpdateTicketStatus(ctx, StatusChange{
		TicketId: first.Id, From: []model.PaymentStatus{model.PaymentPending}, To: model.PaymentRejected,
		At: time.Now(), Reason: "no transfer",
	})
	require.NoError(t, err)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "no transfer", *rejected.RejectionReason)
	assert.NotNil(t, rejected.RejectedAt)

	second := newTicket(l.Id, "05", time.Now())
	require.NoError(t, p.InsertTickets(ctx, []*model.Ticket{second}))

	held, err := p.FindHeldTicket(ctx, l.Id, "05")
	require.NoError(t, err)
	assert.Equal(t, second.Id, held.Id)

	// the rejected row cannot take the number back while another ticket holds it
	_, err = p.UpdateTicketStatus(ctx, StatusChange{
		TicketId: first.Id, From: []model.PaymentStatus{model.PaymentRejected}, To: model.PaymentPending, At: time.Now(),
	})
	var dup *DuplicateNumberError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "05", dup.Number)

	tickets, err := p.ListTickets(ctx, l.Id)
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
}

func TestPostgresUpdateTicketStatusConflict(t *testing.T) {
	p := testPostgres(t)
	l := seedPgLottery(t, p, "org-"+uuid.NewString(), 48*time.Hour)
	tk := newTicket(l.Id, "09", time.Now())
	require.NoError(t, p.InsertTickets(ctx, []*model.Ticket{tk}))

	_, err := p.UpdateTicketStatus(ctx, StatusChange{
		TicketId: tk.Id, From: []model.PaymentStatus{model.PaymentVerifying}, To: model.PaymentVerified, At: time.Now(),
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = p.UpdateTicketStatus(ctx, StatusChange{
		TicketId: uuid.NewString(), From: []model.PaymentStatus{model.PaymentVerifying}, To: model.PaymentVerified, At: time.Now(),
	})
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := p.UpdateTicketStatus(ctx, StatusChange{
		TicketId: tk.Id, From: []model.PaymentStatus{model.PaymentPending}, To: model.PaymentVerifying,
		At: time.Now(), Receipt: "http://localhost/files/receipts/r.png",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentVerifying, updated.PaymentStatus)
	require.NotNil(t, updated.ReceiptUrl)
	assert.Equal(t, "http://localhost/files/receipts/r.png", *updated.ReceiptUrl)
}

func TestPostgresCompleteDraw(t *testing.T) {
	p := testPostgres(t)
	l := seedPgLottery(t, p, "org-"+uuid.NewString(), time.Minute)
	winner := newTicket(l.Id, "11", time.Now())
	winner.PaymentStatus = model.PaymentVerifying
	require.NoError(t, p.InsertTickets(ctx, []*model.Ticket{winner}))

	promoted, err := p.CompleteDraw(ctx, l.Id, winner, time.Now())
	require.NoError(t, err)
	assert.True(t, promoted)

	drawn, err := p.GetLottery(ctx, l.Id)
	require.NoError(t, err)
	assert.Equal(t, model.LotteryCompleted, drawn.Status)
	require.NotNil(t, drawn.WinnerNumber)
	assert.Equal(t, "11", *drawn.WinnerNumber)

	stored, err := p.GetTicket(ctx, winner.Id)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentVerified, stored.PaymentStatus)
	assert.NotNil(t, stored.VerifiedAt)

	_, err = p.CompleteDraw(ctx, l.Id, nil, time.Now())
	assert.ErrorIs(t, err, ErrConflict)

	_, err = p.CompleteDraw(ctx, uuid.NewString(), nil, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresCompleteDrawRejectsIneligibleWinner(t *testing.T) {
	p := testPostgres(t)
	l := seedPgLottery(t, p, "org-"+uuid.NewString(), time.Minute)
	winner := newTicket(l.Id, "12", time.Now())
	winner.PaymentStatus = model.PaymentVerifying
	require.NoError(t, p.InsertTickets(ctx, []*model.Ticket{winner}))
	_, err := p.UpdateTicketStatus(ctx, StatusChange{
		TicketId: winner.Id, From: []model.PaymentStatus{model.PaymentVerifying}, To: model.PaymentRejected,
		At: time.Now(), Reason: "no transfer",
	})
	require.NoError(t, err)

	_, err = p.CompleteDraw(ctx, l.Id, winner, time.Now())
	assert.ErrorIs(t, err, ErrWinnerIneligible)

	undrawn, err := p.GetLottery(ctx, l.Id)
	require.NoError(t, err)
	assert.Equal(t, model.LotteryActive, undrawn.Status)
	assert.Nil(t, undrawn.WinnerNumber)

	promoted, err := p.CompleteDraw(ctx, l.Id, nil, time.Now())
	require.NoError(t, err)
	assert.False(t, promoted)
}

func TestPostgresListLotteriesAndCountTickets(t *testing.T) {
	p := testPostgres(t)
	organizer := "org-" + uuid.NewString()
	later := seedPgLottery(t, p, organizer, 48*time.Hour)
	sooner := seedPgLottery(t, p, organizer, time.Hour)
	past := seedPgLottery(t, p, organizer, -time.Hour)
	drawn := seedPgLottery(t, p, organizer, 2*time.Hour)
	_, err := p.CompleteDraw(ctx, drawn.Id, nil, time.Now())
	require.NoError(t, err)

	mine, err := p.ListLotteries(ctx, LotteryFilter{OrganizerId: organizer})
	require.NoError(t, err)
	assert.Len(t, mine, 4)
	assert.Equal(t, drawn.Id, mine[0].Id, "newest first")

	open, err := p.ListLotteries(ctx, LotteryFilter{OrganizerId: organizer, OpenAfter: time.Now()})
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, sooner.Id, open[0].Id)
	assert.Equal(t, later.Id, open[1].Id)

	verified := newTicket(later.Id, "02", time.Now())
	verified.PaymentStatus = model.PaymentVerified
	require.NoError(t, p.InsertTickets(ctx, []*model.Ticket{newTicket(later.Id, "01", time.Now()), verified}))

	counts, err := p.CountTickets(ctx, []string{later.Id, past.Id})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[later.Id][model.PaymentPending])
	assert.Equal(t, 1, counts[later.Id][model.PaymentVerified])
	assert.Empty(t, counts[past.Id])
}
