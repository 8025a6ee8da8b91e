package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"raffle-service/model"
	"raffle-service/utils"
)

const heldNumberConstraint = "lottery_tickets_held_number_key"
const shareCodeConstraint = "lotteries_share_code_key"

const lotteryColumns = `id::text,created_by,organizer_name,organizer_email,organizer_phone,prize_title,prize_description,
	draw_date,ticket_price::text,share_code,status,winner_number,bank_name,bank_account,bank_alias,created_at,updated_at`

const ticketColumns = `id::text,lottery_id::text,coalesce(user_id,''),selected_number,participant_name,participant_email,
	participant_phone,payment_status,payment_receipt_url,rejection_reason,created_at,payment_verified_at,rejected_at`

type Postgres struct {
	DB *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{DB: db}
}

func (p *Postgres) CreateLottery(ctx context.Context, l *model.Lottery) error {
	_, err := p.DB.Exec(ctx,
		`insert into lotteries (id,created_by,organizer_name,organizer_email,organizer_phone,prize_title,prize_description,
		draw_date,ticket_price,share_code,status,bank_name,bank_account,bank_alias,created_at,updated_at)
		values ($1::uuid,$2,$3,$4,$5,$6,$7,$8,$9::numeric,$10,$11,$12,$13,$14,$15,$15)`,
		l.Id, l.Organizer.Id, l.Organizer.Name, l.Organizer.Email, l.Organizer.Phone, l.PrizeTitle, l.PrizeDescription,
		l.DrawDate, l.TicketPrice.StringFixed(2), l.ShareCode, string(l.Status), l.Bank.BankName, l.Bank.BankAccount,
		l.Bank.BankAlias, l.CreatedAt)
	if err != nil {
		if ok, key := utils.IsErrDuplicate(err); ok && key == shareCodeConstraint {
			return ErrShareCodeTaken
		}
		return errors.Wrapf(err, "insert lottery %s", l.Id)
	}
	return nil
}

func (p *Postgres) GetLottery(ctx context.Context, id string) (*model.Lottery, error) {
	row := p.DB.QueryRow(ctx, `select `+lotteryColumns+` from lotteries where id::text = $1`, id)
	return scanLottery(row)
}

func (p *Postgres) GetLotteryByShareCode(ctx context.Context, code string) (*model.Lottery, error) {
	row := p.DB.QueryRow(ctx, `select `+lotteryColumns+` from lotteries where upper(share_code) = upper($1)`, code)
	return scanLottery(row)
}

func (p *Postgres) ListLotteries(ctx context.Context, filter LotteryFilter) ([]model.Lottery, error) {
	query := `select ` + lotteryColumns + ` from lotteries where ($1 = '' or created_by = $1)`
	args := []interface{}{filter.OrganizerId}
	if filter.OpenAfter.IsZero() {
		query += ` order by created_at desc, id`
	} else {
		query += ` and status = 'active' and winner_number is null and draw_date > $2 order by draw_date, id`
		args = append(args, filter.OpenAfter)
	}
	rows, err := p.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list lotteries")
	}
	defer rows.Close()
	lotteries := []model.Lottery{}
	for rows.Next() {
		l, err := scanLottery(rows)
		if err != nil {
			return nil, err
		}
		lotteries = append(lotteries, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list lotteries")
	}
	return lotteries, nil
}

func (p *Postgres) CountTickets(ctx context.Context, lotteryIds []string) (map[string]map[model.PaymentStatus]int, error) {
	counts := make(map[string]map[model.PaymentStatus]int, len(lotteryIds))
	for _, id := range lotteryIds {
		counts[id] = make(map[model.PaymentStatus]int)
	}
	if len(lotteryIds) == 0 {
		return counts, nil
	}
	rows, err := p.DB.Query(ctx,
		`select lottery_id::text, payment_status, count(*) from lottery_tickets
		where lottery_id::text = any($1) group by lottery_id, payment_status`, lotteryIds)
	if err != nil {
		return nil, errors.Wrap(err, "count tickets")
	}
	defer rows.Close()
	for rows.Next() {
		var id, status string
		var n int
		if err := rows.Scan(&id, &status, &n); err != nil {
			return nil, errors.Wrap(err, "scan ticket count")
		}
		if c, ok := counts[id]; ok {
			c[model.PaymentStatus(status)] = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "count tickets")
	}
	return counts, nil
}

func (p *Postgres) FindHeldTicket(ctx context.Context, lotteryId string, number string) (*model.Ticket, error) {
	row := p.DB.QueryRow(ctx,
		`select `+ticketColumns+` from lottery_tickets
		where lottery_id::text = $1 and selected_number = $2 and payment_status <> 'rejected' limit 1`, lotteryId, number)
	return scanTicket(row)
}

func (p *Postgres) InsertTickets(ctx context.Context, tickets []*model.Ticket) (err error) {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin ticket reservation")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				utils.LogMessage(utils.CRITICAL, "InsertTickets: unable to rollback transaction, err: "+rbErr.Error(), "store")
			}
		}
	}()
	for _, t := range tickets {
		_, err = tx.Exec(ctx,
			`insert into lottery_tickets (id,lottery_id,user_id,selected_number,participant_name,participant_email,
			participant_phone,payment_status,created_at) values ($1::uuid,$2::uuid,nullif($3,''),$4,$5,$6,$7,$8,$9)`,
			t.Id, t.LotteryId, t.Participant.UserId, t.SelectedNumber, t.Participant.Name, t.Participant.Email,
			t.Participant.Phone, string(t.PaymentStatus), t.CreatedAt)
		if err != nil {
			if ok, key := utils.IsErrDuplicate(err); ok && key == heldNumberConstraint {
				err = &DuplicateNumberError{LotteryId: t.LotteryId, Number: t.SelectedNumber}
				return err
			}
			err = errors.Wrapf(err, "insert ticket %s", t.SelectedNumber)
			return err
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit ticket reservation")
	}
	return nil
}

func (p *Postgres) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	row := p.DB.QueryRow(ctx, `select `+ticketColumns+` from lottery_tickets where id::text = $1`, id)
	return scanTicket(row)
}

func (p *Postgres) ListTickets(ctx context.Context, lotteryId string, statuses ...model.PaymentStatus) ([]model.Ticket, error) {
	var rows pgx.Rows
	var err error
	if len(statuses) == 0 {
		rows, err = p.DB.Query(ctx,
			`select `+ticketColumns+` from lottery_tickets where lottery_id::text = $1 order by created_at, id`, lotteryId)
	} else {
		filter := make([]string, len(statuses))
		for i, s := range statuses {
			filter[i] = string(s)
		}
		rows, err = p.DB.Query(ctx,
			`select `+ticketColumns+` from lottery_tickets where lottery_id::text = $1 and payment_status = any($2)
			order by created_at, id`, lotteryId, filter)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "list tickets of lottery %s", lotteryId)
	}
	defer rows.Close()
	tickets := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "list tickets of lottery %s", lotteryId)
	}
	return tickets, nil
}

func (p *Postgres) UpdateTicketStatus(ctx context.Context, change StatusChange) (*model.Ticket, error) {
	from := make([]string, len(change.From))
	for i, s := range change.From {
		from[i] = string(s)
	}
	var reason *string
	if change.To == model.PaymentRejected {
		reason = &change.Reason
	}
	row := p.DB.QueryRow(ctx,
		`update lottery_tickets set payment_status = $2,
			payment_verified_at = case when $2 = 'verified' then $3 else payment_verified_at end,
			rejected_at = case when $2 = 'rejected' then $3 else rejected_at end,
			rejection_reason = case when $2 = 'rejected' then $4 else null end,
			payment_receipt_url = coalesce(nullif($5,''), payment_receipt_url)
		where id::text = $1 and payment_status = any($6)
		returning `+ticketColumns,
		change.TicketId, string(change.To), change.At, reason, change.Receipt, from)
	t, err := scanTicket(row)
	if err == nil {
		return t, nil
	}
	if ok, key := utils.IsErrDuplicate(err); ok && key == heldNumberConstraint {
		current, getErr := p.GetTicket(ctx, change.TicketId)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &DuplicateNumberError{LotteryId: current.LotteryId, Number: current.SelectedNumber}
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	// zero rows: either the ticket is missing or its status did not match
	if _, getErr := p.GetTicket(ctx, change.TicketId); getErr != nil {
		return nil, getErr
	}
	return nil, ErrConflict
}

func (p *Postgres) CompleteDraw(ctx context.Context, lotteryId string, winner *model.Ticket, at time.Time) (promoted bool, err error) {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return false, errors.Wrap(err, "begin draw commit")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				utils.LogMessage(utils.CRITICAL, "CompleteDraw: unable to rollback transaction, err: "+rbErr.Error(), "store")
			}
		}
	}()
	var winnerNumber *string
	if winner != nil {
		winnerNumber = &winner.SelectedNumber
	}
	tag, err := tx.Exec(ctx,
		`update lotteries set status = 'completed', winner_number = $2, updated_at = $3
		where id::text = $1 and status = 'active' and winner_number is null`, lotteryId, winnerNumber, at)
	if err != nil {
		return false, errors.Wrapf(err, "complete lottery %s", lotteryId)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err = tx.QueryRow(ctx, `select exists(select 1 from lotteries where id::text = $1)`, lotteryId).Scan(&exists); err != nil {
			return false, errors.Wrapf(err, "complete lottery %s", lotteryId)
		}
		if !exists {
			err = ErrNotFound
			return false, err
		}
		err = ErrConflict
		return false, err
	}
	if winner != nil {
		// the row lock holds off a concurrent reject until the draw commits
		var status string
		err = tx.QueryRow(ctx,
			`select payment_status from lottery_tickets where id::text = $1 and lottery_id::text = $2 for update`,
			winner.Id, lotteryId).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				err = ErrNotFound
				return false, err
			}
			return false, errors.Wrapf(err, "lock winning ticket %s", winner.Id)
		}
		switch model.PaymentStatus(status) {
		case model.PaymentVerified:
		case model.PaymentVerifying:
			_, err = tx.Exec(ctx,
				`update lottery_tickets set payment_status = 'verified', payment_verified_at = $2 where id::text = $1`,
				winner.Id, at)
			if err != nil {
				return false, errors.Wrapf(err, "promote winning ticket %s", winner.Id)
			}
			promoted = true
		default:
			err = ErrWinnerIneligible
			return false, err
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return false, errors.Wrapf(err, "commit draw of lottery %s", lotteryId)
	}
	return promoted, nil
}

func scanLottery(row pgx.Row) (*model.Lottery, error) {
	l := model.Lottery{}
	var price, status string
	err := row.Scan(&l.Id, &l.Organizer.Id, &l.Organizer.Name, &l.Organizer.Email, &l.Organizer.Phone, &l.PrizeTitle,
		&l.PrizeDescription, &l.DrawDate, &price, &l.ShareCode, &status, &l.WinnerNumber, &l.Bank.BankName,
		&l.Bank.BankAccount, &l.Bank.BankAlias, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "scan lottery")
	}
	l.Status = model.LotteryStatus(status)
	if l.TicketPrice, err = decimal.NewFromString(price); err != nil {
		return nil, errors.Wrapf(err, "parse ticket price %q", price)
	}
	return &l, nil
}

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	t := model.Ticket{}
	var status string
	err := row.Scan(&t.Id, &t.LotteryId, &t.Participant.UserId, &t.SelectedNumber, &t.Participant.Name,
		&t.Participant.Email, &t.Participant.Phone, &status, &t.ReceiptUrl, &t.RejectionReason, &t.CreatedAt,
		&t.VerifiedAt, &t.RejectedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if ok, _ := utils.IsErrDuplicate(err); ok {
			return nil, err
		}
		return nil, errors.Wrap(err, "scan ticket")
	}
	t.PaymentStatus = model.PaymentStatus(status)
	return &t, nil
}
