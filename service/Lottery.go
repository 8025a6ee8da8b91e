package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/shopspring/decimal"

	"raffle-service/model"
	"raffle-service/store"
	"raffle-service/utils"
)

const (
	shareCodeLength   = 8
	shareCodeAttempts = 5
	maxDrawHorizon    = 5
)

type NewLottery struct {
	OrganizerId      string `json:"createdBy" validate:"required"`
	OrganizerName    string `json:"organizerName" validate:"required,min=3"`
	OrganizerEmail   string `json:"organizerEmail" validate:"omitempty,email"`
	OrganizerPhone   string `json:"organizerPhone" validate:"required,regex=^[+\\d\\s\\-()]+$"`
	PrizeTitle       string `json:"prizeTitle" validate:"required"`
	PrizeDescription string `json:"prizeDescription"`
	DrawDate         string `json:"drawDate" validate:"required"`
	DrawTime         string `json:"drawTime" validate:"required"`
	TicketPrice      string `json:"ticketPrice" validate:"required"`
	BankName         string `json:"bankName" validate:"required"`
	BankAccount      string `json:"bankAccount" validate:"required"`
	BankAlias        string `json:"bankAlias"`
}

// LotterySummary is one row of an organizer's dashboard.
type LotterySummary struct {
	model.Lottery
	Active           bool            `json:"isActive"`
	PendingPayments  int             `json:"pendingPayments"`
	VerifiedPayments int             `json:"verifiedPayments"`
	Revenue          decimal.Decimal `json:"revenue"`
	Winner           *model.Ticket   `json:"winnerInfo,omitempty"`
}

type OrganizerDashboard struct {
	Lotteries            []LotterySummary `json:"lotteries"`
	ActiveCount          int              `json:"activeCount"`
	CompletedCount       int              `json:"completedCount"`
	TotalRevenue         decimal.Decimal  `json:"totalRevenue"`
	TotalPendingPayments int              `json:"totalPendingPayments"`
	TotalParticipants    int              `json:"totalParticipants"`
}

// OpenLottery is one entry of the public listing of lotteries still taking participants.
type OpenLottery struct {
	model.Lottery
	VerifiedTickets int `json:"verifiedTickets"`
}

type TicketList struct {
	Tickets   []model.Ticket              `json:"tickets"`
	Breakdown map[model.PaymentStatus]int `json:"statusBreakdown"`
}

// LotteryService covers lottery administration around the draw lifecycle.
type LotteryService struct {
	store     store.Store
	window    WindowPolicy
	location  *time.Location
	now       func() time.Time
	shareCode func() (string, error)
}

func NewLotteryService(s store.Store, window WindowPolicy, location *time.Location) *LotteryService {
	if location == nil {
		location = time.UTC
	}
	return &LotteryService{
		store:     s,
		window:    window,
		location:  location,
		now:       time.Now,
		shareCode: func() (string, error) { return utils.GenerateShareCode(shareCodeLength) },
	}
}

func (s *LotteryService) Create(ctx context.Context, req NewLottery) (*model.Lottery, error) {
	req.OrganizerName = strings.TrimSpace(req.OrganizerName)
	req.PrizeTitle = strings.TrimSpace(req.PrizeTitle)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.TicketPrice))
	if err != nil {
		return nil, &ValidationError{Field: "ticketPrice", Message: "price must be a valid number"}
	}
	if !price.IsPositive() {
		return nil, &ValidationError{Field: "ticketPrice", Message: "price must be greater than 0"}
	}
	drawAt, err := time.ParseInLocation("2006-01-02 15:04", req.DrawDate+" "+req.DrawTime, s.location)
	if err != nil {
		return nil, &ValidationError{Field: "drawDate", Message: "invalid draw date or time"}
	}
	now := s.now()
	if !drawAt.After(now) {
		return nil, &ValidationError{Field: "drawDate", Message: "draw date must be in the future"}
	}
	if drawAt.After(now.AddDate(maxDrawHorizon, 0, 0)) {
		return nil, &ValidationError{Field: "drawDate", Message: "draw date cannot be more than 5 years ahead"}
	}

	lottery := &model.Lottery{
		Id: uuid.NewString(),
		Organizer: model.Organizer{
			Id:    req.OrganizerId,
			Name:  req.OrganizerName,
			Email: strings.ToLower(strings.TrimSpace(req.OrganizerEmail)),
			Phone: strings.TrimSpace(req.OrganizerPhone),
		},
		PrizeTitle:       req.PrizeTitle,
		PrizeDescription: strings.TrimSpace(req.PrizeDescription),
		DrawDate:         drawAt,
		TicketPrice:      price.Round(2),
		Status:           model.LotteryActive,
		Bank: model.BankDetails{
			BankName:    strings.TrimSpace(req.BankName),
			BankAccount: strings.TrimSpace(req.BankAccount),
			BankAlias:   strings.TrimSpace(req.BankAlias),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for attempt := 1; ; attempt++ {
		code, err := s.shareCode()
		if err != nil {
			return nil, err
		}
		lottery.ShareCode = code
		err = s.store.CreateLottery(ctx, lottery)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrShareCodeTaken) || attempt >= shareCodeAttempts {
			return nil, &StoreError{Op: "create lottery", Err: err}
		}
		log.Debug().Str("Service", "lottery").Str("code", code).Msg("share code collision, retrying")
	}
	log.Info().Str("Service", "lottery").Str("lottery", lottery.Id).Str("code", lottery.ShareCode).Msg("lottery created")
	return lottery, nil
}

func (s *LotteryService) Get(ctx context.Context, id string) (*model.Lottery, error) {
	l, err := s.store.GetLottery(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLotteryNotFound
		}
		return nil, &StoreError{Op: "get lottery", Err: err}
	}
	return l, nil
}

// GetByShareCode returns the lottery with its held tickets and the numbers no longer available.
func (s *LotteryService) GetByShareCode(ctx context.Context, code string) (*model.LotteryView, error) {
	l, err := s.store.GetLotteryByShareCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLotteryNotFound
		}
		return nil, &StoreError{Op: "get lottery by code", Err: err}
	}
	tickets, err := s.store.ListTickets(ctx, l.Id)
	if err != nil {
		return nil, &StoreError{Op: "list tickets", Err: err}
	}
	view := &model.LotteryView{Lottery: *l, Tickets: []model.PublicTicket{}, TakenNumbers: []string{}}
	for i := range tickets {
		t := &tickets[i]
		if t.PaymentStatus.Holds() {
			view.Tickets = append(view.Tickets, t.Public())
			view.TakenNumbers = append(view.TakenNumbers, t.SelectedNumber)
		}
	}
	sort.Strings(view.TakenNumbers)
	return view, nil
}

func (s *LotteryService) Window(ctx context.Context, code string) (Window, error) {
	l, err := s.store.GetLotteryByShareCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Window{}, ErrLotteryNotFound
		}
		return Window{}, &StoreError{Op: "get lottery by code", Err: err}
	}
	return s.window.Evaluate(l, s.now()), nil
}

// ListTickets returns the lottery tickets, optionally filtered, with a per-status count of all tickets.
func (s *LotteryService) ListTickets(ctx context.Context, lotteryId string, status string) (*TicketList, error) {
	if _, err := s.Get(ctx, lotteryId); err != nil {
		return nil, err
	}
	var filter model.PaymentStatus
	if status != "" {
		filter = model.PaymentStatus(strings.ToLower(status))
		if !filter.Valid() {
			return nil, &ValidationError{Field: "status", Message: "unknown payment status " + status}
		}
	}
	all, err := s.store.ListTickets(ctx, lotteryId)
	if err != nil {
		return nil, &StoreError{Op: "list tickets", Err: err}
	}
	list := &TicketList{Tickets: []model.Ticket{}, Breakdown: make(map[model.PaymentStatus]int)}
	for _, t := range all {
		list.Breakdown[t.PaymentStatus]++
		if filter == "" || t.PaymentStatus == filter {
			list.Tickets = append(list.Tickets, t)
		}
	}
	return list, nil
}

// Dashboard lists the lotteries created by an organizer, newest first. Revenue counts verified payments only.
func (s *LotteryService) Dashboard(ctx context.Context, organizerId string) (*OrganizerDashboard, error) {
	organizerId = strings.TrimSpace(organizerId)
	if organizerId == "" {
		return nil, &ValidationError{Field: "createdBy", Message: "organizer is required"}
	}
	lotteries, err := s.store.ListLotteries(ctx, store.LotteryFilter{OrganizerId: organizerId})
	if err != nil {
		return nil, &StoreError{Op: "list lotteries", Err: err}
	}
	counts, err := s.store.CountTickets(ctx, lotteryIds(lotteries))
	if err != nil {
		return nil, &StoreError{Op: "count tickets", Err: err}
	}
	dashboard := &OrganizerDashboard{Lotteries: make([]LotterySummary, 0, len(lotteries)), TotalRevenue: decimal.Zero}
	for _, l := range lotteries {
		c := counts[l.Id]
		summary := LotterySummary{
			Lottery:          l,
			Active:           !l.IsDrawn(),
			PendingPayments:  c[model.PaymentVerifying],
			VerifiedPayments: c[model.PaymentVerified],
		}
		summary.Revenue = l.TicketPrice.Mul(decimal.NewFromInt(int64(summary.VerifiedPayments)))
		if l.WinnerNumber != nil {
			winner, err := s.store.FindHeldTicket(ctx, l.Id, *l.WinnerNumber)
			switch {
			case err == nil:
				summary.Winner = winner
			case !errors.Is(err, store.ErrNotFound):
				return nil, &StoreError{Op: "get winning ticket", Err: err}
			}
		}
		if summary.Active {
			dashboard.ActiveCount++
		} else {
			dashboard.CompletedCount++
		}
		dashboard.TotalRevenue = dashboard.TotalRevenue.Add(summary.Revenue)
		dashboard.TotalPendingPayments += summary.PendingPayments
		dashboard.TotalParticipants += summary.VerifiedPayments
		dashboard.Lotteries = append(dashboard.Lotteries, summary)
	}
	return dashboard, nil
}

// Explore lists the lotteries still open to participants, soonest draw first.
func (s *LotteryService) Explore(ctx context.Context) ([]OpenLottery, error) {
	lotteries, err := s.store.ListLotteries(ctx, store.LotteryFilter{OpenAfter: s.now()})
	if err != nil {
		return nil, &StoreError{Op: "list open lotteries", Err: err}
	}
	counts, err := s.store.CountTickets(ctx, lotteryIds(lotteries))
	if err != nil {
		return nil, &StoreError{Op: "count tickets", Err: err}
	}
	open := make([]OpenLottery, len(lotteries))
	for i, l := range lotteries {
		open[i] = OpenLottery{Lottery: l, VerifiedTickets: counts[l.Id][model.PaymentVerified]}
	}
	return open, nil
}

func lotteryIds(lotteries []model.Lottery) []string {
	ids := make([]string, len(lotteries))
	for i, l := range lotteries {
		ids[i] = l.Id
	}
	return ids
}
