package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type LotteryStatus string

const (
	LotteryActive    LotteryStatus = "active"
	LotteryCompleted LotteryStatus = "completed"
)

type Organizer struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type BankDetails struct {
	BankName    string `json:"bank_name"`
	BankAccount string `json:"bank_account"`
	BankAlias   string `json:"bank_alias,omitempty"`
}

// Lottery is one raffle. WinnerNumber is set at most once, together with the move to completed.
type Lottery struct {
	Id               string          `json:"id"`
	Organizer        Organizer       `json:"organizer"`
	PrizeTitle       string          `json:"prize_title"`
	PrizeDescription string          `json:"prize_description,omitempty"`
	DrawDate         time.Time       `json:"draw_date"`
	TicketPrice      decimal.Decimal `json:"ticket_price"`
	ShareCode        string          `json:"share_code"`
	Status           LotteryStatus   `json:"status"`
	WinnerNumber     *string         `json:"winner_number"`
	Bank             BankDetails     `json:"bank"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"-"`
}

func (l *Lottery) IsDrawn() bool {
	return l.Status == LotteryCompleted || l.WinnerNumber != nil
}

// LotteryView is the public participation page of a lottery. Tickets carry no participant contact data.
type LotteryView struct {
	Lottery
	Tickets      []PublicTicket `json:"tickets"`
	TakenNumbers []string       `json:"taken_numbers"`
}
