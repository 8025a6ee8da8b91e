package notification

import (
	"context"
	"errors"
	"time"
)

type Kind string

const (
	PaymentConfirmation Kind = "payment_confirmation"
	PaymentApproved     Kind = "payment_approved"
	PaymentRejected     Kind = "payment_rejected"
	Winner              Kind = "winner"
	NonWinner           Kind = "non_winner"
	NewPaymentAlert     Kind = "new_payment_alert"
)

var Kinds = []Kind{PaymentConfirmation, PaymentApproved, PaymentRejected, Winner, NonWinner, NewPaymentAlert}

var ErrNoAddress = errors.New("recipient has no address for this channel")

type Recipient struct {
	Name  string
	Email string
	Phone string
}

// Payload is the data a template may reference. Unused fields are left empty.
type Payload struct {
	LotteryTitle     string
	PrizeDescription string
	ShareCode        string
	DrawDate         time.Time
	TicketPrice      string
	Numbers          []string
	WinningNumber    string
	Reason           string
	ParticipantName  string
	ParticipantEmail string
	ReceiptUrl       string
	OrganizerName    string
	OrganizerEmail   string
	OrganizerPhone   string
	Link             string
}

// Channel delivers one rendered notification. Implementations must be safe for sequential reuse.
type Channel interface {
	Send(ctx context.Context, to Recipient, kind Kind, payload Payload) error
}
