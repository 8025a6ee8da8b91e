package model

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentVerifying PaymentStatus = "verifying"
	PaymentVerified  PaymentStatus = "verified"
	PaymentRejected  PaymentStatus = "rejected"
)

// Holds reports whether a ticket in this status blocks its number for other participants.
func (s PaymentStatus) Holds() bool {
	return s != PaymentRejected
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentVerifying, PaymentVerified, PaymentRejected:
		return true
	}
	return false
}

type Participant struct {
	UserId string `json:"user_id,omitempty"`
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Phone  string `json:"phone" validate:"required,regex=^[+\\d\\s\\-()]+$"`
}

type Ticket struct {
	Id              string        `json:"id"`
	LotteryId       string        `json:"lottery_id"`
	SelectedNumber  string        `json:"selected_number"`
	Participant     Participant   `json:"participant"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	ReceiptUrl      *string       `json:"receipt_url"`
	RejectionReason *string       `json:"rejection_reason"`
	CreatedAt       time.Time     `json:"created_at"`
	VerifiedAt      *time.Time    `json:"verified_at"`
	RejectedAt      *time.Time    `json:"rejected_at"`
}

type PublicTicket struct {
	SelectedNumber  string        `json:"selected_number"`
	ParticipantName string        `json:"participant_name"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
}

func (t *Ticket) Public() PublicTicket {
	return PublicTicket{SelectedNumber: t.SelectedNumber, ParticipantName: t.Participant.Name, PaymentStatus: t.PaymentStatus}
}

// TicketReservedEvent is published for authenticated participants after a successful reservation.
type TicketReservedEvent struct {
	UserId    string    `json:"user_id"`
	LotteryId string    `json:"lottery_id"`
	TicketIds []string  `json:"ticket_ids"`
	Numbers   []string  `json:"numbers"`
	At        time.Time `json:"at"`
}
