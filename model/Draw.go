package model

const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

type NotificationOutcome struct {
	Email    string `json:"email"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	IsWinner bool   `json:"isWinner"`
}

type DispatchReport struct {
	Sent     int                   `json:"emailsSent"`
	Failed   int                   `json:"emailsFailed"`
	Outcomes []NotificationOutcome `json:"emailResults"`
}

type Winner struct {
	TicketId string `json:"ticketId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Number   string `json:"number"`
	// AutoVerified marks a winner whose receipt was still under review at draw time.
	AutoVerified bool `json:"autoVerified"`
}

// DrawResult is returned by a draw. Winner is nil when no ticket was eligible.
type DrawResult struct {
	LotteryId         string                `json:"lotteryId"`
	Winner            *Winner               `json:"winner,omitempty"`
	NoWinner          bool                  `json:"noWinner"`
	TotalParticipants int                   `json:"totalParticipants"`
	EmailsSent        int                   `json:"emailsSent"`
	EmailsFailed      int                   `json:"emailsFailed"`
	EmailResults      []NotificationOutcome `json:"emailResults"`
	StatusBreakdown   map[PaymentStatus]int `json:"statusBreakdown,omitempty"`
}
