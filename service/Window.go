package service

import (
	"time"

	"raffle-service/model"
)

const (
	ReasonLotteryEnded          = "lottery ended"
	ReasonClosedForVerification = "closed for payment verification"
)

// WindowPolicy closes participation Cutoff before the draw for lotteries scheduled longer than MinDuration.
type WindowPolicy struct {
	Cutoff      time.Duration
	MinDuration time.Duration
}

func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{Cutoff: 30 * time.Minute, MinDuration: 2 * time.Hour}
}

type Window struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Evaluate must be called on every reservation attempt; the answer depends on now.
func (p WindowPolicy) Evaluate(lottery *model.Lottery, now time.Time) Window {
	if lottery.IsDrawn() {
		return Window{Reason: ReasonLotteryEnded}
	}
	remaining := lottery.DrawDate.Sub(now)
	if remaining <= 0 {
		return Window{Reason: ReasonLotteryEnded}
	}
	total := lottery.DrawDate.Sub(lottery.CreatedAt)
	if total > p.MinDuration && remaining <= p.Cutoff {
		return Window{Reason: ReasonClosedForVerification}
	}
	return Window{Allowed: true}
}

func (w Window) Err() error {
	if w.Allowed {
		return nil
	}
	return &ClosedError{Reason: w.Reason}
}
