package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"raffle-service/model"
)

func TestWindowPolicyEvaluate(t *testing.T) {
	policy := DefaultWindowPolicy()
	draw := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	long := &model.Lottery{DrawDate: draw, CreatedAt: draw.Add(-72 * time.Hour), Status: model.LotteryActive}
	short := &model.Lottery{DrawDate: draw, CreatedAt: draw.Add(-90 * time.Minute), Status: model.LotteryActive}
	winner := "07"
	drawn := &model.Lottery{DrawDate: draw, CreatedAt: draw.Add(-72 * time.Hour), Status: model.LotteryCompleted, WinnerNumber: &winner}

	tests := []struct {
		description string
		lottery     *model.Lottery
		remaining   time.Duration
		allowed     bool
		reason      string
	}{
		{"well before the cutoff", long, 3 * time.Hour, true, ""},
		{"31 minutes left", long, 31 * time.Minute, true, ""},
		{"exactly 30 minutes left is closed", long, 30 * time.Minute, false, ReasonClosedForVerification},
		{"29 minutes left", long, 29 * time.Minute, false, ReasonClosedForVerification},
		{"short lottery keeps accepting inside the cutoff", short, 10 * time.Minute, true, ""},
		{"draw time reached", long, 0, false, ReasonLotteryEnded},
		{"draw time passed", short, -time.Minute, false, ReasonLotteryEnded},
		{"already drawn", drawn, 5 * time.Hour, false, ReasonLotteryEnded},
	}
	for _, test := range tests {
		w := policy.Evaluate(test.lottery, draw.Add(-test.remaining))
		assert.Equal(t, test.allowed, w.Allowed, test.description)
		assert.Equal(t, test.reason, w.Reason, test.description)
		if test.allowed {
			assert.NoError(t, w.Err(), test.description)
		} else {
			assert.ErrorIs(t, w.Err(), ErrParticipationClosed, test.description)
		}
	}
}

func TestWindowPolicyExactlyTwoHourLottery(t *testing.T) {
	draw := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	l := &model.Lottery{DrawDate: draw, CreatedAt: draw.Add(-2 * time.Hour), Status: model.LotteryActive}

	w := DefaultWindowPolicy().Evaluate(l, draw.Add(-10*time.Minute))
	assert.True(t, w.Allowed, "the cutoff applies only to lotteries longer than the minimum duration")
}
