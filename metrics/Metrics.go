package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DrawsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_draws_total",
		Help: "Draw attempts by outcome (winner, no_winner, already_drawn, error).",
	}, []string{"outcome"})

	DrawDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "raffle_draw_duration_ms",
		Help:    "Time spent selecting and committing a winner, notifications excluded.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_notifications_total",
		Help: "Notification send attempts by template kind and result.",
	}, []string{"kind", "result"})

	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_reservations_total",
		Help: "Reservation attempts by result, plus cancelled selections.",
	}, []string{"result"})
)
