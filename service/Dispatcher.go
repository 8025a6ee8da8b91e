package service

import (
	"context"
	"time"

	"github.com/phuslu/log"

	"raffle-service/metrics"
	"raffle-service/model"
	"raffle-service/notification"
)

const DefaultSendDelay = 600 * time.Millisecond

// Job is one queued notification.
type Job struct {
	To       notification.Recipient
	Kind     notification.Kind
	Payload  notification.Payload
	IsWinner bool
}

// Dispatcher sends jobs one at a time over a single channel, pausing Delay between consecutive sends.
type Dispatcher struct {
	channel notification.Channel
	delay   time.Duration
	wait    func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(channel notification.Channel, delay time.Duration) *Dispatcher {
	return &Dispatcher{channel: channel, delay: delay, wait: sleep}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Notify sends a single job and records the outcome.
func (d *Dispatcher) Notify(ctx context.Context, job Job) error {
	err := d.channel.Send(ctx, job.To, job.Kind, job.Payload)
	result := model.DeliverySent
	if err != nil {
		result = model.DeliveryFailed
		log.Warn().Str("Service", "dispatcher").Str("kind", string(job.Kind)).Str("to", job.To.Email).Err(err).Msg("notification failed")
	}
	metrics.NotificationsTotal.WithLabelValues(string(job.Kind), result).Inc()
	return err
}

// Run attempts every job exactly once, in order. A failed send never stops the queue; once ctx is done the
// remaining jobs are recorded as failed without being attempted.
func (d *Dispatcher) Run(ctx context.Context, jobs []Job) model.DispatchReport {
	report := model.DispatchReport{Outcomes: make([]model.NotificationOutcome, 0, len(jobs))}
	for i, job := range jobs {
		outcome := model.NotificationOutcome{Email: job.To.Email, Status: model.DeliverySent, IsWinner: job.IsWinner}
		err := ctx.Err()
		if err == nil {
			err = d.Notify(ctx, job)
		}
		if err != nil {
			outcome.Status = model.DeliveryFailed
			outcome.Error = err.Error()
			report.Failed++
		} else {
			report.Sent++
		}
		report.Outcomes = append(report.Outcomes, outcome)
		if i < len(jobs)-1 && ctx.Err() == nil {
			// cancellation surfaces through ctx.Err() on the next item
			_ = d.wait(ctx, d.delay)
		}
	}
	return report
}
