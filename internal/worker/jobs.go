package worker

import (
	"context"
	"time"

	"rentalcore/pkg/logger"
)

// Job names.
const (
	JobOverdueSweep = "overdue_sweep"
	JobReminders    = "reminders"
	JobOutbox       = "outbox_relay"
)

// RentalService is the part of the rental service driven by the worker.
type RentalService interface {
	Today() time.Time
	SweepOverdue(ctx context.Context, today time.Time) (int, error)
	QueueReminders(ctx context.Context, today time.Time) (int, error)
}

// Relay delivers a batch of outbox messages and reports how many it sent.
type Relay interface {
	ProcessBatch(ctx context.Context) (int, error)
}

// OverdueJob flags agreements past their expected return date.
func OverdueJob(spec string, svc RentalService) Job {
	return Job{
		Name: JobOverdueSweep,
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, err := svc.SweepOverdue(ctx, svc.Today())
			return err
		},
	}
}

// ReminderJob queues reminders for agreements due tomorrow or late.
func ReminderJob(spec string, svc RentalService) Job {
	return Job{
		Name: JobReminders,
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, err := svc.QueueReminders(ctx, svc.Today())
			return err
		},
	}
}

// maxOutboxBatches bounds one relay run so a flood of events cannot hold
// the job lock indefinitely.
const maxOutboxBatches = 50

// OutboxJob drains the outbox batch by batch until it is empty.
func OutboxJob(spec string, relay Relay) Job {
	return Job{
		Name: JobOutbox,
		Spec: spec,
		Run: func(ctx context.Context) error {
			total := 0
			for range maxOutboxBatches {
				n, err := relay.ProcessBatch(ctx)
				if err != nil {
					return err
				}
				total += n
				if n == 0 || ctx.Err() != nil {
					break
				}
			}
			if total > 0 {
				logger.Debug(ctx, "outbox drained", "delivered", total)
			}
			return nil
		},
	}
}

// CleanupJob wraps a housekeeping function that reports affected rows.
func CleanupJob(name, spec string, fn func(ctx context.Context) (int64, error)) Job {
	return Job{
		Name: name,
		Spec: spec,
		Run: func(ctx context.Context) error {
			n, err := fn(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info(ctx, "cleanup finished", "job", name, "rows", n)
			}
			return nil
		},
	}
}
