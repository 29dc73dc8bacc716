package app

import (
	"context"
	"fmt"

	"rentalcore/internal/config"
	"rentalcore/internal/worker"
	"rentalcore/pkg/logger"
)

// NewScheduler registers every periodic job for the storage backend. The
// returned cleanup closes the job lock connection.
func NewScheduler(ctx context.Context, cfg *config.Config, s *Storage, svc *Services, log *logger.Logger) (*worker.Scheduler, func(), error) {
	var (
		locker  worker.Locker = worker.NoopLocker{}
		cleanup               = func() {}
	)
	if cfg.Redis.Addr != "" {
		rl := worker.NewRedisLocker(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := rl.Ping(ctx); err != nil {
			_ = rl.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		locker = rl
		cleanup = func() { _ = rl.Close() }
	}

	sched := worker.NewScheduler(locker, cfg.Worker.LockTTL, log)
	relay := s.Relay(cfg.Worker.OutboxBatchSize, worker.NewLogDispatcher(log))

	jobs := []worker.Job{
		worker.OverdueJob(cfg.Worker.OverdueSchedule, svc.Rentals),
		worker.ReminderJob(cfg.Worker.ReminderSchedule, svc.Rentals),
		worker.OutboxJob(cfg.Worker.OutboxSchedule, relay),
	}
	for _, m := range s.Maintenance() {
		jobs = append(jobs, worker.CleanupJob(m.Name, cfg.Worker.CleanupSchedule, m.Run))
	}

	for _, job := range jobs {
		if err := sched.Register(job); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return sched, cleanup, nil
}

// StartScheduler starts sched and, when configured, runs the overdue sweep
// once so a restart after midnight does not wait a day.
func StartScheduler(ctx context.Context, cfg *config.Config, sched *worker.Scheduler, log *logger.Logger) {
	sched.Start(ctx)
	if !cfg.Worker.SweepOnStart {
		return
	}
	if err := sched.RunNow(ctx, worker.JobOverdueSweep); err != nil {
		log.Errorw("initial overdue sweep failed", "error", err)
	}
}
