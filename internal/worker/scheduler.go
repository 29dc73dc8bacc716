// Package worker runs the periodic jobs of the rental service: the overdue
// sweep, reminder queueing, outbox delivery and storage housekeeping.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rentalcore/pkg/logger"
)

// Job is a named unit of periodic work.
type Job struct {
	Name string
	// Spec is a cron expression; seconds are optional.
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs jobs on their cron schedules. A job only runs when the
// locker grants it, so several worker replicas never run the same job at
// the same time.
type Scheduler struct {
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	log     *logger.Logger

	mu   sync.RWMutex
	ctx  context.Context
	jobs map[string]Job
}

// NewScheduler creates a scheduler. A nil locker runs jobs unguarded.
func NewScheduler(locker Locker, lockTTL time.Duration, log *logger.Logger) *Scheduler {
	if locker == nil {
		locker = NoopLocker{}
	}
	if log == nil {
		log = logger.Default()
	}
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithParser(parser),
		),
		locker:  locker,
		lockTTL: lockTTL,
		log:     log.WithComponent("scheduler"),
		ctx:     context.Background(),
		jobs:    make(map[string]Job),
	}
}

// Register adds a job. An empty spec registers the job for RunNow only.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	if job.Spec != "" {
		if _, err := s.cron.AddFunc(job.Spec, func() { _ = s.run(s.baseContext(), job) }); err != nil {
			return fmt.Errorf("schedule job %q: %w", job.Name, err)
		}
	}
	s.jobs[job.Name] = job
	s.log.Infow("job registered", "job", job.Name, "spec", job.Spec)
	return nil
}

// RunNow runs a registered job immediately, under the same lock as its
// scheduled runs.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.run(ctx, job)
}

// Start begins the cron loop. Scheduled runs use ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.log.Infow("starting scheduler", "jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.log.Info("stopping scheduler")
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	unlock, acquired, err := s.locker.TryLock(ctx, "job:"+job.Name, s.lockTTL)
	if err != nil {
		s.log.Errorw("job lock failed", "job", job.Name, "error", err)
		return err
	}
	if !acquired {
		s.log.Debugw("job skipped, held elsewhere", "job", job.Name)
		return nil
	}
	defer unlock()

	start := time.Now()
	err = runWithRecovery(ctx, job)
	if err != nil {
		s.log.Errorw("job failed", "job", job.Name, "duration", time.Since(start), "error", err)
		return err
	}
	s.log.Debugw("job finished", "job", job.Name, "duration", time.Since(start))
	return nil
}

func runWithRecovery(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "job panicked",
				"job", job.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.Run(ctx)
}
