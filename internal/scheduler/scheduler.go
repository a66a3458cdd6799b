// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"

	"github.com/okian/ffnsync/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Job is a unit of scheduled work.
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs.
type Scheduler struct {
	cron *cron.Cron
	log  logger.Logger
}

// New creates a scheduler whose schedules carry a leading seconds field.
func New(log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Get()
	}
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.Named("scheduler"),
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info(context.Background(), "scheduler started", logger.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info(ctx, "scheduler stopped")
	case <-ctx.Done():
		s.log.Warn(ctx, "scheduler stopped before running jobs finished", logger.Error(ctx.Err()))
	}
}

// AddJob registers job under a cron schedule.
// Schedule examples:
//   - "0 0 3 * * *"  - every day at 03:00
//   - "@hourly"      - every hour
//   - "@every 30s"   - every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx := context.Background()
		s.log.Debug(ctx, "running job", logger.String("job", job.Name()))

		if err := job.Run(); err != nil {
			s.log.Error(ctx, "job failed", logger.String("job", job.Name()), logger.Error(err))
			return
		}
		s.log.Debug(ctx, "job completed", logger.String("job", job.Name()))
	})
	if err != nil {
		return fmt.Errorf("schedule %q for job %s: %w", schedule, job.Name(), err)
	}

	s.log.Info(context.Background(), "job registered",
		logger.String("schedule", schedule),
		logger.String("job", job.Name()))
	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info(context.Background(), "running job immediately", logger.String("job", job.Name()))
	return job.Run()
}
