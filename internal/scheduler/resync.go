package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/ffnsync/pkg/logger"
	"github.com/okian/ffnsync/pkg/metrics"
)

// Resyncer queues a background sync for every registered athlete.
type Resyncer interface {
	ResyncAll(ctx context.Context) (int, error)
}

// ResyncJob periodically refreshes every registered athlete from the federation.
type ResyncJob struct {
	resyncer Resyncer
	timeout  time.Duration
	log      logger.Logger
}

// NewResyncJob creates a resync job. timeout bounds the listing and queueing
// step, not the syncs themselves, which run on the worker pool.
func NewResyncJob(r Resyncer, timeout time.Duration, log logger.Logger) *ResyncJob {
	if log == nil {
		log = logger.Get()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ResyncJob{
		resyncer: r,
		timeout:  timeout,
		log:      log.Named("resync"),
	}
}

// Name returns the job name.
func (j *ResyncJob) Name() string {
	return "resync_all"
}

// Run queues the resync sweep.
func (j *ResyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	metrics.RecordScheduledRun()
	queued, err := j.resyncer.ResyncAll(ctx)
	if err != nil {
		return fmt.Errorf("resync all: %w", err)
	}
	j.log.Info(ctx, "resync sweep queued", logger.Int("queued", queued))
	return nil
}
