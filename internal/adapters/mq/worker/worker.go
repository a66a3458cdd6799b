// Package worker runs queued athlete resyncs in the background.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/ffnsync/internal/domain/model"
	"github.com/okian/ffnsync/pkg/logger"
	"github.com/okian/ffnsync/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 2
	defaultJobTimeout     = 60 * time.Second
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = model.SyncRequest

// Syncer runs one athlete sync.
type Syncer interface {
	Sync(ctx context.Context, req model.SyncRequest) (model.Summary, error)
}

// Releaser frees the athlete's in-flight slot once its job has finished.
type Releaser interface {
	Unrecord(ctx context.Context, id string)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes queued jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	syncer   Syncer
	releaser Releaser
	name     string
	timeout  time.Duration

	processed atomic.Int64
	failed    atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker. releaser may be nil.
func NewInMemoryWorker(queue Queue, syncer Syncer, releaser Releaser, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		syncer:   syncer,
		releaser: releaser,
		name:     "worker",
		timeout:  defaultJobTimeout,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "resync failed",
					logger.String("athlete_id", j.AthleteID),
					logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Processed returns how many jobs succeeded.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Failed returns how many jobs failed.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

func (w *InMemoryWorker) process(ctx context.Context, j Job) error {
	if w.releaser != nil {
		defer w.releaser.Unrecord(context.WithoutCancel(ctx), j.AthleteID)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	summary, err := w.syncer.Sync(jobCtx, j)
	if err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerJob("failed")
		return fmt.Errorf("sync athlete %s: %w", j.AthleteID, err)
	}

	w.processed.Add(1)
	metrics.RecordWorkerJob("processed")
	w.logger.Info(ctx, "resync completed",
		logger.String("athlete_id", j.AthleteID),
		logger.Int("inserted", summary.Inserted),
		logger.Int("updated", summary.Updated),
		logger.Int("skipped", summary.Skipped),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	stopOnce sync.Once
	logger   logger.Logger
}

// NewPool creates a worker pool. opts apply to every worker.
func NewPool(workerCount int, queue Queue, syncer Syncer, releaser Releaser, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, syncer, releaser, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Processed returns the number of successful jobs across workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Failed returns the number of failed jobs across workers.
func (p *Pool) Failed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Failed()
	}
	return n
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop signals every worker and waits briefly for each.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		for _, w := range p.workers {
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
		for _, w := range p.workers {
			select {
			case <-w.done:
			case <-time.After(workerShutdownTimeout):
			}
		}
	})
}

// Shutdown closes the queue, then stops every worker.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
