// Package service wires the federation client, the results parser, the
// merge engine and the record store into the sync pipeline served by the
// HTTP API and the resync scheduler.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/ffnsync/internal/adapters/federation"
	syncqueue "github.com/okian/ffnsync/internal/adapters/mq/queue"
	workerpool "github.com/okian/ffnsync/internal/adapters/mq/worker"
	"github.com/okian/ffnsync/internal/adapters/repository"
	"github.com/okian/ffnsync/internal/domain/dedupe"
	"github.com/okian/ffnsync/internal/domain/merge"
	"github.com/okian/ffnsync/internal/domain/model"
	"github.com/okian/ffnsync/internal/domain/parser"
	"github.com/okian/ffnsync/pkg/logger"
	"github.com/okian/ffnsync/pkg/metrics"
)

// Sync outcomes reported to metrics.
const (
	outcomeOK       = "ok"
	outcomeUpstream = "upstream_error"
	outcomeMerge    = "merge_error"
)

// Fetcher downloads an athlete's federation results page.
type Fetcher interface {
	FetchResults(ctx context.Context, iuf string) (string, error)
}

// Service implements the sync pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	ownsStore  bool
	fetcher    Fetcher
	parser     *parser.Parser
	engine     *merge.Engine
	guard      dedupe.Deduper
	syncQueue  syncqueue.Queue
	workerPool *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int
	guardSize   int
	syncTimeout time.Duration
	mergePolicy merge.Policy

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of resync workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the resync queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithGuardSize caps the number of athletes syncing at once.
func WithGuardSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.guardSize = size
		}
	}
}

// WithSyncTimeout bounds each queued resync.
func WithSyncTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.syncTimeout = d
		}
	}
}

// WithMergePolicy selects what a storage failure does to a batch.
func WithMergePolicy(p merge.Policy) Option {
	return func(s *Service) {
		s.mergePolicy = p
	}
}

// WithStore sets the record store. The caller keeps ownership and closes it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFetcher sets the results page source.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: 2,
		queueSize:   1000,
		guardSize:   10000,
		syncTimeout: 60 * time.Second,
		mergePolicy: merge.AbortOnError,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the missing components and starts the resync workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting sync service...")

	if s.store == nil || s.ownsStore {
		s.store = repository.NewMemoryStore(ctx)
		s.ownsStore = true
		s.logger.Info(ctx, "using in-memory record store")
	}
	if s.fetcher == nil {
		s.fetcher = federation.NewClient(federation.WithLogger(s.logger.Named("federation")))
	}
	s.parser = parser.New(parser.WithLogger(s.logger.Named("parser")))
	s.engine = merge.New(s.store,
		merge.WithPolicy(s.mergePolicy),
		merge.WithLogger(s.logger.Named("merge")))
	s.guard = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.guardSize))
	s.syncQueue = syncqueue.NewInMemoryQueue(syncqueue.WithCapacity(s.queueSize))

	s.workerPool = workerpool.NewPool(s.workerCount, s.syncQueue, queuedSyncer{s}, s.guard,
		workerpool.WithJobTimeout(s.syncTimeout),
		workerpool.WithLogger(s.logger.Named("worker")))
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "sync service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("guardSize", s.guardSize),
		logger.String("mergePolicy", s.mergePolicy.String()),
	)
	return nil
}

// Stop shuts down the resync workers. Queued resyncs are dropped; a running
// one finishes first.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping sync service...")

	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}
	if s.ownsStore && s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "sync service stopped")
}

// Sync fetches, parses and merges one athlete's federation results. Only one
// sync per athlete runs at a time; a concurrent request fails with
// ErrSyncInProgress.
func (s *Service) Sync(ctx context.Context, req model.SyncRequest) (model.Summary, error) {
	req, err := validate(req)
	if err != nil {
		return model.Summary{}, err
	}
	if !s.isStarted() {
		return model.Summary{}, ErrNotStarted
	}

	if err := s.guard.TryAcquire(ctx, req.AthleteID); err != nil {
		if errors.Is(err, dedupe.ErrFull) {
			return model.Summary{}, fmt.Errorf("%w: %w", ErrOverloaded, err)
		}
		return model.Summary{}, fmt.Errorf("%w: %s", ErrSyncInProgress, req.AthleteID)
	}
	metrics.UpdateInflightSyncs(s.guard.Size())
	defer func() {
		s.guard.Unrecord(context.WithoutCancel(ctx), req.AthleteID)
		metrics.UpdateInflightSyncs(s.guard.Size())
	}()

	return s.runSync(ctx, req)
}

// runSync is the pipeline itself; the caller holds the athlete's guard slot.
func (s *Service) runSync(ctx context.Context, req model.SyncRequest) (model.Summary, error) {
	start := time.Now()
	log := s.logger.Named("sync")

	page, err := s.fetcher.FetchResults(ctx, req.IUF)
	if err != nil {
		metrics.RecordSyncRun(outcomeUpstream, msSince(start))
		return model.Summary{}, fmt.Errorf("fetch results for athlete %s: %w", req.AthleteID, err)
	}

	records, stats := s.parser.Parse(page)
	summary, err := s.engine.Apply(ctx, req.AthleteID, req.AthleteName, records)
	if err != nil {
		metrics.RecordSyncRun(outcomeMerge, msSince(start))
		log.Error(ctx, "merge aborted",
			logger.String("athlete_id", req.AthleteID),
			logger.Int("inserted", summary.Inserted),
			logger.Int("updated", summary.Updated),
			logger.Error(err))
		return summary, err
	}

	now := time.Now().UTC()
	if err := s.store.UpsertAthlete(ctx, model.Athlete{
		ID:           req.AthleteID,
		Name:         req.AthleteName,
		IUF:          req.IUF,
		LastSyncedAt: &now,
	}); err != nil {
		log.Warn(ctx, "failed to register athlete", logger.String("athlete_id", req.AthleteID), logger.Error(err))
	}

	metrics.RecordSyncRun(outcomeOK, msSince(start))
	log.Info(ctx, "sync completed",
		logger.String("athlete_id", req.AthleteID),
		logger.Int("parsed", stats.Unique),
		logger.Int("discarded", stats.Discarded),
		logger.Int("inserted", summary.Inserted),
		logger.Int("updated", summary.Updated),
		logger.Int("skipped", summary.Skipped),
		logger.Int("failed", summary.Failed),
		logger.Duration("elapsed", time.Since(start)))
	return summary, nil
}

// queuedSyncer runs jobs taken off the resync queue. The guard slot was
// taken at enqueue time and is released by the worker.
type queuedSyncer struct {
	s *Service
}

func (q queuedSyncer) Sync(ctx context.Context, req model.SyncRequest) (model.Summary, error) {
	if !q.s.isStarted() {
		return model.Summary{}, ErrNotStarted
	}
	return q.s.runSync(ctx, req)
}

// EnqueueSync schedules a background sync. It returns false when the
// request is invalid, the athlete is already queued or running, or the
// queue is full.
func (s *Service) EnqueueSync(ctx context.Context, req model.SyncRequest) bool {
	req, err := validate(req)
	if err != nil || !s.isStarted() {
		return false
	}
	if s.guard.SeenAndRecord(ctx, req.AthleteID) {
		s.logger.Debug(ctx, "athlete already syncing, not queued", logger.String("athlete_id", req.AthleteID))
		return false
	}
	if !s.syncQueue.Enqueue(ctx, req) {
		s.guard.Unrecord(ctx, req.AthleteID)
		return false
	}
	return true
}

// ResyncAll queues every registered athlete and returns how many were queued.
func (s *Service) ResyncAll(ctx context.Context) (int, error) {
	if !s.isStarted() {
		return 0, ErrNotStarted
	}
	athletes, err := s.store.ListAthletes(ctx)
	if err != nil {
		return 0, fmt.Errorf("list athletes: %w", err)
	}

	queued := 0
	for _, a := range athletes {
		if s.EnqueueSync(ctx, model.SyncRequest{AthleteID: a.ID, AthleteName: a.Name, IUF: a.IUF}) {
			queued++
		}
	}
	s.logger.Info(ctx, "resync queued",
		logger.Int("athletes", len(athletes)),
		logger.Int("queued", queued))
	return queued, nil
}

// Parse runs the results parser alone.
func (s *Service) Parse(_ context.Context, page string) ([]model.ParsedRecord, parser.Stats) {
	p := s.parser
	if p == nil {
		p = parser.New()
	}
	return p.Parse(page)
}

// Records returns an athlete's stored records.
func (s *Service) Records(ctx context.Context, athleteID string) ([]model.StoredRecord, error) {
	athleteID = strings.TrimSpace(athleteID)
	if athleteID == "" {
		return nil, fmt.Errorf("%w: athlete_id is required", ErrBadRequest)
	}
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.store.ListRecords(ctx, athleteID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"guardSize":   s.guardSize,
		"mergePolicy": s.mergePolicy.String(),
	}

	if s.started {
		stats["queueLength"] = s.syncQueue.Len(ctx)
		stats["queueCapacity"] = s.syncQueue.Cap()
		stats["inFlight"] = s.guard.Size()
		stats["processed"] = s.workerPool.Processed()
		stats["failed"] = s.workerPool.Failed()
		if n, err := s.store.Count(ctx); err == nil {
			stats["totalRecords"] = n
			metrics.UpdateStoredRecords(n)
		}
		metrics.UpdateQueueSize(s.syncQueue.Len(ctx))
	}
	return stats
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func validate(req model.SyncRequest) (model.SyncRequest, error) {
	req.AthleteID = strings.TrimSpace(req.AthleteID)
	req.AthleteName = strings.TrimSpace(req.AthleteName)
	req.IUF = strings.TrimSpace(req.IUF)
	if req.AthleteID == "" || req.IUF == "" {
		return req, fmt.Errorf("%w: athlete_id and iuf are required", ErrBadRequest)
	}
	return req, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
