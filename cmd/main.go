package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/okian/ffnsync/internal/adapters/federation"
	"github.com/okian/ffnsync/internal/adapters/http/api"
	"github.com/okian/ffnsync/internal/adapters/repository"
	app "github.com/okian/ffnsync/internal/app"
	"github.com/okian/ffnsync/internal/config"
	"github.com/okian/ffnsync/internal/domain/merge"
	"github.com/okian/ffnsync/internal/scheduler"
	"github.com/okian/ffnsync/pkg/logger"
	"github.com/okian/ffnsync/pkg/metrics"
	"github.com/okian/ffnsync/pkg/reporting"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 90 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
	reportingFlushTimeout  = 2 * time.Second
	resyncQueueTimeout     = 30 * time.Second
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// The logger may not be initialized yet
		_, _ = os.Stderr.WriteString("ffnsync: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := reporting.Init(reporting.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     "ffnsync@" + version,
	}, log.Named("reporting")); err != nil {
		log.Warn(ctx, "error reporting unavailable", logger.Error(err))
	}
	defer reporting.Flush(reportingFlushTimeout)

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "failed to close record store", logger.Error(err))
		}
	}()

	svc := newService(cfg, store, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	sched, err := newScheduler(cfg, svc, log)
	if err != nil {
		return err
	}
	if sched != nil {
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	server := api.NewServer(svc, svc,
		api.WithLogger(log.Named("http")),
		api.WithMaxParseBytes(cfg.MaxBodyBytes))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(ctx),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		defer reporting.RecoverAndCapture()
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// openStore opens the SQLite store at db_path, or an in-memory store when
// no path is configured.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	opts := []repository.Option{repository.WithLogger(log.Named("repository"))}
	if cfg.DBPath == "" {
		log.Info(ctx, "no db_path configured; records are kept in memory")
		return repository.NewMemoryStore(ctx, opts...), nil
	}
	store, err := repository.NewSQLiteStore(ctx, cfg.DBPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	log.Info(ctx, "record store opened", logger.String("db_path", cfg.DBPath))
	return store, nil
}

// newService builds the sync service from configuration.
func newService(cfg *config.Config, store repository.Store, log logger.Logger) *app.Service {
	clientOpts := []federation.Option{
		federation.WithBaseURL(cfg.FFNBaseURL),
		federation.WithTimeout(cfg.FetchTimeout()),
		federation.WithMaxBodyBytes(cfg.MaxBodyBytes),
		federation.WithLogger(log.Named("federation")),
	}
	if cfg.UserAgent != "" {
		clientOpts = append(clientOpts, federation.WithUserAgent(cfg.UserAgent))
	}

	policy := merge.AbortOnError
	if cfg.MergeContinueOnError {
		policy = merge.ContinueOnError
	}

	return app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithFetcher(federation.NewClient(clientOpts...)),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithGuardSize(cfg.GuardSize),
		app.WithSyncTimeout(cfg.SyncTimeout()),
		app.WithMergePolicy(policy),
	)
}

// newScheduler registers the periodic resync. It returns nil when no
// schedule is configured.
func newScheduler(cfg *config.Config, svc scheduler.Resyncer, log logger.Logger) (*scheduler.Scheduler, error) {
	if cfg.ResyncSchedule == "" {
		return nil, nil
	}
	sched := scheduler.New(log)
	job := scheduler.NewResyncJob(svc, resyncQueueTimeout, log)
	if err := sched.AddJob(cfg.ResyncSchedule, job); err != nil {
		return nil, fmt.Errorf("invalid resync_schedule: %w", err)
	}
	return sched, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// updateServiceMetrics updates service-level metrics. GetStats already
// refreshes the queue and record gauges.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if inFlight, ok := stats["inFlight"].(int64); ok {
		metrics.UpdateInflightSyncs(inFlight)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
	if capacity, ok := stats["queueCapacity"].(int); ok {
		metrics.UpdateQueueCapacity(capacity)
	}
}
