// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/okian/ffnsync/internal/adapters/http/swagger"
	"github.com/okian/ffnsync/internal/domain/model"
	"github.com/okian/ffnsync/internal/domain/parser"
	"github.com/okian/ffnsync/internal/domain/types"
	"github.com/okian/ffnsync/pkg/logger"
	"github.com/okian/ffnsync/pkg/reporting"
)

// Request body limits.
const (
	maxSyncBodyBytes     = 64 << 10
	defaultMaxParseBytes = 5 << 20
)

// Syncer runs one athlete's sync inline.
type Syncer interface {
	Sync(ctx context.Context, req model.SyncRequest) (model.Summary, error)
}

// PageParser parses a federation results page without storing anything.
type PageParser interface {
	Parse(ctx context.Context, page string) ([]model.ParsedRecord, parser.Stats)
}

// RecordReader reads an athlete's stored records.
type RecordReader interface {
	Records(ctx context.Context, athleteID string) ([]model.StoredRecord, error)
}

// Resyncer queues a background sync for every registered athlete.
type Resyncer interface {
	ResyncAll(ctx context.Context) (int, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Syncer
	PageParser
	RecordReader
	Resyncer
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	syncHandler    *SyncHandler
	parseHandler   *ParseHandler
	recordsHandler *RecordsHandler
	resyncHandler  *ResyncHandler
	logger         logger.Logger
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	logger        logger.Logger
	maxParseBytes int64
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxParseBytes caps the size of pages accepted by POST /parse.
func WithMaxParseBytes(n int64) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxParseBytes = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := serverOptions{maxParseBytes: defaultMaxParseBytes}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("http")
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		syncHandler:    NewSyncHandler(deps, o.logger),
		parseHandler:   NewParseHandler(deps, o.maxParseBytes, o.logger),
		recordsHandler: NewRecordsHandler(deps, o.logger),
		resyncHandler:  NewResyncHandler(deps, o.logger),
		logger:         o.logger,
	}
}

// Handler builds the router with middleware, API routes and docs.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverer)
	r.Use(crossOrigin()...)

	s.Register(ctx, r)
	swagger.Register(ctx, r)
	return r
}

// Register attaches all API routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Post("/sync", MetricsMiddleware(s.syncHandler.HandleSync, "sync"))
	r.Post("/parse", MetricsMiddleware(s.parseHandler.HandleParse, "parse"))
	r.Post("/resync", MetricsMiddleware(s.resyncHandler.HandleResync, "resync"))
	r.Get("/athletes/{athleteID}/records", MetricsMiddleware(s.recordsHandler.HandleGetRecords, "records"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its status and writes the error body. Server-side
// failures are logged and reported.
func writeError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err))
		if status == http.StatusInternalServerError {
			reporting.CaptureRequestError(r, err)
		}
	}
	writeJSON(w, status, types.ErrorResponse{
		Status: types.StatusError,
		Code:   code,
		Error:  err.Error(),
	})
}
