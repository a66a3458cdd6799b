package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/okian/ffnsync/internal/domain/types"
	"github.com/okian/ffnsync/pkg/logger"
	"github.com/okian/ffnsync/pkg/metrics"
	"github.com/okian/ffnsync/pkg/reporting"
)

// Cross-origin policy shared by every route.
var (
	allowedMethods = []string{http.MethodPost, http.MethodOptions, http.MethodGet}
	allowedHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}
)

const corsMaxAge = 300

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Capture the status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Microseconds()) / 1000
		statusCodeStr := strconv.Itoa(wrapped.statusCode)

		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}

// crossOrigin tags every response, with or without an Origin header, with
// the permissive policy and answers any OPTIONS request with 200.
// cors.Handler validates real pre-flights and passes them through so the
// full method and header lists are always sent.
func crossOrigin() []func(http.Handler) http.Handler {
	methods := strings.Join(allowedMethods, ", ")
	headers := strings.Join(allowedHeaders, ", ")
	anyOrigin := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	return []func(http.Handler) http.Handler{
		cors.Handler(cors.Options{
			AllowedOrigins:     []string{"*"},
			AllowedMethods:     allowedMethods,
			AllowedHeaders:     allowedHeaders,
			MaxAge:             corsMaxAge,
			OptionsPassthrough: true,
		}),
		anyOrigin,
	}
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug(r.Context(), "http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// recoverer turns a handler panic into a 500 carrying a message only, and
// reports it.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared as panic value
				panic(rec)
			}
			err := WrapKind("api.recover", ErrInternal, reporting.PanicError(rec))
			s.logger.Error(r.Context(), "handler panicked",
				logger.String("path", r.URL.Path),
				logger.String("request_id", middleware.GetReqID(r.Context())),
				logger.Error(err))
			reporting.CaptureRequestError(r, err)
			writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{
				Status: types.StatusError,
				Code:   codeInternal,
				Error:  ErrInternal.Error(),
			})
		}()
		next.ServeHTTP(w, r)
	})
}
