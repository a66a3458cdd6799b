// Package reporting forwards unexpected errors and panics to Sentry.
// With no DSN configured every function is a no-op.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/okian/ffnsync/pkg/logger"
)

// Headers removed from every event before it leaves the process.
var scrubbedHeaders = []string{"Authorization", "Apikey", "Cookie"}

var enabled atomic.Bool

// Config holds the Sentry client settings.
type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
}

// Option adjusts the Sentry client options before initialization.
type Option func(*sentry.ClientOptions)

// WithTransport replaces the HTTP transport used to deliver events.
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) {
		o.Transport = t
	}
}

// Init configures the global Sentry client. An empty DSN disables reporting.
func Init(cfg Config, log logger.Logger, opts ...Option) error {
	if log == nil {
		log = logger.Get()
	}
	ctx := context.Background()

	if cfg.DSN == "" {
		enabled.Store(false)
		log.Warn(ctx, "sentry DSN not configured, error reporting disabled")
		return nil
	}

	options := sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		TracesSampleRate: cfg.TracesSampleRate,
		BeforeSend:       scrubEvent,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		log.Error(ctx, "failed to initialize sentry", logger.Error(err))
		return fmt.Errorf("sentry init: %w", err)
	}
	enabled.Store(true)
	log.Info(ctx, "sentry initialized",
		logger.String("environment", cfg.Environment),
		logger.String("release", cfg.Release))
	return nil
}

// Enabled reports whether events are being sent.
func Enabled() bool {
	return enabled.Load()
}

func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request == nil || event.Request.Headers == nil {
		return event
	}
	for key := range event.Request.Headers {
		for _, h := range scrubbedHeaders {
			if strings.EqualFold(key, h) {
				delete(event.Request.Headers, key)
			}
		}
	}
	return event
}

// CaptureError reports err with optional tags.
func CaptureError(err error, tags map[string]string) {
	if err == nil || !Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// CaptureRequestError reports err together with the request that produced it.
func CaptureRequestError(r *http.Request, err error) {
	if err == nil || !Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		if r != nil {
			scope.SetRequest(r)
			scope.SetTag("path", r.URL.Path)
		}
		sentry.CaptureException(err)
	})
}

// PanicError turns a recovered value into an error.
func PanicError(recovered interface{}) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", recovered)
}

// RecoverAndCapture reports a panic and re-panics. Use it deferred at the top
// of goroutines that have no other recovery.
func RecoverAndCapture() {
	if r := recover(); r != nil {
		CaptureError(PanicError(r), map[string]string{"kind": "panic"})
		Flush(2 * time.Second)
		panic(r)
	}
}

// Flush waits for buffered events to be delivered.
func Flush(timeout time.Duration) bool {
	if !Enabled() {
		return true
	}
	return sentry.Flush(timeout)
}
