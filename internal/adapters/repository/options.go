package repository

import (
	"time"

	"github.com/okian/ffnsync/pkg/logger"
)

type options struct {
	metricsUpdateInterval time.Duration
	logger                logger.Logger
	now                   func() time.Time
}

func defaultOptions() options {
	return options{
		metricsUpdateInterval: 5 * time.Second,
		now:                   time.Now,
	}
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
