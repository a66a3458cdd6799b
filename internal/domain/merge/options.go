package merge

import (
	"time"

	"github.com/okian/ffnsync/pkg/logger"
)

// Policy decides what a storage failure does to the rest of a batch.
type Policy int

const (
	// AbortOnError stops at the first failing record. Records already
	// written stay written.
	AbortOnError Policy = iota
	// ContinueOnError logs the failing record, counts it as failed and
	// moves on.
	ContinueOnError
)

func (p Policy) String() string {
	if p == ContinueOnError {
		return "continue"
	}
	return "abort"
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy sets the storage-failure policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
