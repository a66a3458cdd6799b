// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New(ctx) builds a Config holding every default.
// - Load layers a YAML file and FFNSYNC_* environment variables on top.
// - Errors wrap this package's sentinels so callers can use errors.Is.
package config

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Supported log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file. Empty keeps records in memory.
	DBPath string `koanf:"db_path"`

	// FFNBaseURL is the federation results search page.
	FFNBaseURL string `koanf:"ffn_base_url"`

	// FetchTimeoutMS bounds one results page download.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// UserAgent overrides the federation client's User-Agent when set.
	UserAgent string `koanf:"user_agent"`

	// MaxBodyBytes caps a downloaded results page.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// QueueSize bounds the background resync queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of resync workers.
	WorkerCount int `koanf:"worker_count"`

	// GuardSize caps the number of athletes syncing at once.
	GuardSize int `koanf:"guard_size"`

	// SyncTimeoutMS bounds one background resync.
	SyncTimeoutMS int `koanf:"sync_timeout_ms"`

	// ResyncSchedule is a cron spec with a seconds field. Empty disables it.
	ResyncSchedule string `koanf:"resync_schedule"`

	// MergeContinueOnError keeps merging after a record fails to store.
	MergeContinueOnError bool `koanf:"merge_continue_on_error"`

	// SentryDSN enables error reporting when set.
	SentryDSN string `koanf:"sentry_dsn"`

	// SentryEnvironment tags reported errors.
	SentryEnvironment string `koanf:"sentry_environment"`
}

// New creates a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         LogFormatText,
		Addr:              ":9080",
		FFNBaseURL:        "https://ffn.extranat.fr/webffn/nat_recherche.php",
		FetchTimeoutMS:    15_000,
		MaxBodyBytes:      5 << 20,
		QueueSize:         1000,
		WorkerCount:       2,
		GuardSize:         10_000,
		SyncTimeoutMS:     60_000,
		SentryEnvironment: "development",
	}
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// SyncTimeout returns SyncTimeoutMS as a duration.
func (c *Config) SyncTimeout() time.Duration {
	return time.Duration(c.SyncTimeoutMS) * time.Millisecond
}

// Validate checks the values that have no safe fallback.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	u, err := url.Parse(c.FFNBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: ffn_base_url must be an absolute http(s) URL, got %q", ErrInvalidConfig, c.FFNBaseURL)
	}
	if c.FetchTimeoutMS <= 0 {
		return fmt.Errorf("%w: fetch_timeout_ms must be positive", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: log_format must be %q or %q, got %q", ErrInvalidConfig, LogFormatText, LogFormatJSON, c.LogFormat)
	}
	return nil
}
