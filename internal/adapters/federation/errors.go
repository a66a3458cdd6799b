package federation

import (
	"errors"
	"fmt"
)

// maxErrorBodySize bounds how much of an error response is kept.
const maxErrorBodySize = 500

var (
	// ErrUpstream marks any failure to obtain a results page.
	ErrUpstream = errors.New("federation upstream unavailable")
	// ErrInvalidIUF is returned for an empty federation identifier.
	ErrInvalidIUF = errors.New("invalid iuf")
	// ErrPageTooLarge is returned, alongside ErrUpstream, for a results page
	// over the configured body limit.
	ErrPageTooLarge = errors.New("results page exceeds size limit")
)

// HTTPError is a non-success response from the federation site.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
	URL        string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s (status %d): %s", e.Status, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s (status %d)", e.Status, e.StatusCode)
}

// Unwrap makes every HTTPError match ErrUpstream.
func (e *HTTPError) Unwrap() error {
	return ErrUpstream
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
