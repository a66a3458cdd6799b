package api

import (
	"errors"
	"net/http"

	"github.com/okian/ffnsync/internal/adapters/federation"
	service "github.com/okian/ffnsync/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrInternal   = errors.New("internal error")
)

// Error codes carried in error bodies.
const (
	codeBadRequest      = "bad_request"
	codePayloadTooLarge = "payload_too_large"
	codeSyncInProgress  = "sync_in_progress"
	codeUpstream        = "upstream_error"
	codeOverloaded      = "overloaded"
	codeUnavailable     = "unavailable"
	codeInternal        = "internal_error"
)

// KindError tags an error with the operation that failed and a sentinel
// kind that errors.Is can match.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// WrapKind wraps err under kind for operation op.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}

// NewKind returns a bare kind error for operation op.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// statusFor maps an error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, codePayloadTooLarge
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrBadRequest):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, service.ErrSyncInProgress):
		return http.StatusConflict, codeSyncInProgress
	case errors.Is(err, service.ErrOverloaded):
		return http.StatusServiceUnavailable, codeOverloaded
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, codeUnavailable
	case errors.Is(err, federation.ErrUpstream):
		return http.StatusBadGateway, codeUpstream
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
