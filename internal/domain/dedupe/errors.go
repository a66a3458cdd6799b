package dedupe

import "errors"

var (
	// ErrInFlight is returned when the id is already recorded.
	ErrInFlight = errors.New("already in flight")
	// ErrFull is returned when the guard is at capacity.
	ErrFull = errors.New("in-flight guard is full")
)
