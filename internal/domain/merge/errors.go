package merge

import "errors"

var (
	// ErrStore marks a failed lookup or write on the record store.
	ErrStore = errors.New("record store failure")
	// ErrNoStore is returned by Apply when the engine has no store.
	ErrNoStore = errors.New("merge engine has no store")
)
