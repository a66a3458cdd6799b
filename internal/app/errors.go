package service

import "errors"

// Sentinel kinds returned by the service.
var (
	ErrBadRequest     = errors.New("bad request")
	ErrSyncInProgress = errors.New("sync already in progress for athlete")
	ErrOverloaded     = errors.New("too many syncs in progress")
	ErrNotStarted     = errors.New("service not started")
)
