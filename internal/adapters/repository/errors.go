package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("record already exists")
	ErrInvalidRecord = errors.New("invalid record")
	ErrClosed        = errors.New("store closed")
)
