package config

import (
	"errors"
)

// Sentinel kinds wrapped by Load and Validate.
var (
	// ErrInvalidConfig wraps a rejected setting, such as an empty addr, a
	// relative ffn_base_url or a non-positive fetch timeout.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps a failure to read the config file or environment.
	ErrLoadConfig = errors.New("load config failed")
)
