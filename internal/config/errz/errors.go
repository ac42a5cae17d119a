// Package errz provides shared error definitions for the config package and its subpackages.
package errz

import "errors"

// Top-level error categories. Every error returned by config.Resolve wraps one of these.
var (
	ErrConfigNotFound = errors.New("config not found")
	ErrConfigLoad     = errors.New("failed to load config")
)

// Validation specific errors
var (
	ErrInvalidValue         = errors.New("invalid value")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrConflict             = errors.New("conflicting settings")
	ErrUnsupportedFormat    = errors.New("unsupported config format")
)

// Preload specific errors
var (
	ErrPreloadUnsupported = errors.New("unsupported preload module")
	ErrPreloadFailed      = errors.New("preload module failed")
)
