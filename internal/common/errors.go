// Package common defines shared constants and sentinel errors used across
// mediafetch components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Transfer flow control.
	ErrCancelled    = errors.New("cancelled")
	ErrFetchFailed  = errors.New("fetch failed")
	ErrSizeMismatch = errors.New("size mismatch")
	ErrResumeFailed = errors.New("resume request failed")

	// Orchestrator lifecycle errors.
	ErrShutdown      = errors.New("engine is shut down")
	ErrRunInProgress = errors.New("run already in progress")

	// Validation errors.
	ErrInvalidConfig = errors.New("invalid config")
)
