package harness

import (
	"errors"
	"fmt"
)

// RuntimeError represents an operational error that should lead to exit code 2
// Examples include discovery failures, configuration errors, file not found, etc.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// ProbeFailureError represents a missing deadlock-probe success marker (exit code 1).
// It is distinct from ordinary per-test failures, which are non-fatal: a missing
// marker means the harness's own liveness guarantee was violated.
type ProbeFailureError struct {
	Marker string
}

func (e *ProbeFailureError) Error() string {
	return fmt.Sprintf("probe failure: success marker %q not found in probe output", e.Marker)
}

// NewProbeFailureError creates a new ProbeFailureError
func NewProbeFailureError(marker string) *ProbeFailureError {
	return &ProbeFailureError{Marker: marker}
}

// IsProbeFailureError checks if the error is or wraps a ProbeFailureError
func IsProbeFailureError(err error) bool {
	var probeErr *ProbeFailureError
	return err != nil && errors.As(err, &probeErr)
}
