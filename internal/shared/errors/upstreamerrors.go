package errors

import (
	stderrors "errors"
	"fmt"
)

// UpstreamError represents a failed call to the external billing API.
// It carries the HTTP status and raw response body for diagnostics.
// Callers treat it as non-fatal: reconciliation proceeds with the data it
// already has unless the merge is impossible without the fetch.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("billing api %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("billing api %s failed: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Unwrap allows errors.Is and errors.As to work correctly
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates an error for a non-2xx or malformed billing API response
func NewUpstreamError(operation string, statusCode int, body string) *UpstreamError {
	return &UpstreamError{
		Operation:  operation,
		StatusCode: statusCode,
		Body:       body,
	}
}

// NewUpstreamTransportError creates an error for a transport-level failure
// (connection refused, timeout, body read error).
func NewUpstreamTransportError(operation string, err error) *UpstreamError {
	return &UpstreamError{
		Operation: operation,
		Err:       err,
	}
}

// IsUpstreamError checks if the error is an UpstreamError
func IsUpstreamError(err error) bool {
	var upErr *UpstreamError
	return stderrors.As(err, &upErr)
}
