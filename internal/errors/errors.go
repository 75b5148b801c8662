// Package errors defines the structured errors used by the outer layers
// (history store, CLI, MCP server). The capture core never returns errors;
// its failures are protocol-level codes inside the result, not Go errors.
package errors

import "fmt"

// ErrorCode represents a glance error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrCaptureFailed  ErrorCode = "CAPTURE_FAILED"  // 502
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// GlanceError represents a structured error with code, status, and details.
type GlanceError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *GlanceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *GlanceError {
	return &GlanceError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a capture record cannot be found.
func NewNotFound(identifier string) *GlanceError {
	return &GlanceError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("capture not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewCaptureFailed creates a 502 error carrying the protocol-level code of a
// failed capture attempt. Used by surfaces that must report fallback results
// as hard errors (the CLI's --fail-on-fallback flag).
func NewCaptureFailed(code, message string) *GlanceError {
	return &GlanceError{
		Code:    ErrCaptureFailed,
		Status:  502,
		Message: message,
		Details: map[string]any{"error_code": code},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *GlanceError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &GlanceError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a GlanceError with the given code.
func Is(err error, code ErrorCode) bool {
	if gErr, ok := err.(*GlanceError); ok {
		return gErr.Code == code
	}
	return false
}
