// Package errors provides domain-specific error types for enisyncd.
//
// Each error carries a code describing how the reconciliation loop should
// react to it: fetch/read/build errors skip the whole pass, action errors
// are isolated to a single interface.
package errors

import "fmt"

// ErrorCode represents a category of error that can occur in the daemon.
type ErrorCode string

const (
	// ErrCodeFetch indicates the interface manifest could not be retrieved.
	// The pass is skipped entirely; no kernel state is touched.
	ErrCodeFetch ErrorCode = "FETCH_ERROR"

	// ErrCodeRead indicates kernel state could not be read. Treated like a
	// fetch error: the pass is skipped rather than acting on a partial
	// snapshot.
	ErrCodeRead ErrorCode = "READ_ERROR"

	// ErrCodeBuild indicates the manifest is internally inconsistent
	// (duplicate identifiers, table-id collision). Points at an upstream
	// data problem, not a transient condition.
	ErrCodeBuild ErrorCode = "BUILD_ERROR"

	// ErrCodeAction indicates a single kernel mutation failed. Isolated to
	// the affected interface and retried with backoff.
	ErrCodeAction ErrorCode = "ACTION_ERROR"

	// ErrCodeConfig indicates a configuration-related error.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error represents a domain-specific error with an error code and optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so callers can test categories with errors.Is.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new domain error with the specified code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NewFetchError creates a new manifest fetch error.
func NewFetchError(message string, cause error) *Error {
	return Wrap(ErrCodeFetch, message, cause)
}

// NewReadError creates a new kernel state read error.
func NewReadError(message string, cause error) *Error {
	return Wrap(ErrCodeRead, message, cause)
}

// NewBuildError creates a new desired-state build error.
func NewBuildError(message string, cause error) *Error {
	return Wrap(ErrCodeBuild, message, cause)
}

// NewActionError creates a new kernel mutation error.
func NewActionError(message string, cause error) *Error {
	return Wrap(ErrCodeAction, message, cause)
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, cause error) *Error {
	return Wrap(ErrCodeConfig, message, cause)
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCodeInternal, message, cause)
}

// IsCode reports whether err (or anything it wraps) carries the given code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
