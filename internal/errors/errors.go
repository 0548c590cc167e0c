package errors

import (
	"fmt"
)

// CartoError is the structured error type for Cartograph.
// It provides rich context for error handling, logging, and status reporting.
type CartoError struct {
	// Code is the unique error code (e.g., "ERR_303_JOB_ACTIVATION_TIMEOUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *CartoError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CartoError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with CartoError.
func (e *CartoError) Is(target error) bool {
	if t, ok := target.(*CartoError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *CartoError) WithDetail(key, value string) *CartoError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new CartoError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *CartoError {
	return &CartoError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a new CartoError with a formatted message and no cause.
func Newf(code string, format string, args ...any) *CartoError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a CartoError from an existing error.
// The error's message becomes the CartoError message.
func Wrap(code string, err error) *CartoError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NetworkError creates a network-related error. Network errors are retryable.
func NetworkError(message string, cause error) *CartoError {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *CartoError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a CartoError with the Retryable flag set.
func IsRetryable(err error) bool {
	if e, ok := err.(*CartoError); ok {
		return e.Retryable
	}
	return false
}

// CodeOf returns the error code of a CartoError, or ErrCodeInternal
// for any other error type.
func CodeOf(err error) string {
	if e, ok := err.(*CartoError); ok {
		return e.Code
	}
	return ErrCodeInternal
}
