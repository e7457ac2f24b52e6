package polyderive

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of derivation failure. Codes are errors
// themselves so that errors.Is(err, ErrRoundTimeout) works on any error
// returned by this package.
type ErrorCode string

const (
	// ErrInvalidKeySpace indicates an instance was used outside its keyspace.
	ErrInvalidKeySpace ErrorCode = "invalid_key_space"

	// ErrDerivationProviderFailure indicates the key derivation provider
	// failed or answered inconsistently.
	ErrDerivationProviderFailure ErrorCode = "derivation_provider_failure"

	// ErrAnalyzerFailure indicates an analyzer could not classify instances.
	ErrAnalyzerFailure ErrorCode = "analyzer_failure"

	// ErrAccountNotFound indicates the account to operate on is unknown.
	ErrAccountNotFound ErrorCode = "account_not_found"

	// ErrDuplicateFactorSource indicates the factor source is already known.
	ErrDuplicateFactorSource ErrorCode = "duplicate_factor_source"

	// ErrMaxIterationsExceeded indicates the scan hit its round bound
	// before its completion predicate was satisfied.
	ErrMaxIterationsExceeded ErrorCode = "max_iterations_exceeded"

	// ErrConcurrentDerivationConflict indicates another scan held a request
	// key for longer than the round allowed.
	ErrConcurrentDerivationConflict ErrorCode = "concurrent_derivation_conflict"

	// ErrRoundTimeout indicates a round did not complete within its deadline.
	ErrRoundTimeout ErrorCode = "round_timeout"

	// ErrCancelled indicates the caller cancelled the scan.
	ErrCancelled ErrorCode = "cancelled"

	// ErrInvalidRequest indicates the request cannot be served as given.
	ErrInvalidRequest ErrorCode = "invalid_request"
)

// Error implements the error interface.
func (c ErrorCode) Error() string {
	return string(c)
}

// Error is a derivation error with code and context.
// It implements the error interface and supports error wrapping with errors.Is/As.
type Error struct {
	// Code identifies the specific error type.
	Code ErrorCode

	// Message is a human-readable error message.
	Message string

	// Cause is the underlying error that caused this error (optional).
	Cause error

	// Context provides additional contextual information about the error.
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an Error, or an ErrorCode, with the same code.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case ErrorCode:
		return e.Code == t
	case *Error:
		return e.Code == t.Code
	}
	return false
}

// WithContext adds contextual information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError wraps an existing error with a derivation error code.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// CodeOf returns the code of the first Error in the chain of err, or the
// empty code.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
