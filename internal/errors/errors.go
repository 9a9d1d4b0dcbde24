package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// RagError is the structured error type for the RAG core.
// It carries a machine-readable kind and code for error handling,
// logging, and caller presentation.
type RagError struct {
	// Code is the unique error code (e.g., "ERR_201_EXTRACT_FAILED").
	Code string

	// Kind is the caller-facing error kind.
	Kind Kind

	// Message is the human-readable error message.
	Message string

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// RetryAfter is the provider-supplied delay hint for rate limits.
	// Zero when the provider gave no hint.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RagError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RagError) Unwrap() error {
	return e.Cause
}

// Is matches errors by kind so errors.Is works across wrap layers.
func (e *RagError) Is(target error) bool {
	if t, ok := target.(*RagError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *RagError) WithDetail(key, value string) *RagError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithRetryAfter records a provider retry-after hint.
func (e *RagError) WithRetryAfter(d time.Duration) *RagError {
	e.RetryAfter = d
	return e
}

// New creates a RagError of the given kind.
// Code and retryable flag are derived from the kind.
func New(kind Kind, message string, cause error) *RagError {
	return &RagError{
		Code:      codeForKind[kind],
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		Retryable: IsRetryableKind(kind),
	}
}

// Newf creates a RagError with a formatted message and no cause.
func Newf(kind Kind, format string, args ...any) *RagError {
	return New(kind, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a RagError from an existing error, preserving the kind of an
// already-wrapped RagError instead of double-wrapping it.
func Wrap(kind Kind, err error) *RagError {
	if err == nil {
		return nil
	}
	var re *RagError
	if stderrors.As(err, &re) {
		return re
	}
	return New(kind, err.Error(), err)
}

// Validation creates a caller-input validation error.
func Validation(message string) *RagError {
	return New(KindValidation, message, nil)
}

// NotFound creates an unknown-document error.
func NotFound(message string) *RagError {
	return New(KindNotFound, message, nil)
}

// StoreError creates a database failure error.
func StoreError(message string, cause error) *RagError {
	return New(KindStore, message, cause)
}

// Internal creates an internal error.
func Internal(message string, cause error) *RagError {
	return New(KindInternal, message, cause)
}

// KindOf extracts the kind from an error chain.
// Returns KindInternal for errors that are not RagErrors.
func KindOf(err error) Kind {
	var re *RagError
	if stderrors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain contains a RagError of the given kind.
func IsKind(err error, kind Kind) bool {
	var re *RagError
	if stderrors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var re *RagError
	if stderrors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// RetryAfterOf extracts the retry-after hint from an error chain, zero if none.
func RetryAfterOf(err error) time.Duration {
	var re *RagError
	if stderrors.As(err, &re) {
		return re.RetryAfter
	}
	return 0
}
