package errors

import (
	"errors"
	"fmt"
	"strconv"
)

// DocError is the structured error type for docidx.
// It provides rich context for error handling, logging, and user presentation.
type DocError struct {
	// Code is the unique error code (e.g., "ERR_202_WRITE_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Sentinels for errors.Is. Matching is by code, so any DocError carrying the
// same code matches regardless of message or cause.
var (
	ErrNotInitialized = New(ErrCodeNotInitialized, "index not initialized", nil)
	ErrStorage        = New(ErrCodeStorage, "index storage error", nil)
	ErrWrite          = New(ErrCodeWrite, "index write failed", nil)
	ErrRead           = New(ErrCodeRead, "index read failed", nil)
	ErrQueryParse     = New(ErrCodeQueryParse, "malformed query", nil)
	ErrInvalidInput   = New(ErrCodeInvalidInput, "invalid input", nil)
	ErrConfigInvalid  = New(ErrCodeConfigInvalid, "invalid configuration", nil)
)

// Error implements the error interface.
func (e *DocError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DocError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with DocError.
func (e *DocError) Is(target error) bool {
	if t, ok := target.(*DocError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *DocError) WithDetail(key, value string) *DocError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *DocError) WithSuggestion(suggestion string) *DocError {
	e.Suggestion = suggestion
	return e
}

// New creates a new DocError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *DocError {
	return &DocError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a DocError from an existing error.
// If err already is a DocError it is returned unchanged.
func Wrap(code string, err error) *DocError {
	if err == nil {
		return nil
	}
	var de *DocError
	if errors.As(err, &de) {
		return de
	}
	return New(code, err.Error(), err)
}

// StorageError creates an error for an unusable index directory.
func StorageError(message string, cause error) *DocError {
	return New(ErrCodeStorage, message, cause)
}

// WriteError creates an error for a rejected mutation or commit.
func WriteError(message string, cause error) *DocError {
	return New(ErrCodeWrite, message, cause)
}

// ReadError creates an error for an engine failure during reload, search or lookup.
func ReadError(message string, cause error) *DocError {
	return New(ErrCodeRead, message, cause)
}

// QueryParseError creates an error for malformed query syntax.
// offset is the byte position in the raw query where parsing failed.
func QueryParseError(message string, offset int) *DocError {
	return New(ErrCodeQueryParse, message, nil).
		WithDetail("offset", strconv.Itoa(offset))
}

// InvalidInput creates a validation error.
func InvalidInput(message string) *DocError {
	return New(ErrCodeInvalidInput, message, nil)
}

// NotInitialized creates the error returned by operations on an index
// that has not been initialized or has been closed.
func NotInitialized() *DocError {
	return New(ErrCodeNotInitialized, "index not initialized", nil).
		WithSuggestion("call Initialize with the index directory first")
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *DocError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *DocError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var de *DocError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var de *DocError
	if errors.As(err, &de) {
		return de.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a DocError.
// Returns empty string if not a DocError.
func GetCode(err error) string {
	var de *DocError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// GetCategory extracts the category from a DocError.
// Returns empty string if not a DocError.
func GetCategory(err error) Category {
	var de *DocError
	if errors.As(err, &de) {
		return de.Category
	}
	return ""
}
