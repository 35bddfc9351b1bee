// Package errors provides structured error handling for docidx.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index storage, write and read errors
//   - 4XX: Validation and query errors
//   - 5XX: Lifecycle and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates errors raised by the index engine or its files.
	CategoryStorage Category = "STORAGE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates lifecycle misuse or unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates the index cannot be used at all.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the index is usable.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates a transient failure; retrying may succeed.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeStorage = "ERR_201_STORAGE"
	ErrCodeWrite   = "ERR_202_WRITE_FAILED"
	ErrCodeRead    = "ERR_203_READ_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeQueryParse   = "ERR_402_QUERY_PARSE"

	// Internal errors (500-599)
	ErrCodeNotInitialized = "ERR_501_NOT_INITIALIZED"
	ErrCodeInternal       = "ERR_502_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "ERR_201_STORAGE" -> '2'
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStorage:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode reports whether the caller may retry the same operation.
// A failed write leaves the committed index untouched, and a failed commit
// keeps its staged operations, so both can be retried as-is.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeWrite:
		return true
	default:
		return false
	}
}
