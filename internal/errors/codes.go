// Package errors provides structured error handling for libindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors (fatal at startup, never mid-run)
//   - 2XX: Content errors (file unreadable/undecodable - skip and continue)
//   - 3XX: Transient errors (embedding timeout/unavailable - retryable)
//   - 4XX: Validation errors
//   - 5XX: Storage errors (vector store write rejected - fatal to the run)
//   - 6XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryContent indicates per-file content errors (skip file, continue).
	CategoryContent Category = "CONTENT"
	// CategoryTransient indicates retryable I/O errors (embedding service).
	CategoryTransient Category = "TRANSIENT"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryStorage indicates vector store errors (fatal to the run).
	CategoryStorage Category = "STORAGE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the run can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeStateCorrupt   = "ERR_103_STATE_CORRUPT"
	ErrCodeStateLocked    = "ERR_104_STATE_LOCKED"

	// Content errors (200-299)
	ErrCodeFileUnreadable = "ERR_201_FILE_UNREADABLE"
	ErrCodeFileTooLarge   = "ERR_202_FILE_TOO_LARGE"
	ErrCodeFileBinary     = "ERR_203_FILE_BINARY"

	// Transient errors (300-399)
	ErrCodeEmbedTimeout     = "ERR_301_EMBED_TIMEOUT"
	ErrCodeEmbedUnavailable = "ERR_302_EMBED_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidQuery      = "ERR_403_INVALID_QUERY"

	// Storage errors (500-599)
	ErrCodeStoreWrite   = "ERR_501_STORE_WRITE"
	ErrCodeStoreCorrupt = "ERR_502_STORE_CORRUPT"

	// Internal errors (600-699)
	ErrCodeInternal = "ERR_601_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryContent
	case '3':
		return CategoryTransient
	case '4':
		return CategoryValidation
	case '5':
		return CategoryStorage
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from error code.
// Config and storage failures abort; content errors skip a file;
// transient errors are retried.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig, CategoryStorage:
		return SeverityFatal
	case CategoryTransient:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code may be retried.
func isRetryableCode(code string) bool {
	return categoryFromCode(code) == CategoryTransient
}
