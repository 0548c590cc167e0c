// Package errors provides structured error handling for Cartograph.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (checkpoint, cache files)
//   - 3XX: Network errors (embed server, job queue)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound       = "ERR_201_FILE_NOT_FOUND"
	ErrCodeCheckpointCorrupt  = "ERR_202_CHECKPOINT_CORRUPT"
	ErrCodeCheckpointStale    = "ERR_203_CHECKPOINT_STALE"
	ErrCodeCheckpointSave     = "ERR_204_CHECKPOINT_SAVE"

	// Network errors (300-399)
	ErrCodeNetworkTimeout  = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeServerBusy      = "ERR_302_SERVER_BUSY"
	ErrCodeJobTimeout      = "ERR_303_JOB_ACTIVATION_TIMEOUT"
	ErrCodeEmbedFailed     = "ERR_304_EMBED_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_403_QUERY_EMPTY"
	ErrCodeChunkNotFound     = "ERR_404_CHUNK_NOT_FOUND"

	// Internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeIndexFailed   = "ERR_502_INDEX_FAILED"
	ErrCodeParseFailed   = "ERR_503_PARSE_FAILED"
	ErrCodeExtractFailed = "ERR_504_EXTRACT_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from error code.
// Checkpoint save failures and stale checkpoints degrade gracefully;
// everything else is a hard error for the operation it occurred in.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCheckpointSave, ErrCodeCheckpointStale:
		return SeverityWarning
	case ErrCodeConfigNotFound:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// retryableCodes lists codes for which a fresh attempt can succeed.
var retryableCodes = map[string]bool{
	ErrCodeNetworkTimeout: true,
	ErrCodeServerBusy:     true,
	ErrCodeJobTimeout:     true,
	ErrCodeEmbedFailed:    true,
	ErrCodeCheckpointSave: true,
}

// isRetryableCode reports whether the code represents a transient failure.
func isRetryableCode(code string) bool {
	return retryableCodes[code]
}
