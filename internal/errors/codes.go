// Package errors provides structured error handling for the RAG core.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Extraction and IO errors
//   - 3XX: Model client and network errors
//   - 4XX: Validation errors
//   - 5XX: Store and internal errors
package errors

// Kind is the machine-readable error kind exposed to callers.
// Every error that crosses a component boundary carries exactly one Kind.
type Kind string

const (
	// KindValidation indicates bad caller input (missing title, empty question).
	KindValidation Kind = "VALIDATION"
	// KindExtractFailed indicates an unparseable PDF or one that yields no text.
	KindExtractFailed Kind = "EXTRACT_FAILED"
	// KindEmbeddingPartial indicates some chunks embedded and some did not.
	KindEmbeddingPartial Kind = "EMBEDDING_PARTIAL"
	// KindModelRateLimited indicates the provider signaled throttling (429).
	KindModelRateLimited Kind = "MODEL_RATE_LIMITED"
	// KindModelTransient indicates a 5xx response or connection reset.
	KindModelTransient Kind = "MODEL_TRANSIENT"
	// KindModelQueueFull indicates the model client queue rejected the request.
	KindModelQueueFull Kind = "MODEL_QUEUE_FULL"
	// KindModelTimeout indicates a queued request expired before completion.
	KindModelTimeout Kind = "MODEL_TIMEOUT"
	// KindStore indicates a database or transaction failure.
	KindStore Kind = "STORE"
	// KindNotFound indicates an unknown document id.
	KindNotFound Kind = "NOT_FOUND"
	// KindInternal is anything else.
	KindInternal Kind = "INTERNAL"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"

	// Extraction and IO errors (200-299)
	ErrCodeExtractFailed = "ERR_201_EXTRACT_FAILED"
	ErrCodeFileTooLarge  = "ERR_202_FILE_TOO_LARGE"

	// Model client and network errors (300-399)
	ErrCodeModelRateLimited = "ERR_301_MODEL_RATE_LIMITED"
	ErrCodeModelTransient   = "ERR_302_MODEL_TRANSIENT"
	ErrCodeModelQueueFull   = "ERR_303_MODEL_QUEUE_FULL"
	ErrCodeModelTimeout     = "ERR_304_MODEL_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeNotFound     = "ERR_402_NOT_FOUND"

	// Store and internal errors (500-599)
	ErrCodeStore            = "ERR_501_STORE"
	ErrCodeEmbeddingPartial = "ERR_502_EMBEDDING_PARTIAL"
	ErrCodeInternal         = "ERR_503_INTERNAL"
)

// codeForKind maps each kind to its canonical error code.
var codeForKind = map[Kind]string{
	KindValidation:       ErrCodeInvalidInput,
	KindExtractFailed:    ErrCodeExtractFailed,
	KindEmbeddingPartial: ErrCodeEmbeddingPartial,
	KindModelRateLimited: ErrCodeModelRateLimited,
	KindModelTransient:   ErrCodeModelTransient,
	KindModelQueueFull:   ErrCodeModelQueueFull,
	KindModelTimeout:     ErrCodeModelTimeout,
	KindStore:            ErrCodeStore,
	KindNotFound:         ErrCodeNotFound,
	KindInternal:         ErrCodeInternal,
}

// retryableKinds are kinds the caller may retry. Rate limits are deliberately
// absent: the model client queue already enforces spacing, and retrying a 429
// through the same queue only makes latency worse.
var retryableKinds = map[Kind]bool{
	KindModelTransient: true,
	KindModelTimeout:   true,
}

// IsRetryableKind reports whether operations failing with this kind may be retried.
func IsRetryableKind(k Kind) bool {
	return retryableKinds[k]
}
