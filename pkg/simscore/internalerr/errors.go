package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicate        = errors.New("submission already exists")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// ErrTransient marks a retryable I/O failure, such as a document fetch
	// that timed out. It is never reported as a zero-similarity result.
	ErrTransient = errors.New("transient i/o failure")

	// ErrCorpusUnavailable is returned when the prior submissions of an
	// assignment cannot be listed.
	ErrCorpusUnavailable = errors.New("corpus unavailable")
)
