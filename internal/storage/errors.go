package storage

import "errors"

var (
	// ErrStoreUnavailable means the backing store cannot be reached.
	// Retrieval callers treat this as "no context available", not as a
	// fatal synthesis error.
	ErrStoreUnavailable = errors.New("chunk store unavailable")

	ErrDocumentNotFound  = errors.New("document not found")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
