package domain

import "errors"

var (
	// ErrInvalidInput is returned when a caller passes malformed arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedType is returned when no parser handles a file extension.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrIndexUnavailable is returned when the vector index cannot be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrEmbeddingUnavailable is returned when the embedding service fails.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGeneratorUnavailable is returned when the answer model cannot be reached.
	ErrGeneratorUnavailable = errors.New("generator unavailable")
)
