package port

import (
	"context"

	"docrag/internal/domain"
)

// VectorIndex stores chunks and answers similarity queries over them.
// Embedding happens inside the index; callers only deal in text.
type VectorIndex interface {
	// Upsert adds or replaces chunks keyed by Chunk.ID. Implementations
	// commit the whole slice or nothing.
	Upsert(ctx context.Context, chunks []domain.Chunk) error

	// Query returns up to k matches ordered by ascending distance.
	Query(ctx context.Context, text string, k int) ([]domain.Match, error)

	// Exists reports whether any stored chunk satisfies filter.
	Exists(ctx context.Context, filter domain.Filter) (bool, error)

	// Delete removes every chunk satisfying filter. An empty filter clears
	// the index.
	Delete(ctx context.Context, filter domain.Filter) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}
