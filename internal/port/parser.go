package port

import (
	"context"

	"docrag/internal/domain"
)

// Parser turns one file into raw records (pages, rows or paragraphs).
type Parser interface {
	Parse(ctx context.Context, path string) ([]domain.RawRecord, error)
}
