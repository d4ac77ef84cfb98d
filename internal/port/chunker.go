package port

import "docrag/internal/domain"

type Chunker interface {
	Split(records []domain.RawRecord) []domain.Chunk
}
