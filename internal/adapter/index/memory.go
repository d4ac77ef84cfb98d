package index

import (
	"context"
	"fmt"
	"sync"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// MemoryIndex keeps chunks and vectors in process memory. Query results tie
// on insertion order.
type MemoryIndex struct {
	mu       sync.RWMutex
	embedder port.Embedder
	records  map[string]record
	order    []string
}

func NewMemoryIndex(embedder port.Embedder) *MemoryIndex {
	return &MemoryIndex{
		embedder: embedder,
		records:  make(map[string]record),
	}
}

func (s *MemoryIndex) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := embedChunks(ctx, s.embedder, chunks)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range chunks {
		if _, ok := s.records[c.ID]; !ok {
			s.order = append(s.order, c.ID)
		}
		s.records[c.ID] = record{id: c.ID, text: c.Text, metadata: c.Metadata.Clone(), vector: vectors[i]}
	}
	return nil
}

func (s *MemoryIndex) Query(ctx context.Context, text string, k int) ([]domain.Match, error) {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]record, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.records[id])
	}
	return nearest(records, vectors[0], k), nil
}

func (s *MemoryIndex) Exists(_ context.Context, filter domain.Filter) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if s.records[id].metadata.Matches(filter) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryIndex) Delete(_ context.Context, filter domain.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	for _, id := range s.order {
		if s.records[id].metadata.Matches(filter) {
			delete(s.records, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return nil
}

func (s *MemoryIndex) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func embedChunks(ctx context.Context, embedder port.Embedder, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if err := checkDimension(vectors, embedder.Dimension()); err != nil {
		return nil, err
	}
	return vectors, nil
}
