// Package index provides VectorIndex implementations: bbolt and SQLite local
// indexes, a Qdrant REST client and an in-memory index.
package index

import (
	"fmt"
	"math"
	"sort"

	"docrag/internal/domain"
)

type record struct {
	id       string
	text     string
	metadata domain.Metadata
	vector   []float32
}

// cosineDistance returns 1 - cosine similarity, clamped to [0, 2]. A zero
// vector is treated as maximally dissimilar to everything.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	d := 1 - dotProduct/(math.Sqrt(normA)*math.Sqrt(normB))
	if d < 0 {
		return 0
	}
	return d
}

// nearest ranks records by distance to query and returns the first k.
// Records must be supplied in a stable order; equal distances keep it.
func nearest(records []record, query []float32, k int) []domain.Match {
	type scored struct {
		rec  record
		dist float64
	}
	scores := make([]scored, 0, len(records))
	for _, rec := range records {
		scores = append(scores, scored{rec: rec, dist: cosineDistance(query, rec.vector)})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].dist < scores[j].dist
	})

	if k > len(scores) {
		k = len(scores)
	}
	matches := make([]domain.Match, 0, k)
	for _, s := range scores[:k] {
		matches = append(matches, domain.Match{
			Text:     s.rec.text,
			Metadata: s.rec.metadata.Clone(),
			Distance: s.dist,
		})
	}
	return matches
}

func checkDimension(vectors [][]float32, want int) error {
	for i, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("vector dimension mismatch at %d: expected %d, got %d", i, want, len(v))
		}
	}
	return nil
}
