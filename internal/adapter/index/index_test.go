package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// fixedEmbedder maps known texts to fixed 2-d vectors.
type fixedEmbedder struct {
	vectors map[string][]float32
	err     error
	model   string
}

func (e *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func (e *fixedEmbedder) Dimension() int { return 2 }

func (e *fixedEmbedder) ModelName() string {
	if e.model == "" {
		return "fixed"
	}
	return e.model
}

func newFixedEmbedder() *fixedEmbedder {
	return &fixedEmbedder{vectors: map[string][]float32{
		"query": {1, 0},
		"near":  {1, 0.1},
		"mid":   {1, 1},
		"far":   {0, 1},
		"zero":  {0, 0},
	}}
}

func sampleChunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "b_0000", Text: "far", Metadata: domain.Metadata{"source": "b.txt", "page": 0, "chunk_id": "b_0000"}},
		{ID: "a_0000", Text: "near", Metadata: domain.Metadata{"source": "a.txt", "page": 0, "chunk_id": "a_0000"}},
		{ID: "a_0001", Text: "mid", Metadata: domain.Metadata{"source": "a.txt", "page": 1, "chunk_id": "a_0001"}},
	}
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, cosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 1.0, cosineDistance([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 1.0, cosineDistance([]float32{1}, []float32{1, 0}))
}

func TestNearest_StableOnTies(t *testing.T) {
	records := []record{
		{id: "x", text: "x", vector: []float32{0, 1}},
		{id: "y", text: "y", vector: []float32{0, 2}},
		{id: "z", text: "z", vector: []float32{1, 0}},
	}
	matches := nearest(records, []float32{0, 1}, 5)
	require.Len(t, matches, 3)
	assert.Equal(t, "x", matches[0].Text)
	assert.Equal(t, "y", matches[1].Text)
	assert.Equal(t, "z", matches[2].Text)
}

// runIndexContract exercises behaviour shared by every local VectorIndex.
func runIndexContract(t *testing.T, idx port.VectorIndex) {
	ctx := context.Background()

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	matches, err := idx.Query(ctx, "query", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)

	require.NoError(t, idx.Upsert(ctx, sampleChunks()))

	count, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	matches, err = idx.Query(ctx, "query", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].Text)
	assert.Equal(t, "mid", matches[1].Text)
	assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)
	assert.Equal(t, "a.txt", matches[0].Source())

	exists, err := idx.Exists(ctx, domain.Filter{"source": "a.txt"})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = idx.Exists(ctx, domain.Filter{"source": "c.txt"})
	require.NoError(t, err)
	assert.False(t, exists)

	// Upserting the same IDs replaces rather than duplicates.
	require.NoError(t, idx.Upsert(ctx, sampleChunks()[:1]))
	count, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, idx.Delete(ctx, domain.Filter{"source": "a.txt"}))
	count, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, idx.Delete(ctx, domain.Filter{}))
	count, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryIndex_Contract(t *testing.T) {
	runIndexContract(t, NewMemoryIndex(newFixedEmbedder()))
}

func TestMemoryIndex_EmbedderError(t *testing.T) {
	emb := newFixedEmbedder()
	emb.err = domain.ErrEmbeddingUnavailable
	idx := NewMemoryIndex(emb)

	err := idx.Upsert(context.Background(), sampleChunks())
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	_, err = idx.Query(context.Background(), "query", 1)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestMemoryIndex_ZeroVectorRanksLast(t *testing.T) {
	idx := NewMemoryIndex(newFixedEmbedder())
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []domain.Chunk{
		{ID: "z", Text: "zero", Metadata: domain.Metadata{"source": "z.txt"}},
		{ID: "n", Text: "near", Metadata: domain.Metadata{"source": "n.txt"}},
	}))

	matches, err := idx.Query(ctx, "query", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].Text)
	assert.Equal(t, 1.0, matches[1].Distance)
}

func TestMetadataMatchesNumericRoundTrip(t *testing.T) {
	// Values read back from JSON are float64; filters still compare equal.
	m := domain.Metadata{"page": float64(3), "source": "a.pdf"}
	assert.True(t, m.Matches(domain.Filter{"page": 3}))
	assert.True(t, m.Matches(domain.Filter{"source": "a.pdf", "page": "3"}))
	assert.False(t, m.Matches(domain.Filter{"page": 4}))
}
