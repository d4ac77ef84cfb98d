package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	a, err := e.Embed(context.Background(), []string{"Vacation policy", "vacation POLICY!"})
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Len(t, a[0], 64)
	assert.Equal(t, a[0], a[1])
	assert.InDelta(t, 1.0, cosine(a[0], a[1]), 1e-6)
	assert.Equal(t, "hash-64", e.ModelName())
}

func TestHashEmbedder_SharedVocabularyIsCloser(t *testing.T) {
	e := NewHashEmbedder(512)
	vecs, err := e.Embed(context.Background(), []string{
		"how do I request vacation days",
		"vacation days must be requested two weeks ahead",
		"the printer on floor three is out of toner",
	})
	require.NoError(t, err)
	assert.Greater(t, cosine(vecs[0], vecs[1]), cosine(vecs[0], vecs[2]))
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	e := NewHashEmbedder(0)
	vecs, err := e.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	assert.Len(t, vecs[0], 256)
	for _, v := range vecs[0] {
		assert.Zero(t, v)
	}
}

func TestOpenAICompatibleEmbedder_MissingKey(t *testing.T) {
	t.Setenv("DOCRAG_TEST_EMPTY_KEY", "")
	_, err := NewOpenAICompatibleEmbedder("DOCRAG_TEST_EMPTY_KEY", "text-embedding-3-small", "http://localhost")
	assert.Error(t, err)
}

func TestOpenAICompatibleEmbedder_Embed(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req embeddingRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		resp := embeddingResponse{}
		// answer out of order to exercise index placement
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, embeddingData{Index: i, Embedding: []float32{float32(len(req.Input[i])), 1}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	t.Setenv("DOCRAG_TEST_KEY", "secret")
	e, err := NewOpenAICompatibleEmbedder("DOCRAG_TEST_KEY", "text-embedding-3-large", srv.URL,
		WithBatchSize(2), WithRateLimit(1000))
	require.NoError(t, err)
	assert.Equal(t, 3072, e.Dimension())

	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
	assert.Equal(t, [][]float32{{1, 1}, {2, 1}, {3, 1}}, vecs)
}

func TestOpenAICompatibleEmbedder_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder("all-minilm", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 384, e.Dimension())

	_, err = e.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestOpenAICompatibleEmbedder_MissingVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1,2]}]}`))
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder("nomic-embed-text", srv.URL, WithDimension(2))
	require.NoError(t, err)
	assert.Equal(t, 2, e.Dimension())

	_, err = e.Embed(context.Background(), []string{"x", "y"})
	assert.Error(t, err)
}
