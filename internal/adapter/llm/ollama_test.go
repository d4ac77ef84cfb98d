package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestOllamaGenerator_Generate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&got)) {
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"response": "  Paris.  ", "done": true})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(Config{URL: srv.URL, Model: "test-model"})
	text, err := g.Generate(context.Background(), "What is the capital?")
	require.NoError(t, err)

	assert.Equal(t, "Paris.", text)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, "What is the capital?", got.Prompt)
	assert.False(t, got.Stream)
	assert.Equal(t, DefaultTemperature, got.Options.Temperature)
	assert.Equal(t, DefaultTopP, got.Options.TopP)
	assert.Equal(t, DefaultNumCtx, got.Options.NumCtx)
	assert.Equal(t, "test-model", g.ModelName())
}

func TestOllamaGenerator_ChatShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"from choices"}}]}`))
	}))
	defer srv.Close()

	text, err := NewOllamaGenerator(Config{URL: srv.URL}).Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "from choices", text)
}

func TestOllamaGenerator_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not loaded", http.StatusInternalServerError)
			},
			wantMsg: "model not loaded",
		},
		{
			name: "error field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"error":"model 'x' not found"}`))
			},
			wantMsg: "model 'x' not found",
		},
		{
			name: "empty response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"response":"   "}`))
			},
			wantMsg: "empty response",
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			},
			wantMsg: "failed to parse response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewOllamaGenerator(Config{URL: srv.URL}).Generate(context.Background(), "q")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrGeneratorUnavailable)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestOllamaGenerator_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"response":"late"}`))
	}))
	defer srv.Close()

	g := NewOllamaGenerator(Config{URL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := g.Generate(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrGeneratorUnavailable)
}
