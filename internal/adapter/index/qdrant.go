package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// payloadText is the payload key holding the chunk text.
const payloadText = "document"

// QdrantConfig holds connection details for a Qdrant collection.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// QdrantIndex is a minimal REST client to Qdrant. The collection uses
// cosine distance and is created on first write.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	embedder   port.Embedder
	client     *http.Client

	mu      sync.Mutex
	ensured bool
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type qdrantFilter struct {
	Must []qdrantCondition `json:"must"`
}

type qdrantCondition struct {
	Key   string         `json:"key"`
	Match map[string]any `json:"match"`
}

// errCollectionMissing marks a 404 from a collection endpoint.
var errCollectionMissing = fmt.Errorf("%w: collection not found", domain.ErrNotFound)

func NewQdrantIndex(cfg QdrantConfig, embedder port.Embedder) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "documents"
	}
	return &QdrantIndex{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		embedder:   embedder,
		client:     &http.Client{Timeout: timeout},
	}
}

// PointID maps a chunk ID to the UUID Qdrant stores it under. The mapping is
// stable, so re-upserting a chunk overwrites its point.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("docrag:"+chunkID)).String()
}

func (s *QdrantIndex) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func (s *QdrantIndex) ensureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, nil)
	if err == errCollectionMissing {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     s.embedder.Dimension(),
				"distance": "Cosine",
			},
		}
		err = s.do(ctx, http.MethodPut, s.collectionURL(), body, nil)
	}
	if err != nil {
		return err
	}
	s.ensured = true
	return nil
}

func (s *QdrantIndex) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := embedChunks(ctx, s.embedder, chunks)
	if err != nil {
		return err
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	points := make([]qdrantPoint, len(chunks))
	for i, c := range chunks {
		payload := make(map[string]any, len(c.Metadata)+1)
		for k, v := range c.Metadata {
			payload[k] = v
		}
		payload[payloadText] = c.Text
		points[i] = qdrantPoint{ID: PointID(c.ID), Vector: vectors[i], Payload: payload}
	}
	return s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", map[string]any{"points": points}, nil)
}

func (s *QdrantIndex) Query(ctx context.Context, text string, k int) ([]domain.Match, error) {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	req := map[string]any{
		"vector":       vectors[0],
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err = s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp)
	if err == errCollectionMissing {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		meta := make(domain.Metadata, len(r.Payload))
		var text string
		for k, v := range r.Payload {
			if k == payloadText {
				text, _ = v.(string)
				continue
			}
			meta[k] = v
		}
		dist := 1 - r.Score
		if dist < 0 {
			dist = 0
		}
		matches = append(matches, domain.Match{Text: text, Metadata: meta, Distance: dist})
	}
	return matches, nil
}

func (s *QdrantIndex) Exists(ctx context.Context, filter domain.Filter) (bool, error) {
	req := map[string]any{
		"limit":        1,
		"with_payload": false,
		"with_vector":  false,
	}
	if len(filter) > 0 {
		req["filter"] = toQdrantFilter(filter)
	}
	var resp struct {
		Result struct {
			Points []json.RawMessage `json:"points"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/scroll", req, &resp)
	if err == errCollectionMissing {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(resp.Result.Points) > 0, nil
}

// Delete removes points matching filter. An empty filter drops the whole
// collection; it is recreated on the next upsert.
func (s *QdrantIndex) Delete(ctx context.Context, filter domain.Filter) error {
	if len(filter) == 0 {
		err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
		if err != nil && err != errCollectionMissing {
			return err
		}
		s.mu.Lock()
		s.ensured = false
		s.mu.Unlock()
		return nil
	}
	req := map[string]any{"filter": toQdrantFilter(filter)}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/delete?wait=true", req, nil)
	if err == errCollectionMissing {
		return nil
	}
	return err
}

func (s *QdrantIndex) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp)
	if err == errCollectionMissing {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func toQdrantFilter(filter domain.Filter) qdrantFilter {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := qdrantFilter{Must: make([]qdrantCondition, 0, len(keys))}
	for _, k := range keys {
		f.Must = append(f.Must, qdrantCondition{Key: k, Match: map[string]any{"value": filter[k]}})
	}
	return f
}

func (s *QdrantIndex) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return errCollectionMissing
	}
	if resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("%w: qdrant %s %s failed: %s: %s", domain.ErrIndexUnavailable, method, url, resp.Status, strings.TrimSpace(string(preview)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode qdrant response: %w", err)
		}
	}
	return nil
}
