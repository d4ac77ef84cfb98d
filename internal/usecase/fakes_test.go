package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"docrag/internal/domain"
)

// stubIndex is a VectorIndex double that records calls.
type stubIndex struct {
	mu        sync.Mutex
	matches   []domain.Match
	queryErr  error
	existsErr error
	upsertErr map[string]error // by source
	stored    map[string]domain.Chunk
	upserts   [][]domain.Chunk
	deletes   []domain.Filter
	queries   []int
}

func newStubIndex() *stubIndex {
	return &stubIndex{stored: make(map[string]domain.Chunk), upsertErr: make(map[string]error)}
}

func (s *stubIndex) Upsert(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(chunks) > 0 {
		src, _ := chunks[0].Metadata.String(domain.MetaSource)
		if err := s.upsertErr[src]; err != nil {
			return err
		}
	}
	s.upserts = append(s.upserts, chunks)
	for _, c := range chunks {
		s.stored[c.ID] = c
	}
	return nil
}

func (s *stubIndex) Query(_ context.Context, _ string, k int) ([]domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, k)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.matches, nil
}

func (s *stubIndex) Exists(_ context.Context, filter domain.Filter) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	for _, c := range s.stored {
		if c.Metadata.Matches(filter) {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubIndex) Delete(_ context.Context, filter domain.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, filter)
	for id, c := range s.stored {
		if c.Metadata.Matches(filter) {
			delete(s.stored, id)
		}
	}
	return nil
}

func (s *stubIndex) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored), nil
}

// stubParser returns canned records per file name.
type stubParser struct {
	records map[string][]domain.RawRecord
	errs    map[string]error
	parsed  []string
}

func (p *stubParser) Parse(_ context.Context, path string) ([]domain.RawRecord, error) {
	name := filepath.Base(path)
	p.parsed = append(p.parsed, name)
	if err := p.errs[name]; err != nil {
		return nil, err
	}
	if recs, ok := p.records[name]; ok {
		return recs, nil
	}
	return []domain.RawRecord{{Text: "contents of " + name, Metadata: domain.Metadata{}}}, nil
}

// stubGenerator returns a fixed reply and keeps the last prompt.
type stubGenerator struct {
	reply  string
	err    error
	prompt string
	calls  int
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls++
	g.prompt = prompt
	return g.reply, g.err
}

func (g *stubGenerator) ModelName() string { return "stub" }

// stubRetriever returns a fixed result.
type stubRetriever struct {
	result domain.RetrievalResult
	k      int
}

func (r *stubRetriever) Retrieve(_ context.Context, _ string, k int) domain.RetrievalResult {
	r.k = k
	return r.result
}

var errBoom = errors.New("boom")

// testLogger captures log output for assertions.
func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func match(source, title string, dist float64, text string) domain.Match {
	meta := domain.Metadata{domain.MetaSource: source}
	if title != "" {
		meta[domain.MetaTitle] = title
	}
	return domain.Match{Text: text, Metadata: meta, Distance: dist}
}
