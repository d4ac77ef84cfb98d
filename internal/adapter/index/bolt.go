package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var (
	bucketChunks = []byte("chunks")
	bucketMeta   = []byte("meta")
)

// BoltIndex implements VectorIndex on a single bbolt file. Vectors are
// cached in memory and searched by brute force; results tie on chunk ID.
type BoltIndex struct {
	db       *bbolt.DB
	embedder port.Embedder
	mu       sync.RWMutex
	// In-memory cache for fast search
	records map[string]record
}

type storedChunk struct {
	Text     string          `json:"t"`
	Metadata domain.Metadata `json:"m,omitempty"`
	Vector   []float32       `json:"v"`
}

// OpenBolt opens (or creates) the index at path. bbolt holds an exclusive
// file lock, so a second process blocks for at most timeout and then fails.
func OpenBolt(path string, embedder port.Embedder, timeout time.Duration) (*BoltIndex, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	idx := &BoltIndex{
		db:       db,
		embedder: embedder,
		records:  make(map[string]record),
	}

	if err := idx.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	return idx, nil
}

// load reads every stored chunk into memory.
func (s *BoltIndex) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			var stored storedChunk
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			id := string(k)
			s.records[id] = record{id: id, text: stored.Text, metadata: stored.Metadata, vector: stored.Vector}
			return nil
		})
	})
}

func (s *BoltIndex) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := embedChunks(ctx, s.embedder, chunks)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		for i, c := range chunks {
			data, err := json.Marshal(storedChunk{Text: c.Text, Metadata: c.Metadata, Vector: vectors[i]})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(c.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	// Update in-memory cache only after the transaction committed
	for i, c := range chunks {
		s.records[c.ID] = record{id: c.ID, text: c.Text, metadata: c.Metadata.Clone(), vector: vectors[i]}
	}
	return nil
}

func (s *BoltIndex) Query(ctx context.Context, text string, k int) ([]domain.Match, error) {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}
	if err := checkDimension(vectors, s.embedder.Dimension()); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return nearest(s.sorted(), vectors[0], k), nil
}

func (s *BoltIndex) Exists(_ context.Context, filter domain.Filter) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.metadata.Matches(filter) {
			return true, nil
		}
	}
	return false, nil
}

func (s *BoltIndex) Delete(_ context.Context, filter domain.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, rec := range s.records {
		if rec.metadata.Matches(filter) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func (s *BoltIndex) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *BoltIndex) Close() error {
	return s.db.Close()
}

// sorted returns the cached records ordered by ID, matching bbolt's key order.
func (s *BoltIndex) sorted() []record {
	records := make([]record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].id < records[j].id
	})
	return records
}
