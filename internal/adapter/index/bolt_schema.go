package index

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"docrag/internal/port"
)

// CurrentSchemaVersion is the current on-disk layout version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var keySchemaInfo = []byte("schema_info")

// SchemaInfo records which layout and embedding model wrote the index.
type SchemaInfo struct {
	Version        int    `json:"version"`
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
}

// SchemaCheck describes whether the stored vectors can be reused.
type SchemaCheck struct {
	NeedsInit    bool
	NeedsRebuild bool
	Reason       string
}

// GetSchemaInfo returns the stored schema info; a zero value for a new index.
func (s *BoltIndex) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keySchemaInfo)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &info)
	})
	return &info, err
}

// CheckSchema compares the stored schema with the current embedder.
func (s *BoltIndex) CheckSchema() (*SchemaCheck, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}
	return compareSchema(info, s.embedder), nil
}

// compareSchema decides whether stored vectors can be reused. Vectors from a
// different model or dimension are not comparable with new queries, so the
// index has to be cleared and re-ingested.
func compareSchema(info *SchemaInfo, embedder port.Embedder) *SchemaCheck {
	check := &SchemaCheck{}
	switch {
	case info.Version == 0:
		check.NeedsInit = true
		check.Reason = "initializing schema"
	case info.Version > CurrentSchemaVersion:
		check.NeedsRebuild = true
		check.Reason = fmt.Sprintf("index created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
	case info.EmbeddingModel != embedder.ModelName():
		check.NeedsRebuild = true
		check.Reason = fmt.Sprintf("embedding model changed from %s to %s", info.EmbeddingModel, embedder.ModelName())
	case info.Dimension != embedder.Dimension():
		check.NeedsRebuild = true
		check.Reason = fmt.Sprintf("embedding dimension changed from %d to %d", info.Dimension, embedder.Dimension())
	}
	return check
}

func currentSchema(embedder port.Embedder) SchemaInfo {
	return SchemaInfo{
		Version:        CurrentSchemaVersion,
		EmbeddingModel: embedder.ModelName(),
		Dimension:      embedder.Dimension(),
	}
}

// WriteSchema stamps the index with the current version and embedder.
func (s *BoltIndex) WriteSchema() error {
	data, err := json.Marshal(currentSchema(s.embedder))
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keySchemaInfo, data)
	})
}
