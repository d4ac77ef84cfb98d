package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	_ "modernc.org/sqlite" // SQLite driver

	"docrag/internal/domain"
	"docrag/internal/port"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id       TEXT PRIMARY KEY,
	source   TEXT NOT NULL DEFAULT '',
	text     TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	vector   BLOB
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SQLiteIndex implements VectorIndex on a SQLite file. Vectors are stored as
// little-endian float32 blobs and searched by brute force; results tie on
// chunk ID. Source filters are answered from an indexed column.
type SQLiteIndex struct {
	db       *sql.DB
	path     string
	embedder port.Embedder
}

// OpenSQLite opens (or creates) the index at path.
func OpenSQLite(path string, embedder port.Embedder) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteIndex{db: db, path: path, embedder: embedder}, nil
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteIndex) Path() string {
	return s.path
}

func (s *SQLiteIndex) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := embedChunks(ctx, s.embedder, chunks)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, text, metadata, vector) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			text = excluded.text,
			metadata = excluded.metadata,
			vector = excluded.vector
	`)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata for %s: %w", c.ID, err)
		}
		source, _ := c.Metadata.String(domain.MetaSource)
		if _, err := stmt.ExecContext(ctx, c.ID, source, c.Text, string(meta), float32SliceToBytes(vectors[i])); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

func (s *SQLiteIndex) Query(ctx context.Context, text string, k int) ([]domain.Match, error) {
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

	records, err := s.scan(ctx, true)
	if err != nil {
		return nil, err
	}
	return nearest(records, vectors[0], k), nil
}

func (s *SQLiteIndex) Exists(ctx context.Context, filter domain.Filter) (bool, error) {
	if source, ok := sourceOnly(filter); ok || len(filter) == 0 {
		query, args := "SELECT 1 FROM chunks LIMIT 1", []any(nil)
		if ok {
			query, args = "SELECT 1 FROM chunks WHERE source = ? LIMIT 1", []any{source}
		}
		var one int
		err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
		return true, nil
	}

	records, err := s.scan(ctx, false)
	if err != nil {
		return false, err
	}
	for _, rec := range records {
		if rec.metadata.Matches(filter) {
			return true, nil
		}
	}
	return false, nil
}

func (s *SQLiteIndex) Delete(ctx context.Context, filter domain.Filter) error {
	if len(filter) == 0 {
		return s.exec(ctx, "DELETE FROM chunks")
	}
	if source, ok := sourceOnly(filter); ok {
		return s.exec(ctx, "DELETE FROM chunks WHERE source = ?", source)
	}

	records, err := s.scan(ctx, false)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck
	for _, rec := range records {
		if !rec.metadata.Matches(filter) {
			continue
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", rec.id); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return n, nil
}

// GetSchemaInfo returns the stored schema info; a zero value for a new index.
func (s *SQLiteIndex) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", string(keySchemaInfo)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return &info, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(value), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CheckSchema compares the stored schema with the current embedder.
func (s *SQLiteIndex) CheckSchema() (*SchemaCheck, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}
	return compareSchema(info, s.embedder), nil
}

// WriteSchema stamps the index with the current version and embedder.
func (s *SQLiteIndex) WriteSchema() error {
	data, err := json.Marshal(currentSchema(s.embedder))
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, string(keySchemaInfo), string(data))
	return err
}

func (s *SQLiteIndex) exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// scan loads every chunk ordered by ID. Vectors are decoded only when
// withVectors is set.
func (s *SQLiteIndex) scan(ctx context.Context, withVectors bool) ([]record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, text, metadata, vector FROM chunks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var records []record
	for rows.Next() {
		var (
			rec  record
			meta string
			blob []byte
		)
		if err := rows.Scan(&rec.id, &rec.text, &meta, &blob); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
		if err := json.Unmarshal([]byte(meta), &rec.metadata); err != nil {
			continue // Skip corrupted entries
		}
		if withVectors {
			rec.vector = bytesToFloat32Slice(blob)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return records, nil
}

// sourceOnly reports whether filter tests nothing but the source key.
func sourceOnly(filter domain.Filter) (string, bool) {
	if len(filter) != 1 {
		return "", false
	}
	return domain.Metadata(filter).String(domain.MetaSource)
}
	return domain.Metadata(filter).String(domain.MetaChunkID)
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
