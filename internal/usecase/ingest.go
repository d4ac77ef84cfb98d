package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/fs"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// IngestConfig controls how documents are listed and chunked.
type IngestConfig struct {
	// ChunkSize is the maximum chunk length in characters. Default 500.
	ChunkSize int
	// ChunkOverlap is the trailing context carried into the next chunk.
	// Default 50.
	ChunkOverlap int
	// Includes are case-insensitive glob patterns matched against file
	// names. Default *.pdf, *.csv, *.txt.
	Includes []string
	Excludes []string
}

// DefaultIngestConfig returns the standard chunking parameters.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkSize:    chunker.DefaultChunkSize,
		ChunkOverlap: chunker.DefaultChunkOverlap,
		Includes:     fs.DefaultIncludes,
	}
}

// ProgressFunc is called after each listed file has been handled.
type ProgressFunc func(processed, total int, name string)

// IngestService loads new documents from a directory into the index.
type IngestService struct {
	index    port.VectorIndex
	parser   port.Parser
	chunker  port.Chunker
	walker   port.FileWalker
	logger   *slog.Logger
	progress ProgressFunc

	// mu serialises ingestion runs.
	mu sync.Mutex
}

// NewIngestService creates an ingestion coordinator. parser dispatches on
// file extension; a nil logger uses slog.Default().
func NewIngestService(cfg IngestConfig, index port.VectorIndex, parser port.Parser, logger *slog.Logger) (*IngestService, error) {
	c, err := chunker.NewRecursiveChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		index:   index,
		parser:  parser,
		chunker: c,
		walker:  fs.NewWalker(cfg.Includes, cfg.Excludes),
		logger:  logger,
	}, nil
}

// OnProgress registers fn to be called as files are processed.
func (s *IngestService) OnProgress(fn ProgressFunc) {
	s.progress = fn
}

// IngestResult summarises one ingestion run.
type IngestResult struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	ChunksIndexed int
	Errors        []string
}

// Ingest indexes every supported file in dir that is not yet in the index.
// Files are matched to the index by name only, so a modified file keeps its
// old chunks until the index is cleared. Listed files with no parser are
// ignored and not counted. A file whose chunk IDs are already held by
// another source (same name, different extension) fails.
//
// A missing directory is reported in the result, not as an error. Per-file
// failures are recorded and the run continues. The returned error is
// non-nil only when the directory cannot be listed or ctx is cancelled; in
// the latter case the partial result is returned too.
func (s *IngestService) Ingest(ctx context.Context, dir string) (*IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingest(ctx, dir)
}

func (s *IngestService) ingest(ctx context.Context, dir string) (*IngestResult, error) {
	log := s.logger.With("run", uuid.NewString()[:8], "dir", dir)
	result := &IngestResult{}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Warn("document directory not found or not a directory")
		result.Errors = append(result.Errors, fmt.Sprintf("directory %q not found or not a directory", dir))
		return result, nil
	}

	files, err := s.walker.Walk(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}
	log.Info("ingestion started", "files", len(files))

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			log.Warn("ingestion cancelled", "processed", i)
			return result, err
		}

		n, outcome, err := s.ingestFile(ctx, file, files, log)
		switch {
		case err != nil:
			result.FilesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.Name, err))
		case outcome == fileSkipped:
			result.FilesSkipped++
		case outcome == fileIndexed:
			result.FilesIndexed++
			result.ChunksIndexed += n
		}

		if s.progress != nil {
			s.progress(i+1, len(files), file.Name)
		}
	}

	log.Info("ingestion finished",
		"indexed", result.FilesIndexed,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"chunks", result.ChunksIndexed)
	return result, nil
}

type fileOutcome int

const (
	fileIndexed fileOutcome = iota
	// fileSkipped: already in the index.
	fileSkipped
	// fileIgnored: matched an include pattern but no parser handles it.
	fileIgnored
)

// ingestFile parses, chunks and upserts one file. files is the full
// listing of the run, used to name the other side of an ID collision.
func (s *IngestService) ingestFile(ctx context.Context, file port.FileInfo, files []port.FileInfo, log *slog.Logger) (int, fileOutcome, error) {
	log = log.With("file", file.Name)

	exists, err := s.index.Exists(ctx, domain.Filter{domain.MetaSource: file.Name})
	if err != nil {
		log.Warn("duplicate check failed", "error", err)
		return 0, fileIndexed, fmt.Errorf("duplicate check: %w", err)
	}
	if exists {
		log.Info("already indexed, skipping")
		return 0, fileSkipped, nil
	}

	records, err := s.parser.Parse(ctx, file.Path)
	if errors.Is(err, domain.ErrUnsupportedType) {
		log.Debug("no parser for file type, ignoring")
		return 0, fileIgnored, nil
	}
	if err != nil {
		log.Error("failed to read file", "error", err)
		return 0, fileIndexed, fmt.Errorf("parse: %w", err)
	}
	log.Debug("file loaded", "records", len(records))

	chunks := normaliseChunks(file.Name, s.chunker.Split(records))
	if len(chunks) == 0 {
		log.Warn("no text extracted")
		return 0, fileIndexed, fmt.Errorf("no text extracted")
	}

	// Chunk IDs are scoped by stem, so report.csv and report.txt would
	// overwrite each other. This source is not indexed yet, so any chunk
	// already holding the first ID belongs to another one.
	taken, err := s.index.Exists(ctx, domain.Filter{domain.MetaChunkID: chunks[0].ID})
	if err != nil {
		log.Warn("chunk id check failed", "error", err)
		return 0, fileIndexed, fmt.Errorf("chunk id check: %w", err)
	}
	if taken {
		other := s.idOwner(ctx, chunks[0].ID, file.Name, files)
		log.Warn("chunk id collision", "chunk_id", chunks[0].ID, "other", other)
		return 0, fileIndexed, fmt.Errorf("chunk id collision with %s", other)
	}

	if err := s.index.Upsert(ctx, chunks); err != nil {
		log.Error("failed to index chunks", "error", err)
		return 0, fileIndexed, fmt.Errorf("upsert: %w", err)
	}
	log.Info("file indexed", "chunks", len(chunks))
	return len(chunks), fileIndexed, nil
}

// idOwner names the listed file sharing name's stem that holds chunk id.
// Sources removed from the directory since they were indexed are not
// listed and come back as "another source".
func (s *IngestService) idOwner(ctx context.Context, id, name string, files []port.FileInfo) string {
	stem := fileStem(name)
	for _, f := range files {
		if f.Name == name || fileStem(f.Name) != stem {
			continue
		}
		owns, err := s.index.Exists(ctx, domain.Filter{domain.MetaChunkID: id, domain.MetaSource: f.Name})
		if err == nil && owns {
			return f.Name
		}
	}
	return "another source"
}

func fileStem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// normaliseChunks gives chunks file-scoped IDs "<stem>_<nnnn>" and replaces
// their metadata with exactly source, page and chunk_id.
func normaliseChunks(name string, chunks []domain.Chunk) []domain.Chunk {
	stem := fileStem(name)
	out := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		id := fmt.Sprintf("%s_%04d", stem, i)
		page, ok := c.Metadata.Int(domain.MetaPage)
		if !ok {
			page = 0
		}
		out[i] = domain.Chunk{
			ID:   id,
			Text: c.Text,
			Metadata: domain.Metadata{
				domain.MetaSource:  name,
				domain.MetaPage:    page,
				domain.MetaChunkID: id,
			},
		}
	}
	return out
}

// Clear removes every chunk from the index.
func (s *IngestService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Delete(ctx, domain.Filter{}); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	s.logger.Info("index cleared")
	return nil
}

// Forget removes the chunks of one source file.
func (s *IngestService) Forget(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forget(ctx, name)
}

func (s *IngestService) forget(ctx context.Context, name string) error {
	if err := s.index.Delete(ctx, domain.Filter{domain.MetaSource: name}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	s.logger.Info("source removed from index", "file", name)
	return nil
}

// ApplyChange brings the index in line with one watched file change. A
// deleted file loses its chunks. An updated file is forgotten and then
// picked up again by a run over dir, along with any other new files.
func (s *IngestService) ApplyChange(ctx context.Context, dir string, change fs.Change) (*IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch change.Type {
	case fs.ChangeDeleted:
		return &IngestResult{}, s.forget(ctx, change.Name)
	case fs.ChangeUpdated:
		if err := s.forget(ctx, change.Name); err != nil {
			return nil, err
		}
	}
	return s.ingest(ctx, dir)
}
