package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docrag/config"
	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/index"
	"docrag/internal/adapter/llm"
	"docrag/internal/adapter/parser"
	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

// localIndex is a file-backed index that records which embedder wrote it.
type localIndex interface {
	GetSchemaInfo() (*index.SchemaInfo, error)
	CheckSchema() (*index.SchemaCheck, error)
	WriteSchema() error
	Close() error
}

// app bundles the collaborators a command needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	embedder port.Embedder
	index    port.VectorIndex
	// local is set only for the bolt and sqlite backends.
	local    localIndex
	location string
	// queries is shared by the rankers of every mode.
	queries  *cache.QueryCache
}

// openApp builds the embedder and opens the configured index.
func openApp() (*app, error) {
	cfg := GetConfig()
	a := &app{cfg: cfg, logger: GetLogger()}

	emb, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	a.embedder = emb

	switch cfg.Index.Backend {
	case "qdrant":
		q := cfg.Index.Qdrant
		a.index = index.NewQdrantIndex(index.QdrantConfig{
			URL:        q.URL,
			APIKey:     os.Getenv(q.APIKeyEnv),
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}, emb)
		a.location = fmt.Sprintf("%s/collections/%s", strings.TrimRight(q.URL, "/"), q.Collection)
	case "memory":
		a.index = index.NewMemoryIndex(emb)
		a.location = "memory (not persisted)"
	case "sqlite":
		dbPath := cfg.IndexDBPath(GetRootDir())
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		s, err := index.OpenSQLite(dbPath, emb)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		a.index = s
		a.local = s
		a.location = dbPath
	default:
		dbPath := cfg.IndexDBPath(GetRootDir())
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		b, err := index.OpenBolt(dbPath, emb, time.Duration(cfg.Index.OpenTimeoutSecs)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to open index (is another docrag process running?): %w", err)
		}
		a.index = b
		a.local = b
		a.location = dbPath
	}
	return a, nil
}

func (a *app) Close() error {
	if a.local != nil {
		return a.local.Close()
	}
	return nil
}

func newEmbedder(c config.EmbeddingConfig) (port.Embedder, error) {
	opts := []embedding.Option{
		embedding.WithBatchSize(c.BatchSize),
		embedding.WithRateLimit(c.RequestsPerSecond),
		embedding.WithDimension(c.Dimension),
	}

	var (
		emb port.Embedder
		err error
	)
	switch strings.ToLower(c.Provider) {
	case "hash":
		emb = embedding.NewHashEmbedder(c.Dimension)
	case "openai":
		if c.BaseURL != "" {
			emb, err = embedding.NewOpenAICompatibleEmbedder(c.APIKeyEnv, c.Model, c.BaseURL, opts...)
		} else {
			emb, err = embedding.NewOpenAIEmbedder(c.APIKeyEnv, c.Model, opts...)
		}
	case "deepseek":
		emb, err = embedding.NewDeepSeekEmbedder(c.APIKeyEnv, c.Model, opts...)
	case "jina":
		emb, err = embedding.NewJinaEmbedder(c.APIKeyEnv, c.Model, opts...)
	case "ollama":
		emb, err = embedding.NewOllamaEmbedder(c.Model, c.BaseURL, opts...)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", c.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return emb, nil
}

func (a *app) ingestService() (*usecase.IngestService, error) {
	return usecase.NewIngestService(usecase.IngestConfig{
		ChunkSize:    a.cfg.Ingest.ChunkSize,
		ChunkOverlap: a.cfg.Ingest.ChunkOverlap,
		Includes:     a.cfg.Ingest.Includes,
		Excludes:     a.cfg.Ingest.Excludes,
	}, a.index, parser.NewRegistry(), a.logger)
}

// ranker returns the configured ranker wrapped in a query cache. An empty
// mode keeps the configured one.
func (a *app) ranker(mode string) *cache.CachedRanker {
	rc := usecase.RetrievalConfig{
		TopK:             a.cfg.Retrieve.TopK,
		MaxContextLength: a.cfg.Retrieve.MaxContextLength,
		Mode:             domain.RetrievalMode(a.cfg.Retrieve.Mode),
	}
	if mode != "" {
		rc.Mode = domain.RetrievalMode(mode)
	}
	if a.queries == nil {
		a.queries = cache.NewQueryCache(a.cfg.Retrieve.CacheSize, time.Duration(a.cfg.Retrieve.CacheTTLSecs)*time.Second)
	}
	return cache.NewCachedRanker(usecase.NewRanker(rc, a.index, a.logger), a.queries)
}

func (a *app) generator() *llm.OllamaGenerator {
	c := a.cfg.LLM
	return llm.NewOllamaGenerator(llm.Config{
		URL:         c.URL,
		Model:       c.Model,
		Temperature: c.Temperature,
		TopP:        c.TopP,
		NumCtx:      c.NumCtx,
		Timeout:     time.Duration(c.TimeoutSecs) * time.Second,
	})
}

// resolveTopK maps a zero flag value to the configured default.
func resolveTopK(flag int) (int, error) {
	if flag < 0 {
		return 0, fmt.Errorf("%w: -k must be positive, got %d", domain.ErrInvalidInput, flag)
	}
	if flag == 0 {
		return GetConfig().Retrieve.TopK, nil
	}
	return flag, nil
}

// resolveMode validates a --mode flag value.
func resolveMode(flag string) (string, error) {
	if flag == "" {
		return "", nil
	}
	if !domain.RetrievalMode(flag).Valid() {
		return "", fmt.Errorf("%w: --mode must be cluster or flat, got %q", domain.ErrInvalidInput, flag)
	}
	return flag, nil
}

// prepareSchema clears a local index whose vectors came from another
// embedder. Other backends have nothing to check.
func (a *app) prepareSchema(ctx context.Context, svc *usecase.IngestService) error {
	if a.local == nil {
		return nil
	}
	check, err := a.local.CheckSchema()
	if err != nil {
		return err
	}
	if check.NeedsRebuild {
		fmt.Printf("Index rebuild required: %s\n", check.Reason)
		fmt.Println("Clearing existing index...")
		if err := svc.Clear(ctx); err != nil {
			return err
		}
	}
	return nil
}

// stampSchema records the current embedder in a local index.
func (a *app) stampSchema() error {
	if a.local == nil {
		return nil
	}
	if err := a.local.WriteSchema(); err != nil {
		return fmt.Errorf("failed to update schema info: %w", err)
	}
	return nil
}
