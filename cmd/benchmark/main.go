package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"docrag/config"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/index"
	"docrag/internal/domain"
	"docrag/internal/logging"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

// localIndex is a bolt or sqlite index.
type localIndex interface {
	port.VectorIndex
	CheckSchema() (*index.SchemaCheck, error)
	Close() error
}

func openIndex(cfg *config.Config, dir string, embedder port.Embedder) (localIndex, error) {
	path := cfg.IndexDBPath(dir)
	if cfg.Index.Backend == "sqlite" {
		return index.OpenSQLite(path, embedder)
	}
	return index.OpenBolt(path, embedder, time.Duration(cfg.Index.OpenTimeoutSecs)*time.Second)
}

func main() {
	indexPath := flag.String("index", ".", "Path to the project directory holding the .docrag index")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of matches")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -index ./tmp -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Raw nearest matches with their distances")
		fmt.Println("  2. Cluster ranking (one topic, one source)")
		fmt.Println("  3. Flat ranking (all matches)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*indexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	embedder, err := setupEmbedding(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder not available: %v\n", err)
		os.Exit(1)
	}

	idx, err := openIndex(cfg, *indexPath, embedder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx := context.Background()
	count, _ := idx.Count(ctx)
	if count == 0 {
		fmt.Fprintln(os.Stderr, "Index is empty - run 'docrag ingest' first")
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks indexed: %d\n", count)
	fmt.Printf("Embedder: %s (dim %d)\n", embedder.ModelName(), embedder.Dimension())
	if check, err := idx.CheckSchema(); err == nil && check.NeedsRebuild {
		fmt.Printf("Warning: %s\n", check.Reason)
	}
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	matches, err := idx.Query(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Top %d matches in %s:\n\n", len(matches), time.Since(start).Round(time.Microsecond))

	if len(matches) == 0 {
		fmt.Println("No matches.")
		return
	}

	total := 0.0
	for i, m := range matches {
		preview := m.Text
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}
		preview = strings.ReplaceAll(preview, "\n", " ")
		total += m.Distance

		fmt.Printf("%d. [%s %.3f] %s (%s)\n", i+1, rating(m.Distance), m.Distance, m.Source(), m.Metadata.StringOr(domain.MetaChunkID, "?"))
		fmt.Printf("   %s\n\n", preview)
	}

	logger := logging.Discard()
	for _, mode := range []domain.RetrievalMode{domain.ModeCluster, domain.ModeFlat} {
		rc := usecase.DefaultRetrievalConfig()
		rc.MaxContextLength = cfg.Retrieve.MaxContextLength
		rc.Mode = mode
		result := usecase.NewRanker(rc, idx, logger).Retrieve(ctx, *query, *topK)

		fmt.Println(strings.Repeat("=", 70))
		fmt.Printf("%s ranking:\n", strings.ToUpper(string(mode)))
		if result.Empty() {
			fmt.Println("  (empty)")
			continue
		}
		fmt.Printf("  Sources:       %s\n", strings.Join(result.Sources, ", "))
		fmt.Printf("  Mean distance: %.3f\n", result.Confidence)
		fmt.Printf("  Context chars: %d\n", len([]rune(result.Context)))
	}

	avg := total / float64(len(matches))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average distance: %.3f\n", avg)
	fmt.Printf("  Top-1 distance:   %.3f\n", matches[0].Distance)

	if avg < 0.5 {
		fmt.Println("  Status: GOOD - matches are close to the query")
	} else if avg < 0.7 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need better embeddings or re-ingesting")
	}
}

func rating(distance float64) string {
	switch {
	case distance < 0.3:
		return "HIGH"
	case distance < 0.5:
		return "GOOD"
	case distance < 0.7:
		return "OK"
	default:
		return "LOW"
	}
}

func setupEmbedding(cfg *config.Config) (port.Embedder, error) {
	var embedder port.Embedder
	var err error

	switch cfg.Embedding.Provider {
	case "hash":
		embedder = embedding.NewHashEmbedder(cfg.Embedding.Dimension)
	case "ollama":
		embedder, err = embedding.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.BaseURL, embedding.WithDimension(cfg.Embedding.Dimension))
	case "openai":
		embedder, err = embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, embedding.WithDimension(cfg.Embedding.Dimension))
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}
	return embedder, nil
}
