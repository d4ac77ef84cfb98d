package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.index.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}

	cfg := GetConfig()
	fmt.Printf("Index:      %s (%s)\n", a.location, cfg.Index.Backend)
	fmt.Printf("Chunks:     %d\n", count)
	fmt.Printf("Embedder:   %s (dim %d)\n", a.embedder.ModelName(), a.embedder.Dimension())
	fmt.Printf("Retrieval:  top_k=%d max_context_length=%d mode=%s\n",
		cfg.Retrieve.TopK, cfg.Retrieve.MaxContextLength, cfg.Retrieve.Mode)

	if a.local != nil {
		info, err := a.local.GetSchemaInfo()
		if err != nil {
			return fmt.Errorf("failed to read schema info: %w", err)
		}
		if info.Version > 0 {
			fmt.Printf("Schema:     v%d, written by %s (dim %d)\n", info.Version, info.EmbeddingModel, info.Dimension)
		}
		warnSchema(a)
	}
	return nil
}

// warnSchema prints a hint when the index was built with another embedder.
func warnSchema(a *app) {
	if a.local == nil {
		return
	}
	check, err := a.local.CheckSchema()
	if err != nil || !check.NeedsRebuild {
		return
	}
	fmt.Fprintf(os.Stderr, "Warning: %s. Run 'docrag ingest --clear' to rebuild.\n", check.Reason)
}
