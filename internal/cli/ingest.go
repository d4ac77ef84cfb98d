package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docrag/internal/adapter/fs"
	"docrag/internal/usecase"
)

var (
	ingestClear bool
	ingestWatch bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index new documents from a directory",
	Long: `Index the PDF, CSV and text files directly inside a directory.
Files whose name is already in the index are skipped; use --clear to
re-index everything.

Examples:
  docrag ingest                # Use ingest.data_dir from the config
  docrag ingest ./manuals      # Index a specific directory
  docrag ingest --clear        # Drop the index first
  docrag ingest --watch        # Keep indexing as files change`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestClear, "clear", false, "clear the index before ingesting")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep running and index files as they change")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	dir := cfg.DataDirPath(GetRootDir())
	if len(args) > 0 {
		var err error
		dir, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.ingestService()
	if err != nil {
		return err
	}

	if ingestClear {
		fmt.Println("Clearing existing index...")
		if err := svc.Clear(ctx); err != nil {
			return err
		}
	} else if err := a.prepareSchema(ctx, svc); err != nil {
		return err
	}

	fmt.Printf("Scanning %s...\n", dir)
	if stdoutIsTerminal() {
		svc.OnProgress(newProgress("Ingesting"))
	}

	result, err := svc.Ingest(ctx, dir)
	if result != nil {
		printIngestResult(result)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if err := a.stampSchema(); err != nil {
		return err
	}

	if total, err := a.index.Count(ctx); err != nil {
		fmt.Printf("\nCould not count indexed chunks: %v\n", err)
	} else {
		fmt.Printf("\nTotal chunks in index: %d\n", total)
	}
	fmt.Printf("Index stored at: %s\n", a.location)

	if ingestWatch {
		return watchDir(ctx, a, svc, dir)
	}
	return nil
}

// watchDebounce coalesces the bursts of events editors emit per save.
const watchDebounce = 500 * time.Millisecond

// watchDir applies file changes in dir until ctx is cancelled.
func watchDir(ctx context.Context, a *app, svc *usecase.IngestService, dir string) error {
	w, err := fs.NewWatcher(dir, fs.NewWalker(a.cfg.Ingest.Includes, a.cfg.Ingest.Excludes))
	if err != nil {
		return err
	}
	defer w.Close()

	svc.OnProgress(nil)
	errs := make(chan error, 1)
	changes := w.Watch(ctx, errs)
	fmt.Printf("\nWatching %s for changes (Ctrl+C to stop)...\n", dir)

	pending := make(map[string]fs.Change)
	timer := time.NewTimer(watchDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			a.logger.Warn("watch error", "error", err)
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if prev, seen := pending[change.Name]; seen && prev.Type == fs.ChangeCreated && change.Type == fs.ChangeUpdated {
				change.Type = fs.ChangeCreated
			}
			pending[change.Name] = change
			timer.Reset(watchDebounce)
		case <-timer.C:
			for name, change := range pending {
				delete(pending, name)
				result, err := svc.ApplyChange(ctx, dir, change)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					fmt.Printf("%s %s: %v\n", change.Type, name, err)
					continue
				}
				fmt.Printf("%s %s: %d files indexed, %d chunks\n", change.Type, name, result.FilesIndexed, result.ChunksIndexed)
				for _, e := range result.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}
			if err := a.stampSchema(); err != nil {
				a.logger.Warn("schema update failed", "error", err)
			}
		}
	}
}

func printIngestResult(result *usecase.IngestResult) {
	fmt.Printf("\n%s\n", successStyle.Render("Ingestion complete:"))
	fmt.Printf("  Files indexed:  %d\n", result.FilesIndexed)
	fmt.Printf("  Files skipped:  %d (already indexed)\n", result.FilesSkipped)
	failed := fmt.Sprintf("%d", result.FilesFailed)
	if result.FilesFailed > 0 {
		failed = errorStyle.Render(failed)
	}
	fmt.Printf("  Files failed:   %s\n", failed)
	fmt.Printf("  Chunks indexed: %d\n", result.ChunksIndexed)

	if len(result.Errors) > 0 {
		fmt.Printf("\n%s\n", warningStyle.Render("Warnings:"))
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}

// newProgress returns a progress callback that draws a bar with an ETA. The
// bar is created on the first call, once the total is known.
func newProgress(label string) usecase.ProgressFunc {
	var (
		bar       *progressbar.ProgressBar
		mu        sync.Mutex
		startTime time.Time
	)

	return func(processed, total int, name string) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", label)),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(processed)

		elapsed := time.Since(startTime)
		rate := float64(processed) / elapsed.Seconds()
		if remaining := total - processed; rate > 0 && remaining > 0 {
			eta := time.Duration(float64(remaining)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]%s[reset] %s ETA: %s", label, name, formatDuration(eta)))
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
