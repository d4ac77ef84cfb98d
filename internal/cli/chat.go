package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/usecase"
)

var chatTopK int

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	Long: `Start an interactive session. Each line is answered from the indexed
documents. Commands:
  /ingest [dir]  index new documents, then continue
  /quit          leave the session`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().IntVarP(&chatTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	topK, err := resolveTopK(chatTopK)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	warnSchema(a)

	ingest, err := a.ingestService()
	if err != nil {
		return err
	}
	ranker := a.ranker("")
	svc := usecase.NewAnswerService(ranker, a.generator(), topK, a.logger)

	fmt.Println(mutedStyle.Render("Ask a question about your documents. Type /quit to leave."))
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/ingest" || strings.HasPrefix(line, "/ingest "):
			dir := strings.TrimSpace(strings.TrimPrefix(line, "/ingest"))
			if dir == "" {
				dir = GetConfig().DataDirPath(GetRootDir())
			}
			result, err := ingest.Ingest(ctx, dir)
			if result != nil {
				printIngestResult(result)
			}
			if err != nil {
				fmt.Println(errorStyle.Render(fmt.Sprintf("Ingestion failed: %v", err)))
			}
			if err := a.stampSchema(); err != nil {
				fmt.Println(warningStyle.Render(fmt.Sprintf("Warning: %v", err)))
			}
			ranker.Invalidate()
			continue
		}

		answer, err := svc.Ask(ctx, line)
		if err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("Error: %v", err)))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		printAnswer(answer)
		fmt.Println()
	}
}
