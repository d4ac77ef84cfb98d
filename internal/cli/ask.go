package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

var (
	askQuestion string
	askTopK     int
	askJSON     bool
	askMode     string
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieve the best matching context and ask the configured Ollama model
to answer from it.

Examples:
  docrag ask -q "How do I request a refund?"
  docrag ask -q "Who approves expenses?" --json`,
	Args: cobra.NoArgs,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "query", "q", "", "question (required)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.Flags().StringVar(&askMode, "mode", "", "ranking mode: cluster or flat (default from config)")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	topK, err := resolveTopK(askTopK)
	if err != nil {
		return err
	}
	mode, err := resolveMode(askMode)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	warnSchema(a)

	svc := usecase.NewAnswerService(a.ranker(mode), a.generator(), topK, a.logger)
	answer, err := svc.Ask(cmd.Context(), askQuestion)
	if err != nil {
		return err
	}

	if askJSON {
		if answer.Sources == nil {
			answer.Sources = []string{}
		}
		output, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	printAnswer(answer)
	return nil
}

func printAnswer(answer *domain.Answer) {
	fmt.Println(answer.Text)
	fmt.Println()
	sources := "none"
	if len(answer.Sources) > 0 {
		sources = strings.Join(answer.Sources, ", ")
	}
	fmt.Printf("%s %s\n", label("Sources:"), sources)
	fmt.Printf("%s %.3f %s\n", label("Distance:"), answer.Confidence, mutedStyle.Render("(mean, lower is better)"))
	fmt.Printf("%s %s\n", label("Time:"), mutedStyle.Render(fmt.Sprintf("%.2fs", answer.Elapsed.Seconds())))
}
