package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/domain"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
	queryMode string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Show the context retrieved for a question",
	Long: `Retrieve the context that would be handed to the model, together with
its source document and mean distance. No model is called.

Examples:
  docrag query -q "refund policy"
  docrag query -q "refund policy" -k 10 --mode flat --json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().StringVar(&queryMode, "mode", "", "ranking mode: cluster or flat (default from config)")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	topK, err := resolveTopK(queryTopK)
	if err != nil {
		return err
	}
	mode, err := resolveMode(queryMode)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	warnSchema(a)

	result := a.ranker(mode).Retrieve(cmd.Context(), queryText, topK)

	if queryJSON {
		if result.Sources == nil {
			result.Sources = []string{}
		}
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	printResult(result)
	return nil
}

func printResult(result domain.RetrievalResult) {
	if result.Empty() {
		fmt.Println(warningStyle.Render("No relevant context found."))
		return
	}
	fmt.Printf("%s %s\n", label("Sources:"), strings.Join(result.Sources, ", "))
	fmt.Printf("%s %.3f %s\n\n", label("Distance:"), result.Confidence, mutedStyle.Render("(mean, lower is better)"))
	fmt.Println(result.Context)
}
