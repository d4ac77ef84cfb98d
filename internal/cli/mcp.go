package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docrag/internal/adapter/mcp"
	"docrag/internal/usecase"
)

var (
	mcpPort  int
	mcpMode  string
	mcpNoAsk bool
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve retrieval over the Model Context Protocol",
	Long: `Start an MCP server exposing the ingested documents to AI assistants.

Tools:
  retrieve_context  ranked context, sources and mean distance for a query
  ask               answer generated by the configured Ollama model

Examples:
  docrag mcp
  docrag mcp --port 8080
  docrag mcp --no-ask

Assistant configuration:
  {
    "mcpServers": {
      "docrag": {
        "command": "docrag",
        "args": ["mcp", "-d", "/path/to/project"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.Flags().StringVar(&mcpMode, "mode", "", "ranking mode: cluster or flat (default from config)")
	mcpCmd.Flags().BoolVar(&mcpNoAsk, "no-ask", false, "do not expose the ask tool")
}

func runMCP(cmd *cobra.Command, _ []string) error {
	mode, err := resolveMode(mcpMode)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	warnSchema(a)

	ranker := a.ranker(mode)
	ports := &mcp.Ports{
		Retriever: ranker,
		TopK:      a.cfg.Retrieve.TopK,
	}
	if !mcpNoAsk {
		ports.Answerer = usecase.NewAnswerService(ranker, a.generator(), a.cfg.Retrieve.TopK, a.logger)
	}

	server, err := mcp.NewServer(ports, a.logger)
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}
	return server.Run(cmd.Context())
}
