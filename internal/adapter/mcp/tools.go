package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"docrag/internal/domain"
)

// RetrieveInput is the input schema for the retrieve_context tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"the question to find supporting context for"`
	K     int    `json:"k,omitempty" jsonschema:"number of nearest chunks to consider (default from config)"`
}

// RetrieveOutput is the output schema for the retrieve_context tool.
type RetrieveOutput struct {
	Context    string   `json:"context"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence" jsonschema:"mean cosine distance of the context chunks, lower is better"`
	Found      bool     `json:"found"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve_context",
		Description: "Retrieve the best matching passage from the ingested documents",
	}, s.handleRetrieve)

	if s.ports.Answerer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question using the ingested documents and the configured language model",
		}, s.handleAsk)
	}
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, RetrieveOutput{}, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	k := input.K
	if k <= 0 {
		k = s.ports.TopK
	}

	result := s.ports.Retriever.Retrieve(ctx, query, k)
	s.logger.Debug("retrieve_context", "k", k, "found", !result.Empty(), "sources", result.Sources)

	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	return nil, RetrieveOutput{
		Context:    result.Context,
		Sources:    sources,
		Confidence: result.Confidence,
		Found:      !result.Empty(),
	}, nil
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, AskOutput{}, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}

	answer, err := s.ports.Answerer.Ask(ctx, question)
	if err != nil {
		return nil, AskOutput{}, err
	}

	sources := answer.Sources
	if sources == nil {
		sources = []string{}
	}
	return nil, AskOutput{
		Answer:     answer.Text,
		Sources:    sources,
		Confidence: answer.Confidence,
	}, nil
}
