package mcp

import (
	"context"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// Answerer answers a question from retrieved context.
type Answerer interface {
	Ask(ctx context.Context, question string) (*domain.Answer, error)
}

// Ports aggregates what the MCP server calls into.
type Ports struct {
	// Retriever backs the retrieve_context tool.
	Retriever port.Retriever

	// Answerer backs the ask tool. Optional; the tool is not registered
	// when nil.
	Answerer Answerer

	// TopK is used when a tool call does not set k.
	TopK int
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	return nil
}
