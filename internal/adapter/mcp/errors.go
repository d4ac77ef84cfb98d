// Package mcp exposes retrieval and question answering as Model Context
// Protocol tools so assistants can query an ingested corpus.
package mcp

import "errors"

// ErrMissingRetriever is returned when no retriever is provided.
var ErrMissingRetriever = errors.New("mcp: retriever is required")
