// Package parser turns supported document files into raw records: one per
// PDF page, CSV row or text paragraph.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// Registry maps lower-case file extensions (".pdf") to parsers.
type Registry struct {
	parsers map[string]port.Parser
}

// NewRegistry returns a registry with the PDF, CSV and text parsers.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]port.Parser)}
	r.Register(".pdf", NewPDFParser())
	r.Register(".csv", NewCSVParser())
	r.Register(".txt", NewTextParser())
	return r
}

// Register binds ext to p, replacing any previous binding.
func (r *Registry) Register(ext string, p port.Parser) {
	r.parsers[normaliseExt(ext)] = p
}

// For returns the parser for path's extension.
func (r *Registry) For(path string) (port.Parser, error) {
	ext := normaliseExt(filepath.Ext(path))
	p, ok := r.parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: no parser for %q", domain.ErrUnsupportedType, ext)
	}
	return p, nil
}

// Parse dispatches to the parser registered for path's extension.
func (r *Registry) Parse(ctx context.Context, path string) ([]domain.RawRecord, error) {
	p, err := r.For(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, path)
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normaliseExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
