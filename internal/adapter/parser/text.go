package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"docrag/internal/domain"
)

// TextParser splits a UTF-8 text file into paragraphs separated by blank lines.
type TextParser struct{}

func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Parse(_ context.Context, path string) ([]domain.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	return SplitParagraphs(string(data)), nil
}

// SplitParagraphs returns one record per non-blank paragraph, indexed from 0.
func SplitParagraphs(text string) []domain.RawRecord {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var records []domain.RawRecord
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		records = append(records, domain.RawRecord{
			Text:     para,
			Metadata: domain.Metadata{domain.MetaParagraph: len(records)},
		})
	}
	return records
}
