package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"docrag/internal/domain"
)

// CSVParser emits one record per data row. The header row supplies the
// field names; each row is rendered as "{name: value, ...}".
type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Parse(ctx context.Context, path string) ([]domain.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()
	return ReadCSV(ctx, f)
}

// ReadCSV parses CSV content from r.
func ReadCSV(ctx context.Context, r io.Reader) ([]domain.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var records []domain.RawRecord
	for row := 0; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", row, err)
		}
		records = append(records, domain.RawRecord{
			Text:     renderRow(header, fields),
			Metadata: domain.Metadata{domain.MetaRow: row},
		})
	}
	return records, nil
}

func renderRow(header, fields []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, value := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		name := fmt.Sprintf("column_%d", i)
		if i < len(header) && header[i] != "" {
			name = header[i]
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
	}
	b.WriteByte('}')
	return b.String()
}
