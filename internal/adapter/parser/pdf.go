package parser

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"docrag/internal/domain"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

const pdfTool = "pdftotext"

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

// PDFParser extracts text with poppler's pdftotext and emits one record per
// page. pdftotext separates pages with form feeds.
type PDFParser struct {
	runner   CommandRunner
	lookPath func(string) (string, error)
}

func NewPDFParser() *PDFParser {
	return &PDFParser{runner: execRunner{}, lookPath: exec.LookPath}
}

// NewPDFParserWithRunner uses runner instead of executing pdftotext and
// skips the PATH lookup.
func NewPDFParserWithRunner(runner CommandRunner) *PDFParser {
	return &PDFParser{
		runner:   runner,
		lookPath: func(name string) (string, error) { return name, nil },
	}
}

// CheckAvailable reports whether pdftotext can be found.
func CheckAvailable() error {
	if _, err := exec.LookPath(pdfTool); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns a hint for installing pdftotext.
func InstallInstructions() string {
	return "PDF ingestion needs pdftotext (poppler):\n" +
		"  macOS:  brew install poppler\n" +
		"  Debian: apt install poppler-utils"
}

func (p *PDFParser) Parse(ctx context.Context, path string) ([]domain.RawRecord, error) {
	bin, err := p.lookPath(pdfTool)
	if err != nil {
		return nil, ErrPDFToolNotFound
	}
	out, err := p.runner.Run(ctx, bin, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed for %s: %w", path, err)
	}
	return SplitPages(string(out)), nil
}

// SplitPages returns one record per form-feed separated page, indexed from 0.
// Blank pages are kept so page numbers stay aligned with the document.
func SplitPages(text string) []domain.RawRecord {
	pages := strings.Split(text, "\f")
	if n := len(pages); n > 0 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	records := make([]domain.RawRecord, 0, len(pages))
	for i, page := range pages {
		records = append(records, domain.RawRecord{
			Text:     page,
			Metadata: domain.Metadata{domain.MetaPage: i},
		})
	}
	return records
}
