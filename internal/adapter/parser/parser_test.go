package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

type mockRunner struct {
	output []byte
	err    error
	args   []string
}

func (m *mockRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	m.args = args
	return m.output, m.err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSplitParagraphs(t *testing.T) {
	records := SplitParagraphs("First paragraph.\r\n\r\n\n\n  Second\nparagraph.  \n\n   \n\nThird.")
	require.Len(t, records, 3)
	assert.Equal(t, "First paragraph.", records[0].Text)
	assert.Equal(t, "Second\nparagraph.", records[1].Text)
	assert.Equal(t, "Third.", records[2].Text)
	for i, rec := range records {
		assert.Equal(t, i, rec.Metadata[domain.MetaParagraph])
	}
}

func TestTextParser_Parse(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "alpha\n\nbeta\n")
	records, err := NewTextParser().Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "beta", records[1].Text)
}

func TestTextParser_MissingFile(t *testing.T) {
	_, err := NewTextParser().Parse(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	content := "\ufeffname,role\nAna,engineer\nBruno, manager\n"
	records, err := ReadCSV(context.Background(), strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "{name: Ana, role: engineer}", records[0].Text)
	assert.Equal(t, "{name: Bruno, role: manager}", records[1].Text)
	assert.Equal(t, 0, records[0].Metadata[domain.MetaRow])
	assert.Equal(t, 1, records[1].Metadata[domain.MetaRow])
}

func TestReadCSV_RaggedRows(t *testing.T) {
	records, err := ReadCSV(context.Background(), strings.NewReader("a\n1,2\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "{a: 1, column_1: 2}", records[0].Text)
}

func TestReadCSV_Empty(t *testing.T) {
	records, err := ReadCSV(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadCSV_Malformed(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("a,b\n\"unterminated,1\n"))
	assert.Error(t, err)
}

func TestSplitPages(t *testing.T) {
	records := SplitPages("page one\fpage two\f\fpage four\f")
	require.Len(t, records, 4)
	assert.Equal(t, "page one", records[0].Text)
	assert.Equal(t, "", records[2].Text)
	assert.Equal(t, 3, records[3].Metadata[domain.MetaPage])
}

func TestPDFParser_WithRunner(t *testing.T) {
	runner := &mockRunner{output: []byte("Title\n\nBody text.\fSecond page.\f")}
	records, err := NewPDFParserWithRunner(runner).Parse(context.Background(), "/docs/manual.pdf")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Second page.", records[1].Text)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "/docs/manual.pdf", "-"}, runner.args)
}

func TestPDFParser_RunnerError(t *testing.T) {
	runner := &mockRunner{err: errors.New("exit status 1")}
	_, err := NewPDFParserWithRunner(runner).Parse(context.Background(), "/docs/broken.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.pdf")
}

func TestPDFParser_ToolMissing(t *testing.T) {
	p := &PDFParser{
		runner:   &mockRunner{},
		lookPath: func(string) (string, error) { return "", errors.New("not found") },
	}
	_, err := p.Parse(context.Background(), "/docs/a.pdf")
	assert.ErrorIs(t, err, ErrPDFToolNotFound)
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{".csv", ".pdf", ".txt"}, r.Extensions())

	p, err := r.For("/x/REPORT.PDF")
	require.NoError(t, err)
	assert.IsType(t, &PDFParser{}, p)

	_, err = r.For("/x/image.png")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	path := writeFile(t, t.TempDir(), "a.TXT", "one\n\ntwo")
	records, err := r.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
