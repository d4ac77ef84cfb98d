package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func newChunker(t *testing.T, size, overlap int) *RecursiveChunker {
	t.Helper()
	c, err := NewRecursiveChunker(size, overlap)
	require.NoError(t, err)
	return c
}

func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%02d", i)
	}
	return strings.Join(words, " ")
}

func TestNewRecursiveChunker_InvalidArgs(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 20},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRecursiveChunker(tc.size, tc.overlap)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSplitText_EmptyInput(t *testing.T) {
	c := newChunker(t, 20, 5)
	assert.Empty(t, c.SplitText(""))
	assert.Empty(t, c.SplitText("   \n\n  \t\n "))
	assert.Empty(t, c.Split([]domain.RawRecord{{Text: " \n ", Metadata: domain.Metadata{"page": 0}}}))
}

func TestSplitText_ShortTextIsOneChunk(t *testing.T) {
	c := newChunker(t, DefaultChunkSize, DefaultChunkOverlap)
	assert.Equal(t, []string{"hello world"}, c.SplitText("  hello world \n"))
}

func TestSplitText_PrefersParagraphBoundary(t *testing.T) {
	c := newChunker(t, 15, 3)
	got := c.SplitText("para one.\n\npara two.")
	assert.Equal(t, []string{"para one.", "para two."}, got)
}

func TestSplitText_MaxSize(t *testing.T) {
	text := strings.Join([]string{
		"First paragraph with a handful of words in it.",
		"Second paragraph.\nIt has two lines, the second one rather longer than the first.",
		strings.Repeat("x", 45),
		"Ünïcödé wörds çount as sïngle charactërs each.",
	}, "\n\n")

	for _, size := range []int{8, 20, 37, 64} {
		c := newChunker(t, size, size/4)
		chunks := c.SplitText(text)
		require.NotEmpty(t, chunks)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(chunk), size, "size %d chunk %q", size, chunk)
			assert.NotEmpty(t, strings.TrimSpace(chunk))
		}
	}
}

func TestSplitText_CoversAllWords(t *testing.T) {
	c := newChunker(t, 20, 8)
	text := numberedWords(30)
	chunks := c.SplitText(text)

	joined := strings.Join(chunks, " ")
	for _, w := range strings.Fields(text) {
		assert.Contains(t, joined, w)
	}
}

func TestSplitText_Overlap(t *testing.T) {
	const size, overlap = 20, 8
	c := newChunker(t, size, overlap)
	chunks := c.SplitText(numberedWords(30))
	require.Greater(t, len(chunks), 2)

	for i := 1; i < len(chunks); i++ {
		prev, next := chunks[i-1], chunks[i]
		shared := 0
		for n := overlap; n > 0; n-- {
			if n <= len(next) && strings.HasSuffix(prev, next[:n]) {
				shared = n
				break
			}
		}
		assert.Greater(t, shared, 0, "chunk %d %q does not start with the tail of %q", i, next, prev)
	}

	// "w00 w01 w02 w03 w04" is 19 chars; the next chunk keeps "w03 w04".
	assert.Equal(t, "w00 w01 w02 w03 w04", chunks[0])
	assert.True(t, strings.HasPrefix(chunks[1], "w03 w04 w05"), chunks[1])
}

func TestSplitText_NoOverlap(t *testing.T) {
	c := newChunker(t, 20, 0)
	chunks := c.SplitText(numberedWords(10))
	assert.Equal(t, []string{"w00 w01 w02 w03 w04", "w05 w06 w07 w08 w09"}, chunks)
}

func TestSplitText_LongWordFallsBackToRunes(t *testing.T) {
	c := newChunker(t, 10, 2)
	chunks := c.SplitText(strings.Repeat("a", 25))
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 10)
	}
	assert.Equal(t, strings.Repeat("a", 10), chunks[0])
}

func TestSplit_MetadataAndProvisionalIDs(t *testing.T) {
	c := newChunker(t, 20, 5)
	records := []domain.RawRecord{
		{Text: numberedWords(8), Metadata: domain.Metadata{"page": 2}},
		{Text: "a row", Metadata: domain.Metadata{"row": 5}},
		{Text: "a paragraph", Metadata: domain.Metadata{"paragraph": 7}},
		{Text: "no origin", Metadata: domain.Metadata{}},
	}

	chunks := c.Split(records)
	require.Len(t, chunks, 5)

	assert.Equal(t, "2_0", chunks[0].ID)
	assert.Equal(t, "2_1", chunks[1].ID)
	assert.Equal(t, 0, chunks[0].Metadata[domain.MetaChunk])
	assert.Equal(t, 1, chunks[1].Metadata[domain.MetaChunk])
	assert.Equal(t, 2, chunks[1].Metadata["page"])

	assert.Equal(t, "5_0", chunks[2].ID)
	assert.Equal(t, "7_0", chunks[3].ID)
	assert.Equal(t, "0_0", chunks[4].ID)

	// the source record's metadata is not mutated
	_, mutated := records[0].Metadata[domain.MetaChunk]
	assert.False(t, mutated)
}
