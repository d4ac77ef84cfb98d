package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"docrag/internal/domain"
)

const (
	// DefaultChunkSize is the default maximum chunk length in characters.
	DefaultChunkSize = 500

	// DefaultChunkOverlap is the default number of trailing characters
	// carried into the next chunk.
	DefaultChunkOverlap = 50
)

// defaultSeparators are tried coarsest first: paragraph, line, word, rune.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveChunker splits text on the largest natural boundary that keeps
// every piece within chunkSize characters, then packs pieces into chunks
// that overlap by at most overlap characters.
type RecursiveChunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

func NewRecursiveChunker(chunkSize, overlap int) (*RecursiveChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", domain.ErrInvalidInput, chunkSize, overlap)
	}
	return &RecursiveChunker{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}, nil
}

// Split chunks every record. Each chunk inherits its record's metadata plus
// a zero-based "chunk" index and gets a provisional "<origin>_<index>" ID.
func (c *RecursiveChunker) Split(records []domain.RawRecord) []domain.Chunk {
	var chunks []domain.Chunk
	for _, rec := range records {
		org := origin(rec.Metadata)
		for i, text := range c.SplitText(rec.Text) {
			meta := rec.Metadata.Clone()
			meta[domain.MetaChunk] = i
			chunks = append(chunks, domain.Chunk{
				ID:       fmt.Sprintf("%s_%d", org, i),
				Text:     text,
				Metadata: meta,
			})
		}
	}
	return chunks
}

// SplitText returns the chunk texts for a single string.
func (c *RecursiveChunker) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	pieces := c.split(text, c.separators)
	out := pieces[:0]
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *RecursiveChunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var final, small []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if runeLen(piece) < c.chunkSize {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			final = append(final, c.merge(small)...)
			small = nil
		}
		if len(finer) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, c.split(piece, finer)...)
		}
	}
	if len(small) > 0 {
		final = append(final, c.merge(small)...)
	}
	return final
}

// merge packs pieces into chunks of at most chunkSize runes. After a chunk
// is emitted, leading pieces are dropped until no more than overlap runes
// remain; those become the head of the next chunk.
func (c *RecursiveChunker) merge(pieces []string) []string {
	var docs, current []string
	total := 0
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > c.chunkSize && len(current) > 0 {
			if doc := joinTrimmed(current); doc != "" {
				docs = append(docs, doc)
			}
			for total > c.overlap || (total+n > c.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if doc := joinTrimmed(current); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepSeparator splits text on sep and keeps each separator at the
// start of the piece that follows it. An empty sep splits into runes.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinTrimmed(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func origin(meta domain.Metadata) string {
	for _, key := range []string{domain.MetaPage, domain.MetaRow, domain.MetaParagraph} {
		if s, ok := meta.String(key); ok {
			return s
		}
	}
	return "0"
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
