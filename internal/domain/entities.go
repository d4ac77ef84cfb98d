package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Metadata keys written by the ingestion path and read by the ranker.
const (
	MetaSource    = "source"
	MetaPage      = "page"
	MetaChunkID   = "chunk_id"
	MetaChunk     = "chunk"
	MetaRow       = "row"
	MetaParagraph = "paragraph"
	MetaTitle     = "title"
)

// Unknown is used for a missing topic or source label.
const Unknown = "Unknown"

// Metadata is the free-form key/value mapping attached to records, chunks
// and matches. Values read back from JSON stores arrive as float64.
type Metadata map[string]any

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the value under key rendered as a string.
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return fmt.Sprint(t), true
	}
}

// StringOr returns the string value under key or def when absent.
func (m Metadata) StringOr(key, def string) string {
	if s, ok := m.String(key); ok {
		return s
	}
	return def
}

// Int returns the value under key as an int.
func (m Metadata) Int(key string) (int, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Matches reports whether every key in f equals the corresponding value in m.
func (m Metadata) Matches(f Filter) bool {
	fm := Metadata(f)
	for k := range f {
		got, ok := m.String(k)
		if !ok {
			return false
		}
		if want, _ := fm.String(k); got != want {
			return false
		}
	}
	return true
}

// Filter is a conjunction of metadata equality tests. An empty filter
// matches every record.
type Filter map[string]any

// RawRecord is one parser output unit: a page, a CSV row or a paragraph.
type RawRecord struct {
	Text     string
	Metadata Metadata
}

// Chunk is the unit of indexing and retrieval.
type Chunk struct {
	ID       string
	Text     string
	Metadata Metadata
}

// Match is one nearest-neighbour hit. Distance is a non-negative cosine
// distance; lower is more similar.
type Match struct {
	Text     string
	Metadata Metadata
	Distance float64
}

// Topic returns the match's grouping label.
func (m Match) Topic() string {
	return m.Metadata.StringOr(MetaTitle, Unknown)
}

// Source returns the originating file name.
func (m Match) Source() string {
	return m.Metadata.StringOr(MetaSource, Unknown)
}

// RetrievalMode selects how matches are turned into a context.
type RetrievalMode string

const (
	// ModeCluster picks one topic, then one source within it.
	ModeCluster RetrievalMode = "cluster"
	// ModeFlat joins every match. Sources lists only the distinct sources
	// whose text starts inside the truncated context, so it can be shorter
	// than the set of sources among the top-k matches.
	ModeFlat RetrievalMode = "flat"
)

// Valid reports whether m names a known mode.
func (m RetrievalMode) Valid() bool {
	return m == ModeCluster || m == ModeFlat
}

// RetrievalResult is what a query hands to its caller.
//
// Confidence is the mean cosine distance of the chunks that make up Context.
// Its polarity is inverted: LOWER values mean a BETTER match. An empty
// Context always carries Confidence 0 and no Sources; that is "nothing
// relevant found", not a perfect match. Use Empty before reading Confidence.
type RetrievalResult struct {
	Context    string   `json:"context"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

// Empty reports whether no context was found.
func (r RetrievalResult) Empty() bool {
	return r.Context == ""
}

// Answer is a generated reply together with the context it was grounded on.
type Answer struct {
	Question   string        `json:"question"`
	Text       string        `json:"answer"`
	Context    string        `json:"context"`
	Sources    []string      `json:"sources"`
	Confidence float64       `json:"confidence"`
	Elapsed    time.Duration `json:"elapsed"`
}
