package usecase

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"docrag/internal/domain"
	"docrag/internal/port"
)

const (
	DefaultTopK             = 3
	DefaultMaxContextLength = 2000
)

// contextSeparator joins chunk texts in an assembled context.
const contextSeparator = "\n\n"

// RetrievalConfig controls how a query becomes a context.
type RetrievalConfig struct {
	// TopK is the number of nearest chunks fetched per query. Default 3.
	TopK int
	// MaxContextLength caps the context in characters. The cut is hard and
	// may split a word. Default 2000.
	MaxContextLength int
	// Mode selects cluster (one topic, one source) or flat ranking.
	Mode domain.RetrievalMode
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:             DefaultTopK,
		MaxContextLength: DefaultMaxContextLength,
		Mode:             domain.ModeCluster,
	}
}

// Ranker turns nearest-neighbour matches into a single bounded context.
type Ranker struct {
	index  port.VectorIndex
	cfg    RetrievalConfig
	logger *slog.Logger
}

func NewRanker(cfg RetrievalConfig, index port.VectorIndex, logger *slog.Logger) *Ranker {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = DefaultMaxContextLength
	}
	if !cfg.Mode.Valid() {
		cfg.Mode = domain.ModeCluster
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{index: index, cfg: cfg, logger: logger}
}

// Config returns the effective configuration.
func (r *Ranker) Config() RetrievalConfig {
	return r.cfg
}

// Mode returns the ranking mode.
func (r *Ranker) Mode() domain.RetrievalMode {
	return r.cfg.Mode
}

// Retrieve queries the index for k matches and assembles a context.
// It never fails: index errors are logged and yield an empty result.
func (r *Ranker) Retrieve(ctx context.Context, query string, k int) domain.RetrievalResult {
	matches, err := r.index.Query(ctx, query, k)
	if err != nil {
		r.logger.Error("context search failed", "query", query, "k", k, "error", err)
		return domain.RetrievalResult{}
	}
	if len(matches) == 0 {
		r.logger.Debug("no matches", "query", query)
		return domain.RetrievalResult{}
	}

	if r.cfg.Mode == domain.ModeFlat {
		return r.rankFlat(matches)
	}
	return r.rankCluster(matches)
}

// rankCluster picks the topic with the lowest mean distance, then the
// source within it with the lowest mean distance, and returns that
// source's text.
func (r *Ranker) rankCluster(matches []domain.Match) domain.RetrievalResult {
	topic := lowestMean(groupBy(matches, domain.Match.Topic))

	sources := groupBy(topic.matches, domain.Match.Source)
	if len(sources) == 0 {
		return domain.RetrievalResult{}
	}
	best := lowestMean(sources)

	texts := make([]string, len(best.matches))
	for i, m := range best.matches {
		texts[i] = m.Text
	}
	assembled := truncateRunes(strings.Join(texts, contextSeparator), r.cfg.MaxContextLength)
	if assembled == "" {
		return domain.RetrievalResult{}
	}

	r.logger.Debug("context selected", "topic", topic.key, "source", best.key, "chunks", len(best.matches))
	return domain.RetrievalResult{
		Context:    assembled,
		Sources:    []string{best.key},
		Confidence: best.mean(),
	}
}

// rankFlat joins every match and credits the sources whose text starts
// inside the truncated context.
func (r *Ranker) rankFlat(matches []domain.Match) domain.RetrievalResult {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	assembled := truncateRunes(strings.Join(texts, contextSeparator), r.cfg.MaxContextLength)
	if assembled == "" {
		return domain.RetrievalResult{}
	}
	limit := utf8.RuneCountInString(assembled)

	var (
		sources []string
		seen    = make(map[string]bool)
		total   float64
		n       int
		offset  int
	)
	for _, m := range matches {
		if offset >= limit {
			break
		}
		total += m.Distance
		n++
		if src := m.Source(); !seen[src] {
			seen[src] = true
			sources = append(sources, src)
		}
		offset += utf8.RuneCountInString(m.Text) + utf8.RuneCountInString(contextSeparator)
	}

	return domain.RetrievalResult{
		Context:    assembled,
		Sources:    sources,
		Confidence: total / float64(n),
	}
}

type matchGroup struct {
	key     string
	matches []domain.Match
	total   float64
}

func (g *matchGroup) mean() float64 {
	return g.total / float64(len(g.matches))
}

// groupBy buckets matches by key, keeping groups in first-seen order and
// matches in result order.
func groupBy(matches []domain.Match, key func(domain.Match) string) []*matchGroup {
	var groups []*matchGroup
	byKey := make(map[string]*matchGroup)
	for _, m := range matches {
		k := key(m)
		g, ok := byKey[k]
		if !ok {
			g = &matchGroup{key: k}
			byKey[k] = g
			groups = append(groups, g)
		}
		g.matches = append(g.matches, m)
		g.total += m.Distance
	}
	return groups
}

// lowestMean returns the group with the smallest mean distance. Ties go to
// the earliest group. groups must not be empty.
func lowestMean(groups []*matchGroup) *matchGroup {
	best := groups[0]
	for _, g := range groups[1:] {
		if g.mean() < best.mean() {
			best = g
		}
	}
	return best
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
