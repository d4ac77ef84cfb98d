// Package cache memoises retrieval results per (mode, query, k) until the
// index changes.
package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// Key identifies one retrieval. Queries differing only in surrounding
// whitespace share a key.
type Key struct {
	Mode  domain.RetrievalMode
	Query string
	K     int
}

func newKey(mode domain.RetrievalMode, query string, k int) Key {
	return Key{Mode: mode, Query: strings.TrimSpace(query), K: k}
}

// QueryCache is a size-bounded LRU of retrieval results with a TTL.
type QueryCache struct {
	mu      sync.Mutex
	entries map[Key]*list.Element
	lru     *list.List // front is most recently used
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	key     Key
	result  domain.RetrievalResult
	expires time.Time
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[Key]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a live entry and marks it recently used. Expired entries are
// dropped on access.
func (c *QueryCache) Get(key Key) (domain.RetrievalResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.RetrievalResult{}, false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().After(entry.expires) {
		c.remove(el)
		return domain.RetrievalResult{}, false
	}
	c.lru.MoveToFront(el)
	return entry.result, true
}

// Put stores result under key, evicting the least recently used entry when
// the cache is full.
func (c *QueryCache) Put(key Key, result domain.RetrievalResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.result = result
		entry.expires = expires
		c.lru.MoveToFront(el)
		return
	}

	for c.lru.Len() >= c.maxSize {
		c.remove(c.lru.Back())
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, result: result, expires: expires})
}

// Invalidate drops every entry.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*list.Element)
	c.lru.Init()
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *QueryCache) remove(el *list.Element) {
	c.lru.Remove(el)
	delete(c.entries, el.Value.(*cacheEntry).key)
}

// moder is implemented by rankers that report their retrieval mode.
type moder interface {
	Mode() domain.RetrievalMode
}

// CachedRanker serves repeated queries from a QueryCache. Empty results
// are never stored: they may come from a degraded index. One cache may be
// shared by rankers of different modes.
type CachedRanker struct {
	ranker port.Retriever
	mode   domain.RetrievalMode
	cache  *QueryCache
}

func NewCachedRanker(ranker port.Retriever, cache *QueryCache) *CachedRanker {
	r := &CachedRanker{
		ranker: ranker,
		cache:  cache,
	}
	if m, ok := ranker.(moder); ok {
		r.mode = m.Mode()
	}
	return r
}

func (r *CachedRanker) Retrieve(ctx context.Context, query string, k int) domain.RetrievalResult {
	key := newKey(r.mode, query, k)
	if result, hit := r.cache.Get(key); hit {
		return result
	}

	result := r.ranker.Retrieve(ctx, query, k)
	if !result.Empty() {
		r.cache.Put(key, result)
	}
	return result
}

// Invalidate drops every cached result.
func (r *CachedRanker) Invalidate() {
	r.cache.Invalidate()
}
