package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"docrag/internal/domain"
)

func result(ctx string) domain.RetrievalResult {
	return domain.RetrievalResult{Context: ctx, Sources: []string{ctx + ".txt"}, Confidence: 0.25}
}

func key(query string, k int) Key {
	return newKey(domain.ModeCluster, query, k)
}

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestQueryCache_GetPut(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	_, hit := c.Get(key("q", 3))
	assert.False(t, hit)

	c.Put(key("q", 3), result("a"))
	got, hit := c.Get(key("q", 3))
	assert.True(t, hit)
	assert.Equal(t, result("a"), got)

	_, hit = c.Get(key("q", 4))
	assert.False(t, hit, "k is part of the key")

	_, hit = c.Get(newKey(domain.ModeFlat, "q", 3))
	assert.False(t, hit, "mode is part of the key")

	_, hit = c.Get(key("  q\n", 3))
	assert.True(t, hit, "surrounding whitespace is ignored")
}

func TestQueryCache_PutReplaces(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	c.Put(key("q", 1), result("a"))
	c.Put(key("q", 1), result("b"))

	got, hit := c.Get(key("q", 1))
	assert.True(t, hit)
	assert.Equal(t, result("b"), got)
	assert.Equal(t, 1, c.Size())
}

func TestQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewQueryCache(2, time.Minute)
	c.Put(key("a", 1), result("a"))
	c.Put(key("b", 1), result("b"))

	_, hit := c.Get(key("a", 1))
	assert.True(t, hit)

	c.Put(key("c", 1), result("c"))
	assert.Equal(t, 2, c.Size())

	_, hit = c.Get(key("b", 1))
	assert.False(t, hit)
	_, hit = c.Get(key("a", 1))
	assert.True(t, hit)
	_, hit = c.Get(key("c", 1))
	assert.True(t, hit)
}

func TestQueryCache_TTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := NewQueryCache(10, time.Minute)
	c.now = clock.now

	c.Put(key("q", 1), result("a"))
	clock.t = clock.t.Add(59 * time.Second)
	_, hit := c.Get(key("q", 1))
	assert.True(t, hit)

	clock.t = clock.t.Add(2 * time.Second)
	_, hit = c.Get(key("q", 1))
	assert.False(t, hit)
	assert.Equal(t, 0, c.Size())
}

func TestQueryCache_Invalidate(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	c.Put(key("q", 1), result("a"))
	c.Invalidate()

	_, hit := c.Get(key("q", 1))
	assert.False(t, hit)
	assert.Equal(t, 0, c.Size())
}

type countingRanker struct {
	calls  int
	mode   domain.RetrievalMode
	result domain.RetrievalResult
}

func (r *countingRanker) Retrieve(_ context.Context, _ string, _ int) domain.RetrievalResult {
	r.calls++
	return r.result
}

func (r *countingRanker) Mode() domain.RetrievalMode { return r.mode }

func TestCachedRanker(t *testing.T) {
	inner := &countingRanker{mode: domain.ModeCluster, result: result("a")}
	r := NewCachedRanker(inner, NewQueryCache(10, time.Minute))
	ctx := context.Background()

	assert.Equal(t, result("a"), r.Retrieve(ctx, "q", 3))
	assert.Equal(t, result("a"), r.Retrieve(ctx, "q", 3))
	assert.Equal(t, 1, inner.calls)

	r.Invalidate()
	r.Retrieve(ctx, "q", 3)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedRanker_SharedCacheSeparatesModes(t *testing.T) {
	shared := NewQueryCache(10, time.Minute)
	cluster := &countingRanker{mode: domain.ModeCluster, result: result("cluster")}
	flat := &countingRanker{mode: domain.ModeFlat, result: result("flat")}
	ctx := context.Background()

	assert.Equal(t, result("cluster"), NewCachedRanker(cluster, shared).Retrieve(ctx, "q", 3))
	assert.Equal(t, result("flat"), NewCachedRanker(flat, shared).Retrieve(ctx, "q", 3))
	assert.Equal(t, 1, flat.calls)
	assert.Equal(t, 2, shared.Size())
}

func TestCachedRanker_DoesNotCacheEmpty(t *testing.T) {
	inner := &countingRanker{}
	r := NewCachedRanker(inner, NewQueryCache(10, time.Minute))
	ctx := context.Background()

	assert.True(t, r.Retrieve(ctx, "q", 3).Empty())
	assert.True(t, r.Retrieve(ctx, "q", 3).Empty())
	assert.Equal(t, 2, inner.calls)
}
