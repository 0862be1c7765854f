package lexicon

import (
	"context"
	"slices"
	"strings"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/phonalign/internal/observe"
	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

// DefaultCacheSize is the number of lookups a [Cache] keeps by default.
const DefaultCacheSize = 4096

// CacheOption is a functional option for [NewCache].
type CacheOption func(*Cache)

// WithSize bounds the number of cached lookups. Values below 1 are ignored.
func WithSize(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// Cache memoises successful lookups of an upstream [Provider] and keeps at
// most one upstream lookup per (text, language) in flight. Entries are
// evicted least recently used first. Failures are not cached.
//
// Waiting callers honour their own context; the upstream lookup itself is
// detached from any single caller's cancellation.
type Cache struct {
	upstream Provider
	size     int
	metrics  *observe.Metrics

	group singleflight.Group

	mu      sync.Mutex
	entries *orderedmap.OrderedMap[string, []pronunciation.LexiconInput]
}

var _ Provider = (*Cache)(nil)

// NewCache wraps upstream.
func NewCache(upstream Provider, opts ...CacheOption) *Cache {
	c := &Cache{
		upstream: upstream,
		size:     DefaultCacheSize,
		entries:  orderedmap.New[string, []pronunciation.LexiconInput](),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Lookup implements [Provider]. The returned slice is owned by the caller.
func (c *Cache) Lookup(ctx context.Context, text, language string) ([]pronunciation.LexiconInput, error) {
	k := cacheKey(text, language)
	if v, ok := c.get(k); ok {
		c.metrics.RecordLexiconLookup(ctx, observe.LookupHit)
		return slices.Clone(v), nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(k, func() (any, error) {
		v, err := c.upstream.Lookup(detached, text, language)
		if err != nil {
			return nil, err
		}
		c.put(k, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		switch {
		case res.Err != nil:
			c.metrics.RecordLexiconLookup(ctx, observe.LookupError)
			return nil, res.Err
		case res.Shared:
			c.metrics.RecordLexiconLookup(ctx, observe.LookupShared)
		default:
			c.metrics.RecordLexiconLookup(ctx, observe.LookupMiss)
		}
		return slices.Clone(res.Val.([]pronunciation.LexiconInput)), nil
	}
}

// Len returns the number of cached lookups.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Purge drops every cached lookup.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.New[string, []pronunciation.LexiconInput]()
}

func (c *Cache) get(k string) ([]pronunciation.LexiconInput, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries.Get(k)
	if ok {
		_ = c.entries.MoveToBack(k)
	}
	return v, ok
}

func (c *Cache) put(k string, v []pronunciation.LexiconInput) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Set(k, v)
	_ = c.entries.MoveToBack(k)
	for c.entries.Len() > c.size {
		oldest := c.entries.Oldest()
		c.entries.Delete(oldest.Key)
	}
}

// cacheKey keys on the exact text, since the returned words keep its
// spelling, and on the case-folded language tag.
func cacheKey(text, language string) string {
	return text + "\x00" + strings.ToLower(language)
}
