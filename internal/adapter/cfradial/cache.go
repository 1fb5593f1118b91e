package cfradial

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/storm-radar-extract/internal/domain"
	"github.com/couchcryptid/storm-radar-extract/internal/observability"
)

// CachedLoader wraps a VolumeLoader with an in-memory LRU cache keyed by path.
// Volumes are read-only, so cached values are shared between callers.
type CachedLoader struct {
	inner   domain.VolumeLoader
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedLoader creates a cache decorator around a loader. A maxEntries of
// zero disables caching. metrics may be nil.
func NewCachedLoader(inner domain.VolumeLoader, maxEntries int, metrics *observability.Metrics) *CachedLoader {
	return &CachedLoader{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedLoader) Load(ctx context.Context, path string) (*domain.Volume, error) {
	if v, ok := c.cache.get(path); ok {
		c.observe("hit")
		return v, nil
	}
	c.observe("miss")

	start := time.Now()
	v, err := c.inner.Load(ctx, path)
	if c.metrics != nil {
		c.metrics.VolumeLoadDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	c.cache.put(path, v)
	return v, nil
}

// Len returns the number of cached volumes.
func (c *CachedLoader) Len() int { return c.cache.len() }

func (c *CachedLoader) observe(result string) {
	if c.metrics != nil {
		c.metrics.VolumeCache.WithLabelValues(result).Inc()
	}
}

// lruCache is a simple thread-safe LRU cache of volumes. The front of order
// is the most recently used entry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
}

type entry struct {
	key   string
	value *domain.Volume
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) get(key string) (*domain.Volume, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *lruCache) put(key string, value *domain.Volume) {
	if c.maxEntries <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, value: value})
	for len(c.entries) > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}
