package nws

import (
	"container/list"
	"context"
	"sync"

	"github.com/couchcryptid/storm-radar-service/internal/observability"
	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

// ForecastLocator resolves the forecast URL for a station.
type ForecastLocator interface {
	ForecastURL(ctx context.Context, st radar.Station) (string, error)
}

// CachedLocator wraps a ForecastLocator with an in-memory LRU keyed by
// station ID. Points lookups rarely change, so only the forecast call is
// repeated every cycle.
type CachedLocator struct {
	inner   ForecastLocator
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedLocator creates a cache decorator around a locator.
func NewCachedLocator(inner ForecastLocator, maxEntries int, metrics *observability.Metrics) *CachedLocator {
	return &CachedLocator{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// ForecastURL returns the cached forecast URL for st, resolving and caching
// it on a miss. Errors are not cached.
func (c *CachedLocator) ForecastURL(ctx context.Context, st radar.Station) (string, error) {
	if u, ok := c.cache.get(st.ID); ok {
		c.metrics.ForecastCache.WithLabelValues("hit").Inc()
		return u, nil
	}
	c.metrics.ForecastCache.WithLabelValues("miss").Inc()

	u, err := c.inner.ForecastURL(ctx, st)
	if err != nil {
		return "", err
	}
	c.cache.put(st.ID, u)
	return u, nil
}

// Forget drops a station so the next lookup goes upstream, e.g. after its
// forecast URL stopped answering.
func (c *CachedLocator) Forget(stationID string) {
	c.cache.remove(stationID)
}

// lruCache is a thread-safe LRU of station ID to forecast URL.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
}

type cacheEntry struct {
	key string
	url string
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).url, true
}

func (c *lruCache) put(key, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).url = url
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, url: url})

	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *lruCache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}
