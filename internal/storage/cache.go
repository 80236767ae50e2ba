// cache.go - In-memory cache for extraction results

package storage

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL applies when NewResultCache gets a non-positive ttl.
const DefaultCacheTTL = 30 * time.Minute

type cacheEntry[V any] struct {
	value    V
	loadedAt time.Time
}

// ResultCache keeps results keyed by document hash and guarantee type so an
// unchanged upload is not sent to the model again.
type ResultCache[V any] struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]cacheEntry[V]
	loads   singleflight.Group
}

// NewResultCache creates a cache whose entries expire after ttl.
func NewResultCache[V any](ttl time.Duration) *ResultCache[V] {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResultCache[V]{ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry[V])}
}

// CacheKey joins a document hash and guarantee type.
func CacheKey(documentHash, guaranteeType string) string {
	return documentHash + "|" + guaranteeType
}

// Get returns a live entry.
func (c *ResultCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookup(key)
}

func (c *ResultCache[V]) lookup(key string) (V, bool) {
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.loadedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetOrLoad returns the cached value for key or calls load. The value is
// stored only when load reports it cacheable; errors are never cached. The
// bool result is true for a cache hit, including callers that waited on
// another caller's load of the same key.
//
// Concurrent callers for one key share a single load. The cache lock is not
// held during load, so other keys are served meanwhile.
func (c *ResultCache[V]) GetOrLoad(key string, load func() (V, bool, error)) (V, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	type outcome struct {
		value  V
		hit    bool
		stored bool
	}
	ran := false
	res, err, _ := c.loads.Do(key, func() (any, error) {
		ran = true
		// A load for key may have finished since the first lookup.
		if v, ok := c.Get(key); ok {
			return outcome{value: v, hit: true}, nil
		}
		v, cacheable, err := load()
		if err != nil {
			return outcome{value: v}, err
		}
		if cacheable {
			c.mu.Lock()
			c.entries[key] = cacheEntry[V]{value: v, loadedAt: c.now()}
			c.mu.Unlock()
		}
		return outcome{value: v, stored: cacheable}, nil
	})
	out := res.(outcome)
	if err != nil {
		return out.value, false, err
	}
	// Callers that joined another caller's load count as hits.
	return out.value, out.hit || (!ran && out.stored), nil
}

// Invalidate removes one entry
func (c *ResultCache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all cached data
func (c *ResultCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry[V])
}

// Len counts entries, expired ones included.
func (c *ResultCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
