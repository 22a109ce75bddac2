package relation

import (
	"context"
	"sync"
	"sync/atomic"

	"ecosystem-api/internal/store"

	"golang.org/x/sync/singleflight"
)

// CollectionCache memoizes whole-collection fetches for one request.
// Concurrent loads of the same collection share a single in-flight fetch.
// Failed fetches are shared with concurrent callers but not memoized.
type CollectionCache struct {
	flights singleflight.Group

	mu      sync.RWMutex
	results map[string][]store.Record

	hits   atomic.Int32
	misses atomic.Int32
}

type cacheKey struct{}

// NewCacheContext injects a request-scoped collection cache.
func NewCacheContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, cacheKey{}, &CollectionCache{
		results: make(map[string][]store.Record),
	})
}

// CacheFromContext returns the request's collection cache, if any.
func CacheFromContext(ctx context.Context) (*CollectionCache, bool) {
	if ctx == nil {
		return nil, false
	}
	cache, ok := ctx.Value(cacheKey{}).(*CollectionCache)
	return cache, ok
}

func (c *CollectionCache) cached(collection string) ([]store.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	records, ok := c.results[collection]
	return records, ok
}

func (c *CollectionCache) load(collection string, fetch func() ([]store.Record, error)) ([]store.Record, error) {
	if records, ok := c.cached(collection); ok {
		c.hits.Add(1)
		return records, nil
	}

	fetched := false
	v, err, _ := c.flights.Do(collection, func() (interface{}, error) {
		// A flight that finished between the lookup above and Do has
		// already stored its result.
		if records, ok := c.cached(collection); ok {
			return records, nil
		}
		fetched = true
		records, err := fetch()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.results[collection] = records
		c.mu.Unlock()
		return records, nil
	})
	if fetched {
		c.misses.Add(1)
	} else {
		c.hits.Add(1)
	}
	if err != nil {
		return nil, err
	}
	records, _ := v.([]store.Record)
	return records, nil
}

// Hits returns how many loads were served from the cache or a shared fetch.
func (c *CollectionCache) Hits() int32 {
	return c.hits.Load()
}

// Misses returns how many loads reached the store.
func (c *CollectionCache) Misses() int32 {
	return c.misses.Load()
}
