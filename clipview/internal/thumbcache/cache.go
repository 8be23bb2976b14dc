// Package thumbcache maps persisted entry ids to decoded thumbnail data URIs
// so rows never fetch the same preview twice.
package thumbcache

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Hewenz/pastee/clipview/internal/metrics"
	"github.com/Hewenz/pastee/clipview/internal/types"
)

// DefaultCapacity bounds the cache when no explicit size is configured.
const DefaultCapacity = 512

// Fetcher retrieves a thumbnail from the backend.
type Fetcher interface {
	FetchThumbnail(ctx context.Context, id int64) (types.Image, error)
}

// FetcherFunc adapts a function to a Fetcher.
type FetcherFunc func(ctx context.Context, id int64) (types.Image, error)

// FetchThumbnail implements Fetcher.
func (f FetcherFunc) FetchThumbnail(ctx context.Context, id int64) (types.Image, error) {
	return f(ctx, id)
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger overrides the package-global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries *lru

	fetcher Fetcher
	group   singleflight.Group
	log     zerolog.Logger
}

// New creates a cache holding at most capacity thumbnails. A capacity of 0
// keeps every thumbnail for the lifetime of the cache; a negative capacity
// selects DefaultCapacity.
func New(fetcher Fetcher, capacity int, opts ...Option) *Cache {
	if capacity < 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{
		entries: newLRU(capacity),
		fetcher: fetcher,
		log:     log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "thumbcache").Logger()
	return c
}

// Get returns the cached data URI for id. Apart from LRU recency it has no
// side effects.
func (c *Cache) Get(id int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.get(id)
}

// Put stores content for id, overwriting any previous value.
func (c *Cache) Put(id int64, content string) {
	c.mu.Lock()
	evicted := c.entries.put(id, content)
	c.mu.Unlock()
	if evicted > 0 {
		metrics.ThumbnailEvictionsTotal.Add(float64(evicted))
	}
}

// Invalidate drops id. Unknown ids are ignored.
func (c *Cache) Invalidate(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.remove(id)
}

// Len reports the number of cached thumbnails.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.len()
}

// Resolve returns the cached thumbnail for id or fetches it once. Concurrent
// callers for the same id share a single fetch. A failed fetch stores
// nothing, so the next Resolve tries again.
func (c *Cache) Resolve(ctx context.Context, id int64) (string, error) {
	if err := types.ValidateID(id); err != nil {
		return "", err
	}
	if v, ok := c.Get(id); ok {
		metrics.ThumbnailHitsTotal.Inc()
		return v, nil
	}

	// The shared fetch must outlive any single caller's cancellation.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		if v, ok := c.Get(id); ok {
			return v, nil
		}
		metrics.ThumbnailMissesTotal.Inc()
		img, err := c.fetcher.FetchThumbnail(fetchCtx, id)
		if err != nil {
			metrics.ThumbnailFetchFailuresTotal.Inc()
			c.log.Warn().Err(err).Int64("id", id).Msg("thumbnail fetch failed")
			return "", err
		}
		uri := img.DataURI()
		c.Put(id, uri)
		return uri, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}
