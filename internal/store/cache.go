package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLookupCacheSize is the default number of lookups cached per reader.
const DefaultLookupCacheSize = 1024

type lookupResult struct {
	fields Fields
	found  bool
}

// CachedReader wraps a Reader with an LRU cache of id lookups. The wrapped
// reader is pinned to one commit, so entries stay valid for its lifetime
// and the cache is dropped with it on reload.
type CachedReader struct {
	Reader
	cache *lru.Cache[string, lookupResult]
}

// WithLookupCache returns r wrapped with a lookup cache of the given size.
// A size of zero or less returns r unchanged.
func WithLookupCache(r Reader, size int) Reader {
	if size <= 0 {
		return r
	}
	cache, _ := lru.New[string, lookupResult](size)
	return &CachedReader{Reader: r, cache: cache}
}

// Lookup returns a cached result if available, otherwise reads and caches.
// Misses are cached too; errors are not.
func (c *CachedReader) Lookup(ctx context.Context, id string) (Fields, bool, error) {
	if res, ok := c.cache.Get(id); ok {
		return res.fields, res.found, nil
	}

	f, found, err := c.Reader.Lookup(ctx, id)
	if err != nil {
		return Fields{}, false, err
	}

	c.cache.Add(id, lookupResult{fields: f, found: found})
	return f, found, nil
}

// Len reports the number of cached lookups.
func (c *CachedReader) Len() int {
	return c.cache.Len()
}
