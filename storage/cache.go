package storage

import "github.com/VictoriaMetrics/fastcache"

// CachedBackend wraps another Backend with an in-memory read cache for hot
// keys (validator sets, epoch boundaries, and fee-payer balances are read on
// nearly every block). Writes go through to the inner backend first so the
// cache never diverges from durable state.
type CachedBackend struct {
	inner Backend
	cache *fastcache.Cache
}

// NewCachedBackend wraps inner with a read cache capped at maxBytes.
func NewCachedBackend(inner Backend, maxBytes int) *CachedBackend {
	return &CachedBackend{inner: inner, cache: fastcache.New(maxBytes)}
}

func (c *CachedBackend) Get(key []byte) ([]byte, error) {
	if v, ok := c.cache.HasGet(nil, key); ok {
		return v, nil
	}
	v, err := c.inner.Get(key)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, v)
	return v, nil
}

func (c *CachedBackend) Put(key, value []byte) error {
	if err := c.inner.Put(key, value); err != nil {
		return err
	}
	c.cache.Set(key, value)
	return nil
}

func (c *CachedBackend) Delete(key []byte) error {
	if err := c.inner.Delete(key); err != nil {
		return err
	}
	c.cache.Del(key)
	return nil
}

func (c *CachedBackend) Has(key []byte) (bool, error) {
	if _, ok := c.cache.HasGet(nil, key); ok {
		return true, nil
	}
	return c.inner.Has(key)
}

// Iterator bypasses the cache: prefix scans are comparatively rare (query
// paths and the epoch-boundary bond scan) and the cache does not track
// prefix ranges.
func (c *CachedBackend) Iterator(prefix []byte) Iterator { return c.inner.Iterator(prefix) }

func (c *CachedBackend) Close() error { return c.inner.Close() }
