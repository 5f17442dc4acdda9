package kv

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is an expiring in-memory Store. Entries vanish after the TTL unless
// rewritten, which is how server-side session scopes end.
type Cache struct {
	c *gocache.Cache
}

// NewCache creates a cache whose entries expire after ttl.
func NewCache(ttl, cleanupInterval time.Duration) *Cache {
	return &Cache{c: gocache.New(ttl, cleanupInterval)}
}

// Get returns the value under key if it has not expired.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.c.Get(key)
	if !ok {
		return nil, ErrNotFound
	}

	b, ok := v.([]byte)
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), b...), nil
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(_ context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	c.c.SetDefault(key, append([]byte(nil), value...))

	return nil
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Delete(key)

	return nil
}
