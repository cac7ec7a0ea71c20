package storage

import (
	"context"
	"time"
)

// RedisCooldown shares the expansion cooldown between processes. Each key is
// claimed with SET NX and expires on its own after ttl.
type RedisCooldown struct {
	cache *CacheService
	ttl   time.Duration
}

// NewRedisCooldown creates a cooldown whose windows last ttl
func NewRedisCooldown(cache *CacheService, ttl time.Duration) *RedisCooldown {
	return &RedisCooldown{cache: cache, ttl: ttl}
}

// Acquire reports whether key was free and is now held for the window
func (c *RedisCooldown) Acquire(ctx context.Context, key string) (bool, error) {
	return c.cache.Claim(ctx, c.cache.GenerateCacheKey(CacheKeyCooldown, key), c.ttl)
}

// Release frees key before its window ends
func (c *RedisCooldown) Release(ctx context.Context, key string) error {
	return c.cache.Invalidate(ctx, c.cache.GenerateCacheKey(CacheKeyCooldown, key))
}
