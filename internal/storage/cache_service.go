package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrCacheMiss is returned by RedisCache.Get for absent keys
var ErrCacheMiss = errors.New("cache miss")

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyPriceScope is for the price reference rows of one vehicle scope
	CacheKeyPriceScope CacheKeyType = "prices"
	// CacheKeyCooldown is for expansion cooldown markers
	CacheKeyCooldown CacheKeyType = "cooldown"
	// CacheKeyGeneration is for generation counters of versioned entries
	CacheKeyGeneration CacheKeyType = "gen"
)

// CacheService stores JSON values in Redis under typed keys
type CacheService struct {
	redis  *RedisCache
	ttl    time.Duration
	prefix string
}

// NewCacheService creates a new cache service. prefix namespaces every key.
func NewCacheService(redis *RedisCache, ttl time.Duration, prefix string) *CacheService {
	return &CacheService{
		redis:  redis,
		ttl:    ttl,
		prefix: prefix,
	}
}

// GenerateCacheKey generates a cache key: <prefix>:<type>:<param1>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := make([]string, 0, len(params)+2)
	if c.prefix != "" {
		parts = append(parts, c.prefix)
	}
	parts = append(parts, string(keyType))
	for _, p := range params {
		parts = append(parts, strings.ReplaceAll(strings.ToLower(p), " ", "_"))
	}
	return strings.Join(parts, ":")
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value in cache with a custom TTL
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Set(ctx, key, data, ttl)
}

// Claim sets key only when it is absent and reports whether this call set it
func (c *CacheService) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.redis.SetNX(ctx, key, "1", ttl)
}

// Get retrieves a value from cache and deserializes it. A miss returns false
// with a nil error.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Generation returns the counter stored at key, 0 when absent
func (c *CacheService) Generation(ctx context.Context, key string) (int64, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get generation: %w", err)
	}
	gen, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid generation %q: %w", data, err)
	}
	return gen, nil
}

// BumpGeneration increments the counter at key. Entries written under an
// older generation are never read again and expire with their TTL.
func (c *CacheService) BumpGeneration(ctx context.Context, key string) (int64, error) {
	gen, err := c.redis.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to bump generation: %w", err)
	}
	return gen, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// GetTTL returns the configured TTL for this cache service
func (c *CacheService) GetTTL() time.Duration {
	return c.ttl
}
