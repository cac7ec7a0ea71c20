package job

import (
	"context"
	"sync"
	"time"
)

// MemoryCooldown is a bounded map of keys to window ends. When full, expired
// entries are dropped first, then the entry closest to expiry.
type MemoryCooldown struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	until    map[string]time.Time
	now      func() time.Time
}

// NewMemoryCooldown creates a cooldown with windows of ttl holding at most
// capacity keys
func NewMemoryCooldown(ttl time.Duration, capacity int) *MemoryCooldown {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryCooldown{
		ttl:      ttl,
		capacity: capacity,
		until:    make(map[string]time.Time),
		now:      time.Now,
	}
}

// Acquire reports whether key was free and is now held for the window
func (c *MemoryCooldown) Acquire(_ context.Context, key string) (bool, error) {
	if c.ttl <= 0 {
		return true, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if end, ok := c.until[key]; ok && now.Before(end) {
		return false, nil
	}

	if _, ok := c.until[key]; !ok && len(c.until) >= c.capacity {
		c.pruneLocked(now)
		if len(c.until) >= c.capacity {
			c.evictLocked()
		}
	}

	c.until[key] = now.Add(c.ttl)
	return true, nil
}

// Release frees key before its window ends
func (c *MemoryCooldown) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.until, key)
	return nil
}

// Prune drops expired entries and returns how many were removed
func (c *MemoryCooldown) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pruneLocked(c.now())
}

// Len returns the number of tracked keys, expired or not
func (c *MemoryCooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.until)
}

func (c *MemoryCooldown) pruneLocked(now time.Time) int {
	n := 0
	for key, end := range c.until {
		if !now.Before(end) {
			delete(c.until, key)
			n++
		}
	}
	return n
}

func (c *MemoryCooldown) evictLocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, end := range c.until {
		if !found || end.Before(oldest) {
			oldestKey, oldest, found = key, end, true
		}
	}
	if found {
		delete(c.until, oldestKey)
	}
}
