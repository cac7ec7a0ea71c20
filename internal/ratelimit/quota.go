// Package ratelimit shares a request quota for an external API between every
// process that calls it, using Redis fixed-window counters.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	apperrors "github.com/listing-trust/internal/errors"
	"github.com/redis/go-redis/v9"
)

// Default quota configuration values.
const (
	DefaultWindow  = time.Minute
	DefaultMaxWait = 500 * time.Millisecond
	keyPrefix      = "quota:"
)

// consumeScript checks and increments the window counter atomically.
// It returns {allowed, used}.
var consumeScript = redis.NewScript(`
	local key = KEYS[1]
	local n = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local ttl = tonumber(ARGV[3])

	local used = tonumber(redis.call('GET', key) or '0')
	if used + n > limit then
		return {0, used}
	end

	used = redis.call('INCRBY', key, n)
	redis.call('EXPIRE', key, ttl)
	return {1, used}
`)

// QuotaConfig holds configuration for a quota tracker.
type QuotaConfig struct {
	// Redis is the client shared by every replica. Required.
	Redis redis.Cmdable

	// Name namespaces the counters, usually the provider name. Required.
	Name string

	// Limit is the number of calls allowed per window. Required.
	Limit int

	// Window is the counting window. Default: 1 minute.
	Window time.Duration

	// MaxWait is how long Wait blocks for the next window before giving up.
	// Default: 500ms.
	MaxWait time.Duration
}

// Validate checks if the configuration is valid.
func (c *QuotaConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.Name == "" {
		return errors.New("quota name is required")
	}
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", c.Limit)
	}
	if c.Window < 0 || c.MaxWait < 0 {
		return errors.New("window and max wait cannot be negative")
	}
	return nil
}

// QuotaTracker counts calls per window in Redis
type QuotaTracker struct {
	redis   redis.Cmdable
	name    string
	limit   int
	window  time.Duration
	maxWait time.Duration
	now     func() time.Time
}

// NewQuotaTracker creates a new tracker with the given configuration.
func NewQuotaTracker(cfg *QuotaConfig) (*QuotaTracker, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	window := cfg.Window
	if window == 0 {
		window = DefaultWindow
	}
	maxWait := cfg.MaxWait
	if maxWait == 0 {
		maxWait = DefaultMaxWait
	}

	return &QuotaTracker{
		redis:   cfg.Redis,
		name:    cfg.Name,
		limit:   cfg.Limit,
		window:  window,
		maxWait: maxWait,
		now:     time.Now,
	}, nil
}

// windowStart aligns t to the window boundary
func (q *QuotaTracker) windowStart(t time.Time) time.Time {
	return t.Truncate(q.window)
}

func (q *QuotaTracker) key(start time.Time) string {
	return keyPrefix + q.name + ":" + strconv.FormatInt(start.UnixMilli(), 10)
}

// untilNextWindow returns the time left in the window holding now
func (q *QuotaTracker) untilNextWindow(now time.Time) time.Duration {
	wait := q.windowStart(now).Add(q.window).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait + time.Millisecond
}

// TryConsume takes n calls from the current window. When the window is
// spent, or Redis cannot be reached, it returns false and the time until the
// next window.
func (q *QuotaTracker) TryConsume(ctx context.Context, n int) (bool, time.Duration) {
	if n <= 0 {
		return true, 0
	}

	now := q.now()
	ttl := int(math.Ceil((2 * q.window).Seconds()))
	result, err := consumeScript.Run(ctx, q.redis, []string{q.key(q.windowStart(now))}, n, q.limit, ttl).Int64Slice()
	if err != nil || len(result) == 0 || result[0] != 1 {
		return false, q.untilNextWindow(now)
	}
	return true, 0
}

// Wait takes one call, sleeping into the next window when that is at most
// MaxWait away. It returns a rate limit error otherwise.
func (q *QuotaTracker) Wait(ctx context.Context) error {
	deadline := q.now().Add(q.maxWait)
	for {
		ok, wait := q.TryConsume(ctx, 1)
		if ok {
			return nil
		}
		if q.now().Add(wait).After(deadline) {
			return apperrors.NewRateLimitError(int(math.Ceil(wait.Seconds())))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Used returns the calls taken from the current window
func (q *QuotaTracker) Used(ctx context.Context) (int, error) {
	v, err := q.redis.Get(ctx, q.key(q.windowStart(q.now()))).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read quota usage: %w", err)
	}
	return v, nil
}

// Limit returns the calls allowed per window
func (q *QuotaTracker) Limit() int {
	return q.limit
}
