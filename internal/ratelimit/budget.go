// Package ratelimit provides a Redis-backed request budget shared by every
// process that calls the same upstream provider.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reputation-engine/internal/logging"
)

// Default budget configuration values.
const (
	DefaultWindowSize = time.Second
	DefaultMaxWait    = 10 * time.Second
	keyPrefix         = "budget:"
)

// ErrMaxWaitExceeded is returned when no budget frees up within MaxWait.
var ErrMaxWaitExceeded = errors.New("maximum wait time exceeded waiting for provider budget")

// consumeScript atomically checks and increments the window counter
var consumeScript = redis.NewScript(`
	local key = KEYS[1]
	local n = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local ttl = tonumber(ARGV[3])

	local used = tonumber(redis.call('GET', key) or '0')
	if used + n > limit then
		return {0, used}
	end

	redis.call('INCRBY', key, n)
	redis.call('EXPIRE', key, ttl)
	return {1, used + n}
`)

// BudgetConfig configures a RequestBudget.
type BudgetConfig struct {
	// Redis is the client used for cross-process coordination. Required.
	Redis redis.Cmdable

	// Name scopes the counters, usually the provider name. Required.
	Name string

	// Limit is the number of requests allowed per window. Required.
	Limit int

	// WindowSize is the fixed window duration. Default: 1s.
	WindowSize time.Duration

	// MaxWait bounds how long Wait blocks. Default: 10s.
	MaxWait time.Duration
}

// Validate checks if the configuration is valid.
func (c *BudgetConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.Name == "" {
		return errors.New("budget name is required")
	}
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", c.Limit)
	}
	if c.WindowSize < 0 || c.MaxWait < 0 {
		return errors.New("durations cannot be negative")
	}
	return nil
}

// RequestBudget is a fixed-window request counter stored in Redis.
// Redis failures fail open: a broken limiter never blocks provider traffic.
type RequestBudget struct {
	redis   redis.Cmdable
	name    string
	limit   int
	window  time.Duration
	maxWait time.Duration
	now     func() time.Time
}

// NewRequestBudget creates a budget from cfg.
func NewRequestBudget(cfg *BudgetConfig) (*RequestBudget, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	window := cfg.WindowSize
	if window == 0 {
		window = DefaultWindowSize
	}
	maxWait := cfg.MaxWait
	if maxWait == 0 {
		maxWait = DefaultMaxWait
	}

	return &RequestBudget{
		redis:   cfg.Redis,
		name:    cfg.Name,
		limit:   cfg.Limit,
		window:  window,
		maxWait: maxWait,
		now:     time.Now,
	}, nil
}

func (b *RequestBudget) windowStart() time.Time {
	return b.now().Truncate(b.window)
}

func (b *RequestBudget) key(start time.Time) string {
	return keyPrefix + b.name + ":" + strconv.FormatInt(start.UnixMilli(), 10)
}

// TryConsume takes n requests from the current window. When the window is
// exhausted it returns false and the time until the next window opens.
func (b *RequestBudget) TryConsume(ctx context.Context, n int) (bool, time.Duration) {
	if n <= 0 {
		return true, 0
	}

	start := b.windowStart()
	ttl := int((2 * b.window).Seconds())
	if ttl < 1 {
		ttl = 1
	}

	result, err := consumeScript.Run(ctx, b.redis, []string{b.key(start)}, n, b.limit, ttl).Int64Slice()
	if err != nil {
		logging.FromContext(ctx).WithField("budget", b.name).WithError(err).Warn("Request budget unavailable, allowing request")
		return true, 0
	}
	if result[0] == 1 {
		return true, 0
	}

	wait := start.Add(b.window).Sub(b.now())
	if wait < 0 {
		wait = 0
	}
	return false, wait + time.Millisecond
}

// Wait blocks until one request fits in the budget, the context ends or MaxWait elapses.
func (b *RequestBudget) Wait(ctx context.Context) error {
	deadline := b.now().Add(b.maxWait)
	for {
		ok, wait := b.TryConsume(ctx, 1)
		if ok {
			return nil
		}
		if b.now().Add(wait).After(deadline) {
			return ErrMaxWaitExceeded
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

// Used returns the requests consumed in the current window.
func (b *RequestBudget) Used(ctx context.Context) (int, error) {
	v, err := b.redis.Get(ctx, b.key(b.windowStart())).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Limit returns the configured requests per window.
func (b *RequestBudget) Limit() int {
	return b.limit
}
