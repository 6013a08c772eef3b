package redis

import (
	"context"
	"time"
)

// RateLimiter counts requests per identifier in fixed windows. Counters are
// shared by every server instance using the same Redis.
type RateLimiter struct {
	cache  *Cache
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per window.
func NewRateLimiter(cache *Cache, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = TTLRateLimitWindow
	}
	return &RateLimiter{cache: cache, limit: limit, window: window, now: time.Now}
}

// Allow records one request for key and reports whether it is within the
// limit. When Redis fails the request is allowed and the error returned.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowStart := r.now().Truncate(r.window)
	n, err := r.cache.IncrWithExpiry(ctx, RateLimitKey(key, windowStart), r.window)
	if err != nil {
		return true, err
	}
	return n <= int64(r.limit), nil
}
