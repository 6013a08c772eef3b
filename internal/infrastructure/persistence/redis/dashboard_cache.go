package redis

import (
	"context"
	"errors"
	"time"
)

// DashboardCache stores serialized dashboard query results in Redis. Every
// key it writes lives under PrefixDashboard so one SCAN clears them all.
type DashboardCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewDashboardCache creates a DashboardCache. A non-positive ttl falls back
// to TTLDashboard.
func NewDashboardCache(cache *Cache, ttl time.Duration) *DashboardCache {
	if ttl <= 0 {
		ttl = TTLDashboard
	}
	return &DashboardCache{cache: cache, ttl: ttl}
}

// Get returns the cached bytes for key.
func (d *DashboardCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := d.cache.GetBytes(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores value under key for the configured TTL.
func (d *DashboardCache) Set(ctx context.Context, key string, value []byte) error {
	return d.cache.SetBytes(ctx, key, value, d.ttl)
}

// Generation returns the shared invalidation counter, so every server
// instance keys its entries the same way.
func (d *DashboardCache) Generation(ctx context.Context) (int64, error) {
	return d.cache.GetInt(ctx, KeyDashboardGeneration)
}

// InvalidateAll advances the generation, then deletes every dashboard key.
// Once the counter moved, old keys are unreachable even if the delete fails.
func (d *DashboardCache) InvalidateAll(ctx context.Context) error {
	if _, err := d.cache.Incr(ctx, KeyDashboardGeneration); err != nil {
		return err
	}
	return d.cache.DeleteByPattern(ctx, PrefixDashboard+"*")
}
