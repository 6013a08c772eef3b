// Package memcache is the in-process dashboard cache used when Redis is
// disabled. Entries are per process, so multiple server instances each keep
// their own copy until it expires or a local upload invalidates it.
package memcache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultTTL is the lifetime of an entry when none is configured.
const DefaultTTL = 5 * time.Minute

// DashboardCache stores serialized dashboard results in a go-cache instance
// dedicated to dashboards.
type DashboardCache struct {
	c   *cache.Cache
	gen atomic.Int64
}

// NewDashboardCache creates a cache whose entries live for ttl.
func NewDashboardCache(ttl time.Duration) *DashboardCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DashboardCache{c: cache.New(ttl, 2*ttl)}
}

// Get returns the cached bytes for key.
func (d *DashboardCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := d.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	return data, ok, nil
}

// Set stores a copy of value under key.
func (d *DashboardCache) Set(ctx context.Context, key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	d.c.Set(key, cp, cache.DefaultExpiration)
	return nil
}

// Generation returns the number of invalidations so far.
func (d *DashboardCache) Generation(ctx context.Context) (int64, error) {
	return d.gen.Load(), nil
}

// InvalidateAll advances the generation, then drops every entry.
func (d *DashboardCache) InvalidateAll(ctx context.Context) error {
	d.gen.Add(1)
	d.c.Flush()
	return nil
}

// Len returns the number of live entries.
func (d *DashboardCache) Len() int {
	return d.c.ItemCount()
}
