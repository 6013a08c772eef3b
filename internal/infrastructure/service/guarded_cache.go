package service

import (
	"context"

	"github.com/schoolpulse/assessment-hub/internal/application/query"
	"github.com/schoolpulse/assessment-hub/pkg/circuitbreaker"
	"github.com/schoolpulse/assessment-hub/pkg/logger"
)

// guardedCache puts a circuit breaker in front of a shared dashboard cache.
// While the breaker is open, reads miss and writes are dropped, so dashboards
// are served straight from the store instead of waiting on cache timeouts.
type guardedCache struct {
	next    query.DashboardCache
	breaker *circuitbreaker.CircuitBreaker
}

var _ query.DashboardCache = (*guardedCache)(nil)

func newGuardedCache(next query.DashboardCache, log *logger.Logger) *guardedCache {
	return &guardedCache{
		next: next,
		breaker: circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("dashboard cache breaker changed state",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	}
}

func (g *guardedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		data []byte
		hit  bool
	)
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, hit, err = g.next.Get(ctx, key)
		return err
	})
	if circuitbreaker.IsRejected(err) {
		return nil, false, nil
	}
	return data, hit, err
}

func (g *guardedCache) Set(ctx context.Context, key string, value []byte) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.Set(ctx, key, value)
	})
	if circuitbreaker.IsRejected(err) {
		return nil
	}
	return err
}

// Generation fails while the breaker is open, which makes queries skip the
// cache entirely.
func (g *guardedCache) Generation(ctx context.Context) (int64, error) {
	var gen int64
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		gen, err = g.next.Generation(ctx)
		return err
	})
	return gen, err
}

// InvalidateAll always reaches the cache. Skipping it while the breaker is
// open would leave stale dashboards behind once the cache recovers.
func (g *guardedCache) InvalidateAll(ctx context.Context) error {
	return g.next.InvalidateAll(ctx)
}
