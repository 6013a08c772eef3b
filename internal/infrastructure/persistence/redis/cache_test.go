package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitKey(t *testing.T) {
	w := time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, fmt.Sprintf("ratelimit:10.0.0.1:%d", w.Unix()), RateLimitKey("10.0.0.1", w))
}

func TestConfigAddr(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr())
}

// newTestCache connects to REDIS_TEST_HOST:REDIS_TEST_PORT, skipping the test
// when no server is configured.
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	host := os.Getenv("REDIS_TEST_HOST")
	if host == "" {
		t.Skip("REDIS_TEST_HOST not set")
	}
	cfg := DefaultConfig()
	cfg.Host = host
	if p, err := strconv.Atoi(os.Getenv("REDIS_TEST_PORT")); err == nil {
		cfg.Port = p
	}
	cfg.DB = 15

	c, err := NewCache(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.client.FlushDB(context.Background()).Err()
		_ = c.Close()
	})
	return c
}

func TestDashboardCache_Integration(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	d := NewDashboardCache(c, time.Minute)

	_, ok, err := d.Get(ctx, "dashboard:distribution:3")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Set(ctx, "dashboard:distribution:3", []byte(`{"total":4}`)))
	require.NoError(t, d.Set(ctx, "dashboard:rollup:3", []byte(`{}`)))
	require.NoError(t, c.SetBytes(ctx, "other:key", []byte("x"), time.Minute))

	data, ok, err := d.Get(ctx, "dashboard:distribution:3")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"total":4}`, string(data))

	before, err := d.Generation(ctx)
	require.NoError(t, err)

	require.NoError(t, d.InvalidateAll(ctx))

	after, err := d.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	_, ok, err = d.Get(ctx, "dashboard:rollup:3")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.GetBytes(ctx, "other:key")
	assert.NoError(t, err)
}

func TestRateLimiter_Integration(t *testing.T) {
	c := newTestCache(t)
	rl := NewRateLimiter(c, 2, time.Minute)
	fixed := time.Date(2025, 8, 25, 9, 0, 30, 0, time.UTC)
	rl.now = func() time.Time { return fixed }

	for i, want := range []bool{true, true, false} {
		ok, err := rl.Allow(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i+1)
	}

	ok, err := rl.Allow(context.Background(), "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)
}
