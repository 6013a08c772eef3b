package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(opts ...Option) (*CircuitBreaker, *clock) {
	clk := &clock{t: time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)}
	cb := New("test", opts...)
	cb.now = clk.now
	return cb, clk
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(WithFailureThreshold(2))
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.True(t, IsRejected(err))
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cb, _ := newTestBreaker(WithFailureThreshold(2))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, ok))
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	var transitions []string
	cb, clk := newTestBreaker(
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithCoolDown(10*time.Second),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clk.advance(5 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrOpen)

	clk.advance(5 * time.Second)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clk := newTestBreaker(WithFailureThreshold(1), WithCoolDown(time.Second))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clk.advance(time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreaker_ProbeLimit(t *testing.T) {
	cb, clk := newTestBreaker(WithFailureThreshold(1), WithCoolDown(time.Second))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clk.advance(time.Second)

	err := cb.Execute(ctx, func(ctx context.Context) error {
		// A second caller arriving while the probe is in flight is rejected.
		assert.ErrorIs(t, cb.Execute(ctx, ok), ErrProbeLimit)
		return nil
	})
	require.NoError(t, err)
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	cb, _ := newTestBreaker(WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), fail)
	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "test", cb.Name())
}

func TestCacheBreaker(t *testing.T) {
	cb := CacheBreaker(nil)
	assert.Equal(t, "dashboard-cache", cb.Name())
	assert.Equal(t, 3, cb.cfg.FailureThreshold)
}
