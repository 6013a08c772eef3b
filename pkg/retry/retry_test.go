package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("connection refused")

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var waits []int

	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errDown
		}
		return nil
	}, WithInitialDelay(time.Millisecond), WithOnRetry(func(attempt int, err error, delay time.Duration) {
		waits = append(waits, attempt)
	}))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, waits)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	badDSN := errors.New("invalid dsn")

	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(badDSN)
	}, WithInitialDelay(time.Millisecond))

	assert.ErrorIs(t, err, badDSN)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0

	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errDown
	}, WithMaxAttempts(2), WithInitialDelay(time.Millisecond))

	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, 2, calls)
}

func TestDo_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	got, err := DoWithData(context.Background(), func(ctx context.Context) (string, error) {
		return "pong", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
}

func TestBackoffIsCapped(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 10}
	assert.Equal(t, time.Second, backoff(cfg, 1))
	assert.Equal(t, 3*time.Second, backoff(cfg, 4))
}

func TestBackoffJitterStaysInBand(t *testing.T) {
	cfg := DefaultConfig()
	WithInitialDelay(time.Second)(&cfg)
	WithJitter(0.5)(&cfg)
	require.Equal(t, 0.5, cfg.JitterFactor)

	for i := 0; i < 1000; i++ {
		d := backoff(cfg, 1)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}

	// Out-of-range factors are ignored.
	WithJitter(1.5)(&cfg)
	WithJitter(-0.1)(&cfg)
	assert.Equal(t, 0.5, cfg.JitterFactor)
}
