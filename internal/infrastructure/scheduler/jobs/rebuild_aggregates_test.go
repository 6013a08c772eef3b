package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpulse/assessment-hub/internal/application/command"
	"github.com/schoolpulse/assessment-hub/pkg/logger"
)

type stubRebuilder struct {
	got    command.RecomputeAggregatesCommand
	result *command.RecomputeAggregatesResult
	err    error
}

func (s *stubRebuilder) Handle(ctx context.Context, cmd command.RecomputeAggregatesCommand) (*command.RecomputeAggregatesResult, error) {
	s.got = cmd
	return s.result, s.err
}

type stubInvalidator struct{ calls int }

func (s *stubInvalidator) InvalidateAll(ctx context.Context) error {
	s.calls++
	return nil
}

func TestRebuildAggregatesJob_LimitsToRecentWeeks(t *testing.T) {
	r := &stubRebuilder{result: &command.RecomputeAggregatesResult{Groups: 3, Rebuilt: 3}}
	inv := &stubInvalidator{}
	job := NewRebuildAggregatesJob(r, inv, 2, logger.Nop())
	// Thursday
	job.now = func() time.Time { return time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, time.Date(2026, 9, 28, 0, 0, 0, 0, time.UTC), r.got.Since)
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, "rebuild_aggregates", job.Name())
}

func TestRebuildAggregatesJob_AllWeeksWhenZero(t *testing.T) {
	r := &stubRebuilder{result: &command.RecomputeAggregatesResult{}}
	inv := &stubInvalidator{}
	job := NewRebuildAggregatesJob(r, inv, 0, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, r.got.Since.IsZero())
	assert.Zero(t, inv.calls, "nothing rebuilt, nothing to invalidate")
}

func TestRebuildAggregatesJob_ReportsFailedGroups(t *testing.T) {
	r := &stubRebuilder{result: &command.RecomputeAggregatesResult{Groups: 2, Rebuilt: 1, Failed: []string{"g: boom"}}}
	job := NewRebuildAggregatesJob(r, &stubInvalidator{}, 0, logger.Nop())

	err := job.Run(context.Background())
	assert.EqualError(t, err, "1 of 2 group(s) failed to rebuild")
}

func TestRebuildAggregatesJob_PropagatesHandlerError(t *testing.T) {
	r := &stubRebuilder{err: errors.New("list groups")}
	job := NewRebuildAggregatesJob(r, nil, 0, logger.Nop())
	assert.Error(t, job.Run(context.Background()))
}
