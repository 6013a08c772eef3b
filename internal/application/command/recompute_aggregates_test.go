package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
	"github.com/schoolpulse/assessment-hub/pkg/logger"
)

func TestRecomputeAggregates_RebuildsEveryGroup(t *testing.T) {
	f := newIngestFixture(t)
	res := f.run(t,
		scoreRow(2, "2025-08-18", "G3-A", "Math", "Alice Johnson", 92),
		scoreRow(3, "2025-08-25", "G3-A", "Math", "Bob Smith", 70),
		scoreRow(4, "2025-08-25", "G3-B", "Reading", "Carol White", 50),
	)
	require.Equal(t, upload.StatusComplete, res.Status)

	h := NewRecomputeAggregatesHandler(f.store, logger.Nop(), RecomputeAggregatesHandlerConfig{Concurrency: 2})
	out, err := h.Handle(context.Background(), RecomputeAggregatesCommand{})
	require.NoError(t, err)

	assert.Equal(t, 3, out.Groups)
	assert.Equal(t, 3, out.Rebuilt)
	assert.Empty(t, out.Failed)

	agg := f.aggregate(t, f.g3b, assessment.SubjectReading, "2025-08-25")
	assert.Equal(t, assessment.TierCounts{Gray: 1, Total: 1}, agg.TierCounts)
}

func TestRecomputeAggregates_Since(t *testing.T) {
	f := newIngestFixture(t)
	f.run(t,
		scoreRow(2, "2025-08-18", "G3-A", "Math", "Alice Johnson", 92),
		scoreRow(3, "2025-08-25", "G3-A", "Math", "Bob Smith", 70),
	)

	h := NewRecomputeAggregatesHandler(f.store, nil, RecomputeAggregatesHandlerConfig{})
	out, err := h.Handle(context.Background(), RecomputeAggregatesCommand{
		Since: time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Groups)
	assert.Equal(t, 1, out.Rebuilt)
}

func TestRecomputeAggregates_ReportsFailedGroups(t *testing.T) {
	f := newIngestFixture(t)
	f.run(t, scoreRow(2, "2025-08-25", "G3-A", "Math", "Alice Johnson", 92))

	store := &failingStore{Store: f.store, failSection: assert.AnError}
	h := NewRecomputeAggregatesHandler(store, logger.Nop(), RecomputeAggregatesHandlerConfig{})

	out, err := h.Handle(context.Background(), RecomputeAggregatesCommand{})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Rebuilt)
	require.Len(t, out.Failed, 1)
	assert.Contains(t, out.Failed[0], assert.AnError.Error())
}
