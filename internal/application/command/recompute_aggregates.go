package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE AGGREGATES COMMAND
// Rebuilds weekly aggregates from score records. The ingest pipeline calls
// RecomputeGroup inside each group's critical section; the worker runs the
// command to rebuild every group after a manual data fix.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeGroup recounts one group's scores and replaces its aggregate.
// It must run inside the group's critical section, after the group's score
// writes.
func RecomputeGroup(ctx context.Context, w assessment.GroupWriter, key assessment.GroupKey, assessmentID string, now time.Time) (*assessment.WeeklyAggregate, error) {
	scores, err := w.ListScores(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}

	agg, err := assessment.Recount(key, scores, now)
	if err != nil {
		return nil, err
	}

	if err := w.UpsertAggregate(ctx, agg); err != nil {
		return nil, fmt.Errorf("upsert aggregate: %w", err)
	}
	return agg, nil
}

// RecomputeAggregatesCommand selects which groups to rebuild.
type RecomputeAggregatesCommand struct {
	// Since limits the rebuild to weeks starting on or after this date.
	// Zero means every week.
	Since time.Time
}

// RecomputeAggregatesResult summarises a rebuild.
type RecomputeAggregatesResult struct {
	// Groups is how many groups were examined.
	Groups int

	// Rebuilt is how many aggregates were written.
	Rebuilt int

	// Failed lists the groups whose rebuild failed, with the reason.
	Failed []string

	Duration time.Duration
}

// RecomputeAggregatesHandler handles RecomputeAggregatesCommand.
type RecomputeAggregatesHandler struct {
	store       assessment.GroupStore
	log         *logger.Logger
	concurrency int
	now         func() time.Time
}

// RecomputeAggregatesHandlerConfig contains configuration for the handler.
type RecomputeAggregatesHandlerConfig struct {
	// Concurrency bounds how many groups are rebuilt at once.
	Concurrency int
}

// NewRecomputeAggregatesHandler creates a new RecomputeAggregatesHandler.
func NewRecomputeAggregatesHandler(
	store assessment.GroupStore,
	log *logger.Logger,
	config RecomputeAggregatesHandlerConfig,
) *RecomputeAggregatesHandler {
	if log == nil {
		log = logger.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &RecomputeAggregatesHandler{
		store:       store,
		log:         log.With(logger.Component("recompute_aggregates")),
		concurrency: config.Concurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Handle rebuilds every selected group. A failing group is reported and the
// rest still run.
func (h *RecomputeAggregatesHandler) Handle(ctx context.Context, cmd RecomputeAggregatesCommand) (*RecomputeAggregatesResult, error) {
	start := time.Now()

	keys, err := h.store.ListGroupKeys(ctx, cmd.Since)
	if err != nil {
		return nil, fmt.Errorf("recompute_aggregates: list groups: %w", err)
	}

	result := &RecomputeAggregatesResult{Groups: len(keys)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)

	for _, key := range keys {
		g.Go(func() error {
			rebuilt, err := h.rebuild(gctx, key)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed = append(result.Failed, fmt.Sprintf("%s: %v", key, err))
				h.log.Error("aggregate rebuild failed", logger.String("group", key.String()), logger.Err(err))
			case rebuilt:
				result.Rebuilt++
			}
			// Only cancellation stops the whole run.
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("recompute_aggregates: %w", err)
	}

	result.Duration = time.Since(start)
	h.log.Info("aggregates rebuilt",
		logger.Int("groups", result.Groups),
		logger.Int("rebuilt", result.Rebuilt),
		logger.Int("failed", len(result.Failed)),
		logger.Latency(result.Duration),
	)
	return result, nil
}

func (h *RecomputeAggregatesHandler) rebuild(ctx context.Context, key assessment.GroupKey) (bool, error) {
	rebuilt := false
	err := h.store.WithinGroup(ctx, key, func(ctx context.Context, w assessment.GroupWriter) error {
		a, err := w.FindAssessment(ctx, key)
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := RecomputeGroup(ctx, w, key, a.ID, h.now()); err != nil {
			return err
		}
		rebuilt = true
		return nil
	})
	return rebuilt, err
}
