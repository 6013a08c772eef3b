// Package jobs holds the worker's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolpulse/assessment-hub/internal/application/command"
	"github.com/schoolpulse/assessment-hub/pkg/logger"
	"github.com/schoolpulse/assessment-hub/pkg/timeutil"
)

// Rebuilder recounts aggregates.
type Rebuilder interface {
	Handle(ctx context.Context, cmd command.RecomputeAggregatesCommand) (*command.RecomputeAggregatesResult, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD AGGREGATES JOB
// ══════════════════════════════════════════════════════════════════════════════

// RebuildAggregatesJob recounts the weekly aggregates of recent weeks and
// then drops cached dashboards.
type RebuildAggregatesJob struct {
	rebuilder Rebuilder
	cache     command.CacheInvalidator
	log       *logger.Logger

	// weeks limits the rebuild to the current week and the previous weeks.
	// Zero rebuilds every week.
	weeks int
	now   func() time.Time
}

// NewRebuildAggregatesJob creates the job.
func NewRebuildAggregatesJob(r Rebuilder, cache command.CacheInvalidator, weeks int, log *logger.Logger) *RebuildAggregatesJob {
	if log == nil {
		log = logger.Default()
	}
	return &RebuildAggregatesJob{
		rebuilder: r,
		cache:     cache,
		log:       log.With(logger.Component("rebuild_aggregates_job")),
		weeks:     weeks,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Name implements scheduler.Job.
func (j *RebuildAggregatesJob) Name() string { return "rebuild_aggregates" }

// Run implements scheduler.Job.
func (j *RebuildAggregatesJob) Run(ctx context.Context) error {
	cmd := command.RecomputeAggregatesCommand{}
	if j.weeks > 0 {
		cmd.Since = timeutil.AddWeeks(timeutil.WeekStart(j.now()), -j.weeks)
	}

	res, err := j.rebuilder.Handle(ctx, cmd)
	if err != nil {
		return err
	}

	if res.Rebuilt > 0 && j.cache != nil {
		if err := j.cache.InvalidateAll(ctx); err != nil {
			j.log.Warn("dashboard cache invalidation failed", logger.Err(err))
		}
	}

	if len(res.Failed) > 0 {
		return fmt.Errorf("%d of %d group(s) failed to rebuild", len(res.Failed), res.Groups)
	}
	return nil
}
