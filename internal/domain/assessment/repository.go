package assessment

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// GroupWriter performs the writes of one group inside its critical section.
// Every write is an upsert keyed by its natural composite key.
type GroupWriter interface {
	// UpsertAssessment returns the assessment for (subject, classroom, week),
	// creating it on first use.
	UpsertAssessment(ctx context.Context, key GroupKey) (*Assessment, error)

	// FindAssessment returns shared.ErrAssessmentNotFound when the group has
	// never been written.
	FindAssessment(ctx context.Context, key GroupKey) (*Assessment, error)

	// UpsertScore inserts or overwrites the score for (student, assessment).
	// A failed upsert leaves the group's other writes intact.
	UpsertScore(ctx context.Context, rec *ScoreRecord) error

	// ListScores returns every score record of an assessment.
	ListScores(ctx context.Context, assessmentID string) ([]*ScoreRecord, error)

	// UpsertAggregate replaces the aggregate for its group key.
	UpsertAggregate(ctx context.Context, agg *WeeklyAggregate) error
}

// GroupStore serializes access to a group. Concurrent callers for the same
// key run one after another; different keys proceed independently.
type GroupStore interface {
	// WithinGroup runs fn as the group's critical section. When fn returns an
	// error the section's writes may be discarded.
	WithinGroup(ctx context.Context, key GroupKey, fn func(ctx context.Context, w GroupWriter) error) error

	// ListGroupKeys returns the key of every assessment whose week starts on
	// or after since, ordered by week, classroom and subject.
	ListGroupKeys(ctx context.Context, since time.Time) ([]GroupKey, error)
}

// AggregateFilter narrows aggregate reads. Zero fields match everything.
type AggregateFilter struct {
	GradeLevelID string
	ClassroomID  string
	Subject      Subject
	From         time.Time // inclusive week start
	To           time.Time // inclusive week start
}

// AggregateReader serves dashboard reads.
type AggregateReader interface {
	// ListAggregates returns matching aggregates ordered by week start and
	// then classroom.
	ListAggregates(ctx context.Context, filter AggregateFilter) ([]*WeeklyAggregate, error)

	// LatestWeek returns the most recent week start with data for the grade,
	// or the zero time when there is none.
	LatestWeek(ctx context.Context, gradeLevelID string) (time.Time, error)
}
