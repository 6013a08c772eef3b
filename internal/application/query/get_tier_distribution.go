package query

import (
	"context"
	"time"

	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TIER DISTRIBUTION QUERY
// Tier counts and percentages for one week, across a grade or narrowed to a
// classroom and/or subject.
// ══════════════════════════════════════════════════════════════════════════════

// GetTierDistributionQuery selects one week of tier counts.
type GetTierDistributionQuery struct {
	// Grade is a grade level code or name.
	Grade string

	// Classroom narrows to one classroom code. Empty means the whole grade.
	Classroom string

	// Subject narrows to one subject. Empty means both.
	Subject string

	// WeekStart is any date in the week; it is floored to Monday.
	WeekStart time.Time
}

// Validate checks the query and normalises its week.
func (q *GetTierDistributionQuery) Validate() error {
	if q.Grade == "" {
		return validationError("GetTierDistribution", "grade is required")
	}
	if q.WeekStart.IsZero() {
		return validationError("GetTierDistribution", "week is required")
	}
	if q.Subject != "" {
		s, err := assessment.ParseSubject(q.Subject)
		if err != nil {
			return err
		}
		q.Subject = s.String()
	}
	q.WeekStart = timeutil.WeekStart(q.WeekStart)
	return nil
}

// GetTierDistributionResult is the summed distribution with its parts.
type GetTierDistributionResult struct {
	Grade        string                  `json:"grade"`
	Classroom    string                  `json:"classroom,omitempty"`
	Subject      string                  `json:"subject,omitempty"`
	WeekStart    string                  `json:"weekStart"`
	Distribution assessment.Distribution `json:"distribution"`
	Aggregates   []AggregateDTO          `json:"aggregates"`
}

// GetTierDistributionHandler handles GetTierDistributionQuery.
type GetTierDistributionHandler struct {
	roster     Roster
	aggregates assessment.AggregateReader
	cache      DashboardCache
}

// NewGetTierDistributionHandler creates the handler. cache may be nil.
func NewGetTierDistributionHandler(r Roster, aggregates assessment.AggregateReader, cache DashboardCache) *GetTierDistributionHandler {
	return &GetTierDistributionHandler{roster: r, aggregates: aggregates, cache: cache}
}

// Handle runs the query.
func (h *GetTierDistributionHandler) Handle(ctx context.Context, q GetTierDistributionQuery) (*GetTierDistributionResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := cacheKey("distribution", q.Grade, q.Classroom, q.Subject, timeutil.FormatDate(q.WeekStart))
	return cached(ctx, h.cache, key, func() (*GetTierDistributionResult, error) {
		return h.load(ctx, q)
	})
}

func (h *GetTierDistributionHandler) load(ctx context.Context, q GetTierDistributionQuery) (*GetTierDistributionResult, error) {
	sc, err := h.roster.resolve(ctx, "GetTierDistribution", q.Grade, q.Classroom)
	if err != nil {
		return nil, err
	}

	filter := assessment.AggregateFilter{
		GradeLevelID: sc.grade.ID,
		Subject:      assessment.Subject(q.Subject),
		From:         q.WeekStart,
		To:           q.WeekStart,
	}
	if sc.classroom != nil {
		filter.ClassroomID = sc.classroom.ID
	}

	aggs, err := h.aggregates.ListAggregates(ctx, filter)
	if err != nil {
		return nil, shared.WrapError("query", "GetTierDistribution", shared.ErrPersistence, "failed to list aggregates", err)
	}

	res := &GetTierDistributionResult{
		Grade:        sc.grade.Label(),
		Classroom:    q.Classroom,
		Subject:      q.Subject,
		WeekStart:    timeutil.FormatDate(q.WeekStart),
		Distribution: assessment.Sum(aggs),
		Aggregates:   make([]AggregateDTO, 0, len(aggs)),
	}
	for _, a := range aggs {
		res.Aggregates = append(res.Aggregates, AggregateDTO{
			Classroom:  sc.codeOf(a.ClassroomID),
			Subject:    a.Subject.String(),
			WeekStart:  timeutil.FormatDate(a.WeekStart),
			TierCounts: a.TierCounts,
		})
	}
	return res, nil
}
