package query

import (
	"context"
	"time"

	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TIER TRENDS QUERY
// Weekly tier series for a subject, ascending by week. Only weeks with data
// produce a point.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultTrendWeeks is the range used when From is not given.
const DefaultTrendWeeks = 8

// GetTierTrendsQuery selects a weekly series.
type GetTierTrendsQuery struct {
	Grade     string
	Classroom string // empty sums every classroom of the grade
	Subject   string
	From      time.Time // zero: DefaultTrendWeeks before To
	To        time.Time // zero: the latest week with data
}

// Validate checks the query and floors its range to Mondays.
func (q *GetTierTrendsQuery) Validate() error {
	if q.Grade == "" {
		return validationError("GetTierTrends", "grade is required")
	}
	s, err := assessment.ParseSubject(q.Subject)
	if err != nil {
		return err
	}
	q.Subject = s.String()

	if !q.From.IsZero() {
		q.From = timeutil.WeekStart(q.From)
	}
	if !q.To.IsZero() {
		q.To = timeutil.WeekStart(q.To)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return validationError("GetTierTrends", "from must not be after to")
	}
	return nil
}

// TrendPointDTO is one week of the series.
type TrendPointDTO struct {
	WeekStart string `json:"weekStart"`
	assessment.Distribution
}

// GetTierTrendsResult is the series with the range actually used.
type GetTierTrendsResult struct {
	Grade     string          `json:"grade"`
	Classroom string          `json:"classroom,omitempty"`
	Subject   string          `json:"subject"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Points    []TrendPointDTO `json:"points"`
}

// GetTierTrendsHandler handles GetTierTrendsQuery.
type GetTierTrendsHandler struct {
	roster     Roster
	aggregates assessment.AggregateReader
	cache      DashboardCache
}

// NewGetTierTrendsHandler creates the handler. cache may be nil.
func NewGetTierTrendsHandler(r Roster, aggregates assessment.AggregateReader, cache DashboardCache) *GetTierTrendsHandler {
	return &GetTierTrendsHandler{roster: r, aggregates: aggregates, cache: cache}
}

// Handle runs the query.
func (h *GetTierTrendsHandler) Handle(ctx context.Context, q GetTierTrendsQuery) (*GetTierTrendsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := cacheKey("trends", q.Grade, q.Classroom, q.Subject, dateOrEmpty(q.From), dateOrEmpty(q.To))
	return cached(ctx, h.cache, key, func() (*GetTierTrendsResult, error) {
		return h.load(ctx, q)
	})
}

func (h *GetTierTrendsHandler) load(ctx context.Context, q GetTierTrendsQuery) (*GetTierTrendsResult, error) {
	sc, err := h.roster.resolve(ctx, "GetTierTrends", q.Grade, q.Classroom)
	if err != nil {
		return nil, err
	}

	res := &GetTierTrendsResult{
		Grade:     sc.grade.Label(),
		Classroom: q.Classroom,
		Subject:   q.Subject,
		Points:    []TrendPointDTO{},
	}

	to := q.To
	if to.IsZero() {
		latest, err := h.aggregates.LatestWeek(ctx, sc.grade.ID)
		if err != nil {
			return nil, shared.WrapError("query", "GetTierTrends", shared.ErrPersistence, "failed to find latest week", err)
		}
		if latest.IsZero() {
			return res, nil
		}
		to = latest
		if q.From.After(to) {
			// Nothing recorded since from yet.
			res.From = timeutil.FormatDate(q.From)
			return res, nil
		}
	}
	from := q.From
	if from.IsZero() {
		from = timeutil.AddWeeks(to, -(DefaultTrendWeeks - 1))
	}

	filter := assessment.AggregateFilter{
		GradeLevelID: sc.grade.ID,
		Subject:      assessment.Subject(q.Subject),
		From:         from,
		To:           to,
	}
	if sc.classroom != nil {
		filter.ClassroomID = sc.classroom.ID
	}

	aggs, err := h.aggregates.ListAggregates(ctx, filter)
	if err != nil {
		return nil, shared.WrapError("query", "GetTierTrends", shared.ErrPersistence, "failed to list aggregates", err)
	}

	res.From, res.To = timeutil.FormatDate(from), timeutil.FormatDate(to)
	for _, p := range assessment.ByWeek(aggs) {
		res.Points = append(res.Points, TrendPointDTO{
			WeekStart:    timeutil.FormatDate(p.WeekStart),
			Distribution: p.Distribution,
		})
	}
	return res, nil
}

func dateOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return timeutil.FormatDate(t)
}
