package query

import (
	"context"
	"time"

	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASSROOM ROLLUP QUERY
// One row per classroom of a grade for a subject and week, so classrooms can
// be compared side by side. Classrooms without data show zero totals.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassroomRollupQuery selects a grade, subject and week.
type GetClassroomRollupQuery struct {
	Grade     string
	Subject   string
	WeekStart time.Time
}

// Validate checks the query and floors its week to Monday.
func (q *GetClassroomRollupQuery) Validate() error {
	if q.Grade == "" {
		return validationError("GetClassroomRollup", "grade is required")
	}
	if q.WeekStart.IsZero() {
		return validationError("GetClassroomRollup", "week is required")
	}
	s, err := assessment.ParseSubject(q.Subject)
	if err != nil {
		return err
	}
	q.Subject = s.String()
	q.WeekStart = timeutil.WeekStart(q.WeekStart)
	return nil
}

// ClassroomRollupDTO is one classroom's row.
type ClassroomRollupDTO struct {
	Classroom string `json:"classroom"`
	Name      string `json:"name"`
	assessment.Distribution

	// OnTrackPct is the green share.
	OnTrackPct float64 `json:"onTrackPct"`
}

// GetClassroomRollupResult lists every classroom of the grade.
type GetClassroomRollupResult struct {
	Grade      string               `json:"grade"`
	Subject    string               `json:"subject"`
	WeekStart  string               `json:"weekStart"`
	Classrooms []ClassroomRollupDTO `json:"classrooms"`
}

// GetClassroomRollupHandler handles GetClassroomRollupQuery.
type GetClassroomRollupHandler struct {
	roster     Roster
	aggregates assessment.AggregateReader
	cache      DashboardCache
}

// NewGetClassroomRollupHandler creates the handler. cache may be nil.
func NewGetClassroomRollupHandler(r Roster, aggregates assessment.AggregateReader, cache DashboardCache) *GetClassroomRollupHandler {
	return &GetClassroomRollupHandler{roster: r, aggregates: aggregates, cache: cache}
}

// Handle runs the query.
func (h *GetClassroomRollupHandler) Handle(ctx context.Context, q GetClassroomRollupQuery) (*GetClassroomRollupResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := cacheKey("rollup", q.Grade, q.Subject, timeutil.FormatDate(q.WeekStart))
	return cached(ctx, h.cache, key, func() (*GetClassroomRollupResult, error) {
		return h.load(ctx, q)
	})
}

func (h *GetClassroomRollupHandler) load(ctx context.Context, q GetClassroomRollupQuery) (*GetClassroomRollupResult, error) {
	sc, err := h.roster.resolve(ctx, "GetClassroomRollup", q.Grade, "")
	if err != nil {
		return nil, err
	}

	aggs, err := h.aggregates.ListAggregates(ctx, assessment.AggregateFilter{
		GradeLevelID: sc.grade.ID,
		Subject:      assessment.Subject(q.Subject),
		From:         q.WeekStart,
		To:           q.WeekStart,
	})
	if err != nil {
		return nil, shared.WrapError("query", "GetClassroomRollup", shared.ErrPersistence, "failed to list aggregates", err)
	}
	byRoom := assessment.ByClassroom(aggs)

	res := &GetClassroomRollupResult{
		Grade:      sc.grade.Label(),
		Subject:    q.Subject,
		WeekStart:  timeutil.FormatDate(q.WeekStart),
		Classrooms: make([]ClassroomRollupDTO, 0, len(sc.classrooms)),
	}
	// Classrooms come back ordered by code.
	for _, c := range sc.classrooms {
		d := byRoom[c.ID]
		res.Classrooms = append(res.Classrooms, ClassroomRollupDTO{
			Classroom:    c.Code,
			Name:         c.Name,
			Distribution: d,
			OnTrackPct:   d.GreenPct,
		})
	}
	return res, nil
}
