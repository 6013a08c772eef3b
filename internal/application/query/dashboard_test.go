package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/roster"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/persistence/memory"
	"github.com/schoolpulse/assessment-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	gen     int64
	gets    int
	hits    int
	sets    int
	failGet error
	failGen error
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failGet != nil {
		return nil, false, c.failGet
	}
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *mapCache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = value
	return nil
}

func (c *mapCache) Generation(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, c.failGen
}

func (c *mapCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.data = make(map[string][]byte)
	return nil
}

type dashboardFixture struct {
	store *memory.Store
	grade *roster.GradeLevel
	g3a   *roster.Classroom
	g3b   *roster.Classroom
	g3c   *roster.Classroom
	other *roster.Classroom
	r     Roster
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()
	store := memory.NewStore()
	grade := store.AddGradeLevel(roster.GradeLevel{Code: "3", Name: "Grade 3"})
	g4 := store.AddGradeLevel(roster.GradeLevel{Code: "4", Name: "Grade 4"})

	return &dashboardFixture{
		store: store,
		grade: grade,
		g3b:   store.AddClassroom(roster.Classroom{Code: "G3-B", Name: "3B", GradeLevelID: grade.ID}),
		g3a:   store.AddClassroom(roster.Classroom{Code: "G3-A", Name: "3A", GradeLevelID: grade.ID}),
		g3c:   store.AddClassroom(roster.Classroom{Code: "G3-C", Name: "3C", GradeLevelID: grade.ID}),
		other: store.AddClassroom(roster.Classroom{Code: "G4-A", Name: "4A", GradeLevelID: g4.ID}),
		r:     Roster{Classrooms: store, GradeLevels: store.GradeLevels()},
	}
}

func week(s string) time.Time {
	t, err := timeutil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (f *dashboardFixture) put(t *testing.T, c *roster.Classroom, subject assessment.Subject, weekStart string, counts assessment.TierCounts) {
	t.Helper()
	agg := &assessment.WeeklyAggregate{
		GradeLevelID: c.GradeLevelID,
		ClassroomID:  c.ID,
		Subject:      subject,
		WeekStart:    week(weekStart),
		TierCounts:   counts,
	}
	err := f.store.WithinGroup(context.Background(), agg.Key(), func(ctx context.Context, w assessment.GroupWriter) error {
		return w.UpsertAggregate(ctx, agg)
	})
	require.NoError(t, err)
}

func counts(green, orange, red, gray int) assessment.TierCounts {
	return assessment.TierCounts{Green: green, Orange: orange, Red: red, Gray: gray, Total: green + orange + red + gray}
}

// ══════════════════════════════════════════════════════════════════════════════
// TIER DISTRIBUTION
// ══════════════════════════════════════════════════════════════════════════════

func TestGetTierDistribution(t *testing.T) {
	f := newDashboardFixture(t)
	f.put(t, f.g3a, assessment.SubjectMath, "2025-08-25", counts(3, 1, 0, 0))
	f.put(t, f.g3b, assessment.SubjectMath, "2025-08-25", counts(1, 1, 1, 1))
	f.put(t, f.g3a, assessment.SubjectReading, "2025-08-25", counts(0, 0, 0, 2))
	f.put(t, f.g3a, assessment.SubjectMath, "2025-08-18", counts(9, 0, 0, 0))

	h := NewGetTierDistributionHandler(f.r, f.store, nil)
	ctx := context.Background()

	t.Run("whole grade, one subject", func(t *testing.T) {
		res, err := h.Handle(ctx, GetTierDistributionQuery{Grade: "3", Subject: "math", WeekStart: week("2025-08-27")})
		require.NoError(t, err)

		assert.Equal(t, "Grade 3", res.Grade)
		assert.Equal(t, "MATH", res.Subject)
		assert.Equal(t, "2025-08-25", res.WeekStart)
		assert.Equal(t, counts(4, 2, 1, 1), res.Distribution.TierCounts)
		assert.Equal(t, 50.0, res.Distribution.GreenPct)
		assert.Equal(t, 12.5, res.Distribution.GrayPct)
		require.Len(t, res.Aggregates, 2)
	})

	t.Run("one classroom, both subjects", func(t *testing.T) {
		res, err := h.Handle(ctx, GetTierDistributionQuery{Grade: "Grade 3", Classroom: "G3-A", WeekStart: week("2025-08-25")})
		require.NoError(t, err)
		assert.Equal(t, counts(3, 1, 0, 2), res.Distribution.TierCounts)
		for _, a := range res.Aggregates {
			assert.Equal(t, "G3-A", a.Classroom)
		}
	})

	t.Run("week without data", func(t *testing.T) {
		res, err := h.Handle(ctx, GetTierDistributionQuery{Grade: "3", WeekStart: week("2025-09-01")})
		require.NoError(t, err)
		assert.Zero(t, res.Distribution.Total)
		assert.Zero(t, res.Distribution.GreenPct)
		assert.NotNil(t, res.Aggregates)
	})

	t.Run("classroom from another grade", func(t *testing.T) {
		_, err := h.Handle(ctx, GetTierDistributionQuery{Grade: "3", Classroom: "G4-A", WeekStart: week("2025-08-25")})
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("unknown grade", func(t *testing.T) {
		_, err := h.Handle(ctx, GetTierDistributionQuery{Grade: "12", WeekStart: week("2025-08-25")})
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := h.Handle(ctx, GetTierDistributionQuery{WeekStart: week("2025-08-25")})
		assert.True(t, shared.IsValidation(err))

		_, err = h.Handle(ctx, GetTierDistributionQuery{Grade: "3"})
		assert.True(t, shared.IsValidation(err))

		_, err = h.Handle(ctx, GetTierDistributionQuery{Grade: "3", Subject: "Art", WeekStart: week("2025-08-25")})
		assert.ErrorIs(t, err, shared.ErrInvalidSubject)
	})
}

func TestGetTierDistribution_Cache(t *testing.T) {
	f := newDashboardFixture(t)
	f.put(t, f.g3a, assessment.SubjectMath, "2025-08-25", counts(1, 0, 0, 0))

	cache := newMapCache()
	h := NewGetTierDistributionHandler(f.r, f.store, cache)
	q := GetTierDistributionQuery{Grade: "3", Subject: "Math", WeekStart: week("2025-08-25")}

	first, err := h.Handle(context.Background(), q)
	require.NoError(t, err)

	// A write the cache does not know about stays invisible until invalidation.
	f.put(t, f.g3b, assessment.SubjectMath, "2025-08-25", counts(1, 0, 0, 0))

	second, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.Distribution, second.Distribution)

	require.NoError(t, cache.InvalidateAll(context.Background()))
	third, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, third.Distribution.Total)

	for key := range cache.data {
		assert.Contains(t, key, CacheKeyPrefix)
	}
}

func TestGetTierDistribution_CacheFailureFallsThrough(t *testing.T) {
	f := newDashboardFixture(t)
	f.put(t, f.g3a, assessment.SubjectMath, "2025-08-25", counts(1, 0, 0, 0))

	cache := newMapCache()
	cache.failGet = errors.New("redis down")
	h := NewGetTierDistributionHandler(f.r, f.store, cache)

	res, err := h.Handle(context.Background(), GetTierDistributionQuery{Grade: "3", WeekStart: week("2025-08-25")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Distribution.Total)
}

func TestCached_InvalidationDuringLoadDropsTheResult(t *testing.T) {
	type result struct{ Total int }
	cache := newMapCache()
	ctx := context.Background()

	// An upload invalidates the cache while the first read is still loading.
	first, err := cached(ctx, cache, "distribution:3", func() (*result, error) {
		require.NoError(t, cache.InvalidateAll(ctx))
		return &result{Total: 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Total)

	loads := 0
	second, err := cached(ctx, cache, "distribution:3", func() (*result, error) {
		loads++
		return &result{Total: 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Total)
	assert.Equal(t, 1, loads)
	assert.Zero(t, cache.hits)
}

func TestCached_GenerationFailureSkipsTheCache(t *testing.T) {
	cache := newMapCache()
	cache.failGen = errors.New("redis down")

	res, err := cached(context.Background(), cache, "k", func() (*int, error) {
		n := 7
		return &n, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, *res)
	assert.Zero(t, cache.gets)
	assert.Zero(t, cache.sets)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRENDS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetTierTrends(t *testing.T) {
	f := newDashboardFixture(t)
	start := week("2025-06-02")
	for i := 0; i < 10; i++ {
		w := timeutil.FormatDate(timeutil.AddWeeks(start, i))
		f.put(t, f.g3a, assessment.SubjectReading, w, counts(i, 1, 0, 0))
		f.put(t, f.g3b, assessment.SubjectReading, w, counts(1, 0, 0, 1))
	}
	f.put(t, f.g3a, assessment.SubjectMath, "2025-08-25", counts(5, 0, 0, 0))

	h := NewGetTierTrendsHandler(f.r, f.store, nil)
	ctx := context.Background()

	t.Run("defaults to eight weeks ending at latest data", func(t *testing.T) {
		res, err := h.Handle(ctx, GetTierTrendsQuery{Grade: "3", Subject: "Reading"})
		require.NoError(t, err)

		// Latest week with data in the grade is 2025-08-25 (math).
		assert.Equal(t, "2025-08-25", res.To)
		assert.Equal(t, "2025-07-07", res.From)
		require.Len(t, res.Points, 5)
		assert.Equal(t, "2025-07-07", res.Points[0].WeekStart)
		assert.Equal(t, "2025-08-04", res.Points[4].WeekStart)

		// Both classrooms are summed.
		assert.Equal(t, counts(6, 1, 0, 1), res.Points[0].TierCounts)
	})

	t.Run("explicit range on one classroom", func(t *testing.T) {
		res, err := h.Handle(ctx, GetTierTrendsQuery{
			Grade: "3", Classroom: "G3-A", Subject: "READING",
			From: week("2025-06-04"), To: week("2025-06-16"),
		})
		require.NoError(t, err)
		require.Len(t, res.Points, 3)
		assert.Equal(t, "2025-06-02", res.Points[0].WeekStart)
		assert.Equal(t, counts(0, 1, 0, 0), res.Points[0].TierCounts)
		assert.Equal(t, 100.0, res.Points[0].OrangePct)
	})

	t.Run("ascending order", func(t *testing.T) {
		res, err := h.Handle(ctx, GetTierTrendsQuery{Grade: "3", Subject: "Reading", From: week("2025-06-02"), To: week("2025-08-04")})
		require.NoError(t, err)
		require.Len(t, res.Points, 10)
		for i := 1; i < len(res.Points); i++ {
			assert.Less(t, res.Points[i-1].WeekStart, res.Points[i].WeekStart)
		}
	})

	t.Run("from after the latest data without to", func(t *testing.T) {
		res, err := h.Handle(ctx, GetTierTrendsQuery{Grade: "3", Subject: "Reading", From: week("2025-09-15")})
		require.NoError(t, err)
		assert.Empty(t, res.Points)
		assert.Equal(t, "2025-09-15", res.From)
		assert.Empty(t, res.To)
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := h.Handle(ctx, GetTierTrendsQuery{Grade: "3", Subject: "Math", From: week("2025-08-25"), To: week("2025-08-18")})
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("subject is required", func(t *testing.T) {
		_, err := h.Handle(ctx, GetTierTrendsQuery{Grade: "3"})
		assert.ErrorIs(t, err, shared.ErrInvalidSubject)
	})
}

func TestGetTierTrends_NoData(t *testing.T) {
	f := newDashboardFixture(t)
	h := NewGetTierTrendsHandler(f.r, f.store, nil)

	res, err := h.Handle(context.Background(), GetTierTrendsQuery{Grade: "3", Subject: "Math"})
	require.NoError(t, err)
	assert.Empty(t, res.Points)
	assert.NotNil(t, res.Points)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSROOM ROLLUP
// ══════════════════════════════════════════════════════════════════════════════

func TestGetClassroomRollup(t *testing.T) {
	f := newDashboardFixture(t)
	f.put(t, f.g3b, assessment.SubjectMath, "2025-08-25", counts(1, 1, 1, 1))
	f.put(t, f.g3a, assessment.SubjectMath, "2025-08-25", counts(3, 0, 0, 1))
	f.put(t, f.g3a, assessment.SubjectReading, "2025-08-25", counts(0, 0, 0, 9))
	f.put(t, f.other, assessment.SubjectMath, "2025-08-25", counts(9, 0, 0, 0))

	h := NewGetClassroomRollupHandler(f.r, f.store, nil)
	res, err := h.Handle(context.Background(), GetClassroomRollupQuery{Grade: "3", Subject: "Math", WeekStart: week("2025-08-29")})
	require.NoError(t, err)

	assert.Equal(t, "2025-08-25", res.WeekStart)
	require.Len(t, res.Classrooms, 3)

	assert.Equal(t, "G3-A", res.Classrooms[0].Classroom)
	assert.Equal(t, 75.0, res.Classrooms[0].OnTrackPct)
	assert.Equal(t, 4, res.Classrooms[0].Total)

	assert.Equal(t, "G3-B", res.Classrooms[1].Classroom)
	assert.Equal(t, 25.0, res.Classrooms[1].OnTrackPct)

	assert.Equal(t, "G3-C", res.Classrooms[2].Classroom)
	assert.Zero(t, res.Classrooms[2].Total)
	assert.Zero(t, res.Classrooms[2].OnTrackPct)
}

// ══════════════════════════════════════════════════════════════════════════════
// UPLOADS
// ══════════════════════════════════════════════════════════════════════════════

func TestListUploads(t *testing.T) {
	store := memory.NewStore()
	for _, id := range []string{"u1", "u2", "u3"} {
		require.NoError(t, store.Append(context.Background(), &upload.AuditEntry{ID: id, Status: upload.StatusComplete}))
	}

	h := NewListUploadsHandler(store)

	res, err := h.Handle(context.Background(), ListUploadsQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Uploads, 2)
	assert.Equal(t, "u3", res.Uploads[0].ID)
	assert.Equal(t, "u2", res.Uploads[1].ID)

	res, err = h.Handle(context.Background(), ListUploadsQuery{})
	require.NoError(t, err)
	assert.Len(t, res.Uploads, 3)

	_, err = h.Handle(context.Background(), ListUploadsQuery{Limit: -1})
	assert.True(t, shared.IsValidation(err))
}
