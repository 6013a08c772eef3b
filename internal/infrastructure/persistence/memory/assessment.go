package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GROUP STORE
// ══════════════════════════════════════════════════════════════════════════════

// WithinGroup implements assessment.GroupStore. Writes are applied as they
// happen; an error from fn does not roll them back.
func (s *Store) WithinGroup(ctx context.Context, key assessment.GroupKey, fn func(ctx context.Context, w assessment.GroupWriter) error) error {
	lock, _ := s.groupLocks.LoadOrStore(key.String(), &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &groupWriter{s: s})
}

// ListGroupKeys implements assessment.GroupStore.
func (s *Store) ListGroupKeys(ctx context.Context, since time.Time) ([]assessment.GroupKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []assessment.GroupKey
	for _, a := range s.assessments {
		if a.WeekStart.Before(since) {
			continue
		}
		c, ok := s.classrooms[a.ClassroomID]
		if !ok {
			continue
		}
		keys = append(keys, assessment.GroupKey{
			GradeLevelID: c.GradeLevelID,
			ClassroomID:  a.ClassroomID,
			Subject:      a.Subject,
			WeekStart:    a.WeekStart,
		})
	}
	sortKeys(keys)
	return keys, nil
}

func sortKeys(keys []assessment.GroupKey) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if !a.WeekStart.Equal(b.WeekStart) {
			return a.WeekStart.Before(b.WeekStart)
		}
		if a.ClassroomID != b.ClassroomID {
			return a.ClassroomID < b.ClassroomID
		}
		return a.Subject < b.Subject
	})
}

type groupWriter struct {
	s *Store
}

func (w *groupWriter) UpsertAssessment(ctx context.Context, key assessment.GroupKey) (*assessment.Assessment, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	k := assessmentKey{subject: key.Subject, classroomID: key.ClassroomID, weekStart: key.WeekStart}
	now := w.s.now()
	if a, ok := w.s.assessments[k]; ok {
		a.UpdatedAt = now
		cp := *a
		return &cp, nil
	}

	a := &assessment.Assessment{
		ID:          uuid.NewString(),
		Subject:     key.Subject,
		ClassroomID: key.ClassroomID,
		WeekStart:   key.WeekStart,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	w.s.assessments[k] = a
	cp := *a
	return &cp, nil
}

func (w *groupWriter) FindAssessment(ctx context.Context, key assessment.GroupKey) (*assessment.Assessment, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()

	k := assessmentKey{subject: key.Subject, classroomID: key.ClassroomID, weekStart: key.WeekStart}
	if a, ok := w.s.assessments[k]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, shared.ErrAssessmentNotFound
}

func (w *groupWriter) UpsertScore(ctx context.Context, rec *assessment.ScoreRecord) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	k := scoreKey{studentID: rec.StudentID, assessmentID: rec.AssessmentID}
	stored := *rec
	if existing, ok := w.s.scores[k]; ok {
		stored.ID = existing.ID
	} else if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.UpdatedAt = w.s.now()
	w.s.scores[k] = &stored
	rec.ID = stored.ID
	return nil
}

func (w *groupWriter) ListScores(ctx context.Context, assessmentID string) ([]*assessment.ScoreRecord, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()

	var out []*assessment.ScoreRecord
	for k, rec := range w.s.scores {
		if k.assessmentID == assessmentID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (w *groupWriter) UpsertAggregate(ctx context.Context, agg *assessment.WeeklyAggregate) error {
	if err := agg.Validate(); err != nil {
		return err
	}

	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	k := aggregateKey{
		gradeLevelID: agg.GradeLevelID,
		classroomID:  agg.ClassroomID,
		subject:      agg.Subject,
		weekStart:    agg.WeekStart,
	}
	stored := *agg
	if existing, ok := w.s.aggregates[k]; ok {
		stored.ID = existing.ID
	} else if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	w.s.aggregates[k] = &stored
	agg.ID = stored.ID
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE READS
// ══════════════════════════════════════════════════════════════════════════════

// ListAggregates implements assessment.AggregateReader.
func (s *Store) ListAggregates(ctx context.Context, f assessment.AggregateFilter) ([]*assessment.WeeklyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*assessment.WeeklyAggregate
	for _, a := range s.aggregates {
		if f.GradeLevelID != "" && a.GradeLevelID != f.GradeLevelID {
			continue
		}
		if f.ClassroomID != "" && a.ClassroomID != f.ClassroomID {
			continue
		}
		if f.Subject != "" && a.Subject != f.Subject {
			continue
		}
		if !f.From.IsZero() && a.WeekStart.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && a.WeekStart.After(f.To) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekStart.Equal(out[j].WeekStart) {
			return out[i].WeekStart.Before(out[j].WeekStart)
		}
		if out[i].ClassroomID != out[j].ClassroomID {
			return out[i].ClassroomID < out[j].ClassroomID
		}
		return out[i].Subject < out[j].Subject
	})
	return out, nil
}

// LatestWeek implements assessment.AggregateReader.
func (s *Store) LatestWeek(ctx context.Context, gradeLevelID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, a := range s.aggregates {
		if a.GradeLevelID == gradeLevelID && a.WeekStart.After(latest) {
			latest = a.WeekStart
		}
	}
	return latest, nil
}

// ScoreCount returns how many score records an assessment group holds.
func (s *Store) ScoreCount(key assessment.GroupKey) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assessments[assessmentKey{subject: key.Subject, classroomID: key.ClassroomID, weekStart: key.WeekStart}]
	if !ok {
		return 0
	}
	n := 0
	for k := range s.scores {
		if k.assessmentID == a.ID {
			n++
		}
	}
	return n
}
