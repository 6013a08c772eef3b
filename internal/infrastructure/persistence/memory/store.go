// Package memory is an in-process implementation of every storage
// collaborator. It backs the development server when no database is
// configured and stands in for Postgres in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/roster"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
)

// Store holds all tables behind one RWMutex. Group critical sections use a
// separate per-key mutex so concurrent groups do not block each other longer
// than a single table access.
type Store struct {
	mu sync.RWMutex

	gradeLevels map[string]*roster.GradeLevel
	classrooms  map[string]*roster.Classroom
	students    map[string]*roster.Student

	assessments map[assessmentKey]*assessment.Assessment
	scores      map[scoreKey]*assessment.ScoreRecord
	aggregates  map[aggregateKey]*assessment.WeeklyAggregate
	audit       []*upload.AuditEntry

	groupLocks sync.Map // string -> *sync.Mutex

	now func() time.Time
}

type assessmentKey struct {
	subject     assessment.Subject
	classroomID string
	weekStart   time.Time
}

type scoreKey struct {
	studentID    string
	assessmentID string
}

type aggregateKey struct {
	gradeLevelID string
	classroomID  string
	subject      assessment.Subject
	weekStart    time.Time
}

var (
	_ roster.Directory           = (*Store)(nil)
	_ roster.ClassroomRepository = (*Store)(nil)
	_ assessment.GroupStore      = (*Store)(nil)
	_ assessment.AggregateReader = (*Store)(nil)
	_ upload.AuditLog            = (*Store)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		gradeLevels: make(map[string]*roster.GradeLevel),
		classrooms:  make(map[string]*roster.Classroom),
		students:    make(map[string]*roster.Student),
		assessments: make(map[assessmentKey]*assessment.Assessment),
		scores:      make(map[scoreKey]*assessment.ScoreRecord),
		aggregates:  make(map[aggregateKey]*assessment.WeeklyAggregate),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SEEDING
// ══════════════════════════════════════════════════════════════════════════════

// AddGradeLevel stores a grade level, assigning an ID when empty.
func (s *Store) AddGradeLevel(g roster.GradeLevel) *roster.GradeLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	s.gradeLevels[g.ID] = &g
	return &g
}

// AddClassroom stores a classroom, assigning an ID when empty.
func (s *Store) AddClassroom(c roster.Classroom) *roster.Classroom {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.classrooms[c.ID] = &c
	return &c
}

// AddStudent stores a student, assigning an ID when empty.
func (s *Store) AddStudent(st roster.Student) *roster.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	s.students[st.ID] = &st
	return &st
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER
// ══════════════════════════════════════════════════════════════════════════════

// FindByExternalID implements roster.Directory.
func (s *Store) FindByExternalID(ctx context.Context, gradeLevelID, externalID string) (*roster.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.students {
		if st.GradeLevelID == gradeLevelID && st.ExternalID != "" && st.ExternalID == externalID {
			cp := *st
			return &cp, nil
		}
	}
	return nil, shared.ErrStudentNotFound
}

// FindByFullName implements roster.Directory.
func (s *Store) FindByFullName(ctx context.Context, gradeLevelID, fullName string) ([]*roster.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*roster.Student
	for _, st := range s.students {
		if st.GradeLevelID == gradeLevelID && st.FullName == fullName {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetByCode implements roster.ClassroomRepository.
func (s *Store) GetByCode(ctx context.Context, code string) (*roster.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.classrooms {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, shared.ErrClassroomNotFound
}

// GetByID implements roster.ClassroomRepository.
func (s *Store) GetByID(ctx context.Context, id string) (*roster.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.classrooms[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, shared.ErrClassroomNotFound
}

// ListByGradeLevel implements roster.ClassroomRepository.
func (s *Store) ListByGradeLevel(ctx context.Context, gradeLevelID string) ([]*roster.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*roster.Classroom
	for _, c := range s.classrooms {
		if c.GradeLevelID == gradeLevelID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// GradeLevels exposes the grade level repository. Store cannot implement
// both GetByID methods directly.
func (s *Store) GradeLevels() roster.GradeLevelRepository {
	return gradeLevelRepo{s}
}

type gradeLevelRepo struct{ s *Store }

func (r gradeLevelRepo) GetByID(ctx context.Context, id string) (*roster.GradeLevel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if g, ok := r.s.gradeLevels[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, shared.ErrGradeLevelNotFound
}

func (r gradeLevelRepo) Resolve(ctx context.Context, label string) (*roster.GradeLevel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	label = strings.TrimSpace(label)

	// A code match wins over a name match.
	var byName *roster.GradeLevel
	for _, g := range r.s.gradeLevels {
		if g.Code == label {
			cp := *g
			return &cp, nil
		}
		if g.Matches(label) && byName == nil {
			byName = g
		}
	}
	if byName != nil {
		cp := *byName
		return &cp, nil
	}
	return nil, shared.ErrGradeLevelNotFound
}
