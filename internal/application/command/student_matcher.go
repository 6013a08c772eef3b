package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/schoolpulse/assessment-hub/internal/domain/roster"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT MATCHER
// Resolves a score row to a roster student: external ID first, then exact
// full name, both within the row's grade. An unmatched real student is
// preferred over merging two different students, so there is no fuzzy step.
// ══════════════════════════════════════════════════════════════════════════════

// MatchMethod says which rule resolved the student.
type MatchMethod string

const (
	MatchByExternalID MatchMethod = "external_id"
	MatchByName       MatchMethod = "full_name"
)

// Match is a resolved student.
type Match struct {
	Student *roster.Student
	Method  MatchMethod
}

// StudentMatcher looks students up in the roster directory.
type StudentMatcher struct {
	directory roster.Directory
}

// NewStudentMatcher creates a new StudentMatcher.
func NewStudentMatcher(directory roster.Directory) *StudentMatcher {
	return &StudentMatcher{directory: directory}
}

// Match resolves row within grade. It returns *upload.StudentNotFoundError
// when neither rule finds exactly one student, and *upload.PersistenceError
// when the directory itself fails.
func (m *StudentMatcher) Match(ctx context.Context, row *ScoreRow, grade *roster.GradeLevel) (*Match, error) {
	if row.StudentID != "" {
		s, err := m.directory.FindByExternalID(ctx, grade.ID, row.StudentID)
		switch {
		case err == nil:
			return &Match{Student: s, Method: MatchByExternalID}, nil
		case !errors.Is(err, shared.ErrNotFound):
			return nil, &upload.PersistenceError{Row: row.Number, Op: "student lookup", Err: err}
		}
		// Fall through to the name rule.
	}

	candidates, err := m.directory.FindByFullName(ctx, grade.ID, row.StudentName)
	if err != nil {
		return nil, &upload.PersistenceError{Row: row.Number, Op: "student lookup", Err: err}
	}
	if len(candidates) == 1 {
		return &Match{Student: candidates[0], Method: MatchByName}, nil
	}

	return nil, &upload.StudentNotFoundError{
		Row:       row.Number,
		Name:      row.StudentName,
		Grade:     grade.Label(),
		Classroom: row.ClassroomCode,
	}
}

// String describes a match for logs.
func (m *Match) String() string {
	return fmt.Sprintf("%s via %s", m.Student.ID, m.Method)
}
