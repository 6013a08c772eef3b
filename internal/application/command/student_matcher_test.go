package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpulse/assessment-hub/internal/domain/roster"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/persistence/memory"
)

type brokenDirectory struct{ err error }

func (d brokenDirectory) FindByExternalID(ctx context.Context, gradeLevelID, externalID string) (*roster.Student, error) {
	return nil, d.err
}

func (d brokenDirectory) FindByFullName(ctx context.Context, gradeLevelID, fullName string) ([]*roster.Student, error) {
	return nil, d.err
}

func TestStudentMatcher(t *testing.T) {
	store := memory.NewStore()
	grade := store.AddGradeLevel(roster.GradeLevel{Code: "3", Name: "Grade 3"})
	other := store.AddGradeLevel(roster.GradeLevel{Code: "4", Name: "Grade 4"})

	alice := store.AddStudent(roster.Student{ExternalID: "S-001", FullName: "Alice Johnson", GradeLevelID: grade.ID})
	bob := store.AddStudent(roster.Student{FullName: "Bob Smith", GradeLevelID: grade.ID})
	store.AddStudent(roster.Student{FullName: "Sam Lee", GradeLevelID: grade.ID})
	store.AddStudent(roster.Student{FullName: "Sam Lee", GradeLevelID: grade.ID})
	store.AddStudent(roster.Student{ExternalID: "S-900", FullName: "Dan Brown", GradeLevelID: other.ID})

	m := NewStudentMatcher(store)
	ctx := context.Background()

	tests := []struct {
		name       string
		row        ScoreRow
		wantID     string
		wantMethod MatchMethod
	}{
		{"external id", ScoreRow{StudentID: "S-001", StudentName: "Someone Else"}, alice.ID, MatchByExternalID},
		{"unknown id falls back to name", ScoreRow{StudentID: "S-404", StudentName: "Bob Smith"}, bob.ID, MatchByName},
		{"exact name", ScoreRow{StudentName: "Alice Johnson"}, alice.ID, MatchByName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := tt.row
			row.Number, row.ClassroomCode = 2, "G3-A"

			got, err := m.Match(ctx, &row, grade)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.Student.ID)
			assert.Equal(t, tt.wantMethod, got.Method)
		})
	}

	unmatched := []struct {
		name string
		row  ScoreRow
	}{
		{"name differs in case", ScoreRow{StudentName: "alice johnson"}},
		{"name has extra space", ScoreRow{StudentName: "Alice  Johnson"}},
		{"ambiguous name", ScoreRow{StudentName: "Sam Lee"}},
		{"student in another grade", ScoreRow{StudentID: "S-900", StudentName: "Dan Brown"}},
	}
	for _, tt := range unmatched {
		t.Run(tt.name, func(t *testing.T) {
			row := tt.row
			row.Number, row.ClassroomCode = 7, "G3-A"

			_, err := m.Match(ctx, &row, grade)
			var notFound *upload.StudentNotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, upload.UnmatchedStudent{Name: row.StudentName, Grade: "Grade 3", Classroom: "G3-A"}, notFound.Unmatched())
			assert.ErrorIs(t, err, shared.ErrNotFound)
		})
	}
}

func TestStudentMatcher_DirectoryFailure(t *testing.T) {
	m := NewStudentMatcher(brokenDirectory{err: errors.New("pool closed")})
	grade := &roster.GradeLevel{ID: "g", Code: "3", Name: "Grade 3"}

	for _, row := range []ScoreRow{
		{Number: 4, StudentID: "S-001", StudentName: "Alice"},
		{Number: 4, StudentName: "Alice"},
	} {
		_, err := m.Match(context.Background(), &row, grade)
		var perr *upload.PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, 4, perr.Row)
		assert.ErrorIs(t, err, shared.ErrPersistence)
	}
}
