package upload

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
)

func newTestBatch() *Batch {
	return NewBatch("u-1", "teacher-7", "week35.xlsx", 2048, "abc", time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC))
}

func walkToAggregated(t *testing.T, b *Batch) {
	t.Helper()
	for _, s := range []Stage{StageParsed, StageValidated, StageGrouped, StageAggregated} {
		require.NoError(t, b.Advance(s))
	}
}

func TestBatch_StagesMustBeInOrder(t *testing.T) {
	b := newTestBatch()

	err := b.Advance(StageGrouped)
	assert.ErrorIs(t, err, shared.ErrStateTransition)
	assert.Equal(t, StageReceived, b.Stage())

	walkToAggregated(t, b)
	require.NoError(t, b.Advance(StageAuditLogged))
	assert.ErrorIs(t, b.Advance(StageAuditLogged), shared.ErrInvalidState)
}

func TestBatch_AbortJumpsToAudit(t *testing.T) {
	b := newTestBatch()
	b.Abort(NewFileFormatError("workbook has no sheets", nil))

	require.NoError(t, b.Advance(StageAuditLogged))
	res := b.Result()
	assert.Equal(t, StatusFailed, res.Status)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"file format: workbook has no sheets"}, res.Errors)
}

func TestBatch_Status(t *testing.T) {
	tests := []struct {
		name  string
		group GroupOutcome
		rowErr bool
		want  Status
	}{
		{"all written", GroupOutcome{Processed: 3}, false, StatusComplete},
		{"row error", GroupOutcome{Processed: 3}, true, StatusPartial},
		{"unmatched", GroupOutcome{Processed: 1, Unmatched: []UnmatchedStudent{{Name: "Bo"}}}, false, StatusPartial},
		{"nothing written", GroupOutcome{Unmatched: []UnmatchedStudent{{Name: "Bo"}}}, false, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBatch()
			if tt.rowErr {
				b.RecordRowError(errors.New("Row 4: Score is required"))
			}
			g := tt.group
			b.Merge(&g)
			assert.Equal(t, tt.want, b.Status())
			assert.Equal(t, tt.want != StatusFailed, b.Result().Success)
		})
	}
}

func TestBatch_ConcludeExplainsSilentFailure(t *testing.T) {
	b := newTestBatch()
	b.Merge(&GroupOutcome{Unmatched: []UnmatchedStudent{{Name: "Bo", Grade: "3", Classroom: "G3-A"}}})

	assert.Equal(t, StatusFailed, b.Conclude())
	assert.Equal(t, []string{NoScoresWritten}, b.Result().Errors)
}

func TestBatch_ResultUsesEmptySlices(t *testing.T) {
	res := newTestBatch().Result()
	assert.NotNil(t, res.Errors)
	assert.NotNil(t, res.UnmatchedStudents)
}

func TestGroupOutcome(t *testing.T) {
	g := NewGroupOutcome("G3-A/MATH/2025-08-25")

	assert.Error(t, g.Advance(GroupScored))
	require.NoError(t, g.Advance(GroupMatched))
	require.NoError(t, g.Advance(GroupScored))
	require.NoError(t, g.Advance(GroupAggregated))

	g.Record(&StudentNotFoundError{Row: 3, Name: "Alice Johnson", Grade: "3", Classroom: "G3-A"})
	g.Record(&PersistenceError{Row: 4, Op: "score", Err: errors.New("deadlock")})

	assert.Equal(t, []UnmatchedStudent{{Name: "Alice Johnson", Grade: "3", Classroom: "G3-A"}}, g.Unmatched)
	assert.Equal(t, []string{"Row 4: could not save score: deadlock"}, g.Errors)
}

func TestErrorKinds(t *testing.T) {
	assert.ErrorIs(t, &RowValidationError{Row: 2}, shared.ErrValidation)
	assert.ErrorIs(t, &StudentNotFoundError{Row: 2}, shared.ErrNotFound)
	assert.ErrorIs(t, &PersistenceError{Op: "score", Err: errors.New("x")}, shared.ErrPersistence)
	assert.ErrorIs(t, NewFileFormatError("empty", nil), shared.ErrInvalidFormat)

	rowErr := &RowValidationError{Row: 5, Fields: []FieldError{
		{Field: "Score", Message: "Score must be a number between 0 and 100"},
		{Field: "Subject", Message: "Subject must be Math or Reading"},
	}}
	assert.Equal(t, "Row 5: Score must be a number between 0 and 100; Subject must be Math or Reading", rowErr.Error())
}

func TestAuditEntry_TruncatesErrorText(t *testing.T) {
	b := newTestBatch()
	for i := 0; i < 500; i++ {
		b.RecordRowError(fmt.Errorf("Row %d: Score must be a number between 0 and 100", i+2))
	}

	entry := b.AuditEntry(time.Now())
	assert.LessOrEqual(t, len(entry.ErrorText), MaxErrorTextLength+len("…"))
	assert.True(t, strings.HasSuffix(entry.ErrorText, "…"))
	assert.Equal(t, StatusFailed, entry.Status)
}
