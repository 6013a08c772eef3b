package upload

import (
	"fmt"
	"strings"

	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INGESTION ERROR TAXONOMY
// Only FileFormatError stops a batch. The others are recorded and the batch
// moves on to the next row.
// ══════════════════════════════════════════════════════════════════════════════

// FieldError is one failed check on one column.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RowValidationError collects every schema or range failure of a row.
type RowValidationError struct {
	Row    int
	Fields []FieldError
}

func (e *RowValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return fmt.Sprintf("Row %d: %s", e.Row, strings.Join(msgs, "; "))
}

func (e *RowValidationError) Unwrap() error { return shared.ErrValidation }

// StudentNotFoundError means neither the external ID nor the exact name
// resolved to a student in the row's grade.
type StudentNotFoundError struct {
	Row       int
	Name      string
	Grade     string
	Classroom string
}

func (e *StudentNotFoundError) Error() string {
	return fmt.Sprintf("Row %d: no student named %q in grade %s", e.Row, e.Name, e.Grade)
}

func (e *StudentNotFoundError) Unwrap() error { return shared.ErrNotFound }

// Unmatched converts the error into its reported form.
func (e *StudentNotFoundError) Unmatched() UnmatchedStudent {
	return UnmatchedStudent{Name: e.Name, Grade: e.Grade, Classroom: e.Classroom}
}

// PersistenceError means a store write or read failed for a row or group.
// That contribution is lost; the batch continues.
type PersistenceError struct {
	Row int // 0 when the failure is not tied to one row
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("Row %d: could not save %s: %v", e.Row, e.Op, e.Err)
	}
	return fmt.Sprintf("could not save %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{shared.ErrPersistence, e.Err} }

// FileFormatError means the workbook cannot be processed at all.
type FileFormatError struct {
	Reason string
	Err    error
}

func (e *FileFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("file format: %s: %v", e.Reason, e.Err)
	}
	return "file format: " + e.Reason
}

func (e *FileFormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{shared.ErrInvalidFormat, e.Err}
	}
	return []error{shared.ErrInvalidFormat}
}

// NewFileFormatError creates a FileFormatError.
func NewFileFormatError(reason string, err error) *FileFormatError {
	return &FileFormatError{Reason: reason, Err: err}
}
