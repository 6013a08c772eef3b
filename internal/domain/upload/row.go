// Package upload models one workbook upload: the raw rows it carries, the
// batch state machine that processes them, the result reported back to the
// uploader, and the audit trail of every attempt.
package upload

// Workbook column names, as they appear in the header row.
const (
	ColumnWeekStart     = "WeekStart"
	ColumnClassroomCode = "ClassroomCode"
	ColumnSubject       = "Subject"
	ColumnStudentName   = "StudentName"
	ColumnStudentID     = "StudentID"
	ColumnGradeLevel    = "GradeLevel"
	ColumnScore         = "Score"
)

// Columns lists every column in template order.
var Columns = []string{
	ColumnWeekStart,
	ColumnClassroomCode,
	ColumnSubject,
	ColumnStudentName,
	ColumnStudentID,
	ColumnGradeLevel,
	ColumnScore,
}

// RequiredColumns must be present in the header row.
var RequiredColumns = []string{
	ColumnWeekStart,
	ColumnClassroomCode,
	ColumnSubject,
	ColumnStudentName,
	ColumnScore,
}

// RawRow is one data row as read from the sheet, keyed by column name.
// Values are string, float64, int, int64 or time.Time; absent cells are
// missing from the map.
type RawRow struct {
	// Number is the 1-based sheet row; the header is row 1.
	Number int
	Fields map[string]any
}

// Get returns the value for a column, or nil.
func (r RawRow) Get(column string) any {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[column]
}
