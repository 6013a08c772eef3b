package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/schoolpulse/assessment-hub/internal/domain/roster"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

// StudentDirectory implements roster.Directory for PostgreSQL.
type StudentDirectory struct {
	conn *Connection
}

// NewStudentDirectory creates a new StudentDirectory.
func NewStudentDirectory(conn *Connection) *StudentDirectory {
	return &StudentDirectory{conn: conn}
}

var _ roster.Directory = (*StudentDirectory)(nil)

// FindByExternalID returns the student of the grade with the given school id.
func (r *StudentDirectory) FindByExternalID(ctx context.Context, gradeLevelID, externalID string) (*roster.Student, error) {
	query := `
		SELECT id, COALESCE(external_id, ''), full_name, grade_level_id
		FROM students
		WHERE grade_level_id = $1 AND external_id = $2
	`

	var s roster.Student
	err := r.conn.QueryRow(ctx, query, gradeLevelID, externalID).
		Scan(&s.ID, &s.ExternalID, &s.FullName, &s.GradeLevelID)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("postgres: find student by external id: %w", err)
	}
	return &s, nil
}

// FindByFullName returns every student of the grade whose name is exactly
// fullName. Comparison is byte-for-byte.
func (r *StudentDirectory) FindByFullName(ctx context.Context, gradeLevelID, fullName string) ([]*roster.Student, error) {
	query := `
		SELECT id, COALESCE(external_id, ''), full_name, grade_level_id
		FROM students
		WHERE grade_level_id = $1 AND full_name = $2
		ORDER BY id
	`

	rows, err := r.conn.Query(ctx, query, gradeLevelID, fullName)
	if err != nil {
		return nil, fmt.Errorf("postgres: find students by name: %w", err)
	}
	defer rows.Close()

	var out []*roster.Student
	for rows.Next() {
		var s roster.Student
		if err := rows.Scan(&s.ID, &s.ExternalID, &s.FullName, &s.GradeLevelID); err != nil {
			return nil, fmt.Errorf("postgres: scan student: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSROOM REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ClassroomRepository implements roster.ClassroomRepository for PostgreSQL.
type ClassroomRepository struct {
	conn *Connection
}

// NewClassroomRepository creates a new ClassroomRepository.
func NewClassroomRepository(conn *Connection) *ClassroomRepository {
	return &ClassroomRepository{conn: conn}
}

var _ roster.ClassroomRepository = (*ClassroomRepository)(nil)

const classroomColumns = `id, code, name, grade_level_id`

// GetByCode returns a classroom by its school-wide code.
func (r *ClassroomRepository) GetByCode(ctx context.Context, code string) (*roster.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` FROM classrooms WHERE code = $1`
	return r.scanClassroom(r.conn.QueryRow(ctx, query, code))
}

// GetByID returns a classroom by internal ID.
func (r *ClassroomRepository) GetByID(ctx context.Context, id string) (*roster.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` FROM classrooms WHERE id = $1`
	return r.scanClassroom(r.conn.QueryRow(ctx, query, id))
}

// ListByGradeLevel returns the classrooms of a grade ordered by code.
func (r *ClassroomRepository) ListByGradeLevel(ctx context.Context, gradeLevelID string) ([]*roster.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` FROM classrooms WHERE grade_level_id = $1 ORDER BY code`

	rows, err := r.conn.Query(ctx, query, gradeLevelID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list classrooms: %w", err)
	}
	defer rows.Close()

	var out []*roster.Classroom
	for rows.Next() {
		c, err := r.scanClassroom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ClassroomRepository) scanClassroom(row pgx.Row) (*roster.Classroom, error) {
	var c roster.Classroom
	if err := row.Scan(&c.ID, &c.Code, &c.Name, &c.GradeLevelID); err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrClassroomNotFound
		}
		return nil, fmt.Errorf("postgres: scan classroom: %w", err)
	}
	return &c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE LEVEL REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// GradeLevelRepository implements roster.GradeLevelRepository for PostgreSQL.
type GradeLevelRepository struct {
	conn *Connection
}

// NewGradeLevelRepository creates a new GradeLevelRepository.
func NewGradeLevelRepository(conn *Connection) *GradeLevelRepository {
	return &GradeLevelRepository{conn: conn}
}

var _ roster.GradeLevelRepository = (*GradeLevelRepository)(nil)

// GetByID returns a grade level by internal ID.
func (r *GradeLevelRepository) GetByID(ctx context.Context, id string) (*roster.GradeLevel, error) {
	query := `SELECT id, code, name FROM grade_levels WHERE id = $1`
	return r.scan(r.conn.QueryRow(ctx, query, id))
}

// Resolve finds the grade level whose code or name equals label. Codes win
// over names when both match different rows.
func (r *GradeLevelRepository) Resolve(ctx context.Context, label string) (*roster.GradeLevel, error) {
	query := `
		SELECT id, code, name
		FROM grade_levels
		WHERE code = $1 OR name = $1
		ORDER BY (code = $1) DESC, code
		LIMIT 1
	`
	return r.scan(r.conn.QueryRow(ctx, query, strings.TrimSpace(label)))
}

func (r *GradeLevelRepository) scan(row pgx.Row) (*roster.GradeLevel, error) {
	var g roster.GradeLevel
	if err := row.Scan(&g.ID, &g.Code, &g.Name); err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrGradeLevelNotFound
		}
		return nil, fmt.Errorf("postgres: scan grade level: %w", err)
	}
	return &g, nil
}
