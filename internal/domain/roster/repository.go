package roster

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Directory looks up students within a grade level.
type Directory interface {
	// FindByExternalID returns the student with this external ID in the grade.
	// Returns shared.ErrStudentNotFound when there is none.
	FindByExternalID(ctx context.Context, gradeLevelID, externalID string) (*Student, error)

	// FindByFullName returns every student in the grade whose full name is
	// exactly fullName. An empty slice means no match.
	FindByFullName(ctx context.Context, gradeLevelID, fullName string) ([]*Student, error)
}

// ClassroomRepository reads classrooms.
type ClassroomRepository interface {
	// GetByCode returns shared.ErrClassroomNotFound when the code is unknown.
	GetByCode(ctx context.Context, code string) (*Classroom, error)

	// GetByID returns shared.ErrClassroomNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*Classroom, error)

	// ListByGradeLevel returns the classrooms of a grade ordered by code.
	ListByGradeLevel(ctx context.Context, gradeLevelID string) ([]*Classroom, error)
}

// GradeLevelRepository reads grade levels.
type GradeLevelRepository interface {
	// GetByID returns shared.ErrGradeLevelNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*GradeLevel, error)

	// Resolve finds the grade level whose code or name equals label.
	// Returns shared.ErrGradeLevelNotFound when nothing matches.
	Resolve(ctx context.Context, label string) (*GradeLevel, error)
}
