// Package roster holds the read-only view of the school roster: grade levels,
// classrooms and students. Roster records are maintained elsewhere; ingestion
// only looks them up and never creates them.
package roster

import (
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE LEVEL
// ══════════════════════════════════════════════════════════════════════════════

// GradeLevel is a year group such as "K" or "3".
type GradeLevel struct {
	ID string

	// Code is the short label teachers type into workbooks ("3", "K").
	Code string

	// Name is the display name ("Grade 3", "Kindergarten").
	Name string
}

// Matches reports whether a workbook label refers to this grade level.
// The label must equal the code or the name after trimming surrounding
// whitespace.
func (g *GradeLevel) Matches(label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	return label == g.Code || label == g.Name
}

// Label returns the label used in reports.
func (g *GradeLevel) Label() string {
	if g.Code != "" {
		return g.Code
	}
	return g.Name
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSROOM
// ══════════════════════════════════════════════════════════════════════════════

// Classroom is a homeroom within a grade level.
type Classroom struct {
	ID           string
	Code         string // e.g. "G3-A", unique across the school
	Name         string
	GradeLevelID string
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is the canonical identity record a score row resolves to.
type Student struct {
	ID string

	// ExternalID is the district/SIS identifier. Optional; unique when set.
	ExternalID string

	// FullName is compared byte-for-byte during name matching.
	FullName string

	GradeLevelID string
}

// HasExternalID reports whether the student carries an SIS identifier.
func (s *Student) HasExternalID() bool {
	return s.ExternalID != ""
}
