package assessment

import (
	"strings"

	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
)

// Subject is the tested subject of an assessment.
type Subject string

const (
	SubjectMath    Subject = "MATH"
	SubjectReading Subject = "READING"
)

// Subjects lists the supported subjects.
var Subjects = []Subject{SubjectMath, SubjectReading}

// ParseSubject accepts "Math", "reading", " MATH " and the like.
func ParseSubject(s string) (Subject, error) {
	switch Subject(strings.ToUpper(strings.TrimSpace(s))) {
	case SubjectMath:
		return SubjectMath, nil
	case SubjectReading:
		return SubjectReading, nil
	}
	return "", shared.ErrInvalidSubject
}

// IsValid checks if the subject is supported.
func (s Subject) IsValid() bool {
	return s == SubjectMath || s == SubjectReading
}

// String returns the string representation.
func (s Subject) String() string {
	return string(s)
}

// Label is the spelling used in workbooks.
func (s Subject) Label() string {
	switch s {
	case SubjectMath:
		return "Math"
	case SubjectReading:
		return "Reading"
	}
	return string(s)
}
