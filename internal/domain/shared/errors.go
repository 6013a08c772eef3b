// Package shared contains common domain types, errors and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound  = errors.New("entity not found")
	ErrAmbiguous = errors.New("more than one entity matches")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Storage errors
	ErrPersistence = errors.New("persistence error")
	ErrConflict    = errors.New("conflicting write")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "roster", "assessment", "upload"
	Op      string // Operation that failed, e.g., "Classify", "Upsert"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Roster domain errors
var (
	ErrStudentNotFound    = NewDomainError("roster", "FindStudent", ErrNotFound, "student not found")
	ErrClassroomNotFound  = NewDomainError("roster", "FindClassroom", ErrNotFound, "classroom not found")
	ErrGradeLevelNotFound = NewDomainError("roster", "FindGradeLevel", ErrNotFound, "grade level not found")
	ErrAmbiguousStudent   = NewDomainError("roster", "FindStudent", ErrAmbiguous, "several students share this name")
)

// Assessment domain errors
var (
	ErrAssessmentNotFound = NewDomainError("assessment", "Find", ErrNotFound, "assessment not found")
	ErrInvalidSubject     = NewDomainError("assessment", "ParseSubject", ErrInvalidInput, "subject must be Math or Reading")
	ErrScoreOutOfRange    = NewDomainError("assessment", "Validate", ErrValueOutOfRange, "score must be between 0 and 100")
	ErrAggregateMismatch  = NewDomainError("assessment", "Validate", ErrInvalidState, "tier counts do not sum to total")
)

// Upload domain errors
var (
	ErrBatchTransition = NewDomainError("upload", "Advance", ErrStateTransition, "invalid batch stage transition")
	ErrBatchFinished   = NewDomainError("upload", "Advance", ErrInvalidState, "batch already finished")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsPersistence checks if the error came from the storage layer.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrConflict)
}
