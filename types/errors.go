package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel domain errors. Handlers translate these into HTTP responses.
var (
	// ErrUnauthorized means the actor lacks the capability for the action.
	// It maps to 403, never to 404.
	ErrUnauthorized = errors.New("unauthorized action")

	// ErrNotFound means the requested id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrNoActiveTravelerProfile means the actor has no active traveler to
	// file a trip request under.
	ErrNoActiveTravelerProfile = errors.New("user does not have an active traveler profile")

	// ErrInvalidCredentials is returned by login when email or password do not match.
	ErrInvalidCredentials = errors.New("the provided credentials are incorrect")

	// ErrConflict means a write kept losing to concurrent writers.
	ErrConflict = errors.New("resource was modified concurrently")
)

// FieldError describes a single failed constraint on an input field.
type FieldError struct {
	// Field is the wire name of the offending field (e.g. "return_datetime").
	Field string `json:"field"`

	// Rule names the constraint that failed (e.g. "required", "after").
	Rule string `json:"rule"`

	// Message is a human-readable description of the failure.
	Message string `json:"message"`
}

// ValidationError collects every failed constraint of an input so they can be
// reported together.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Add records a failed constraint.
func (e *ValidationError) Add(field, rule, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Rule: rule, Message: message})
}

// Has reports whether field already failed a constraint.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// OrNil returns e when it holds at least one failure and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewFieldError is a shorthand for a ValidationError with a single failure.
func NewFieldError(field, rule, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, rule, message)
	return v
}

// InvalidStateTransitionError is returned when an action is not legal for the
// current status of a trip request.
type InvalidStateTransitionError struct {
	Action string
	From   TripStatus
	To     TripStatus
}

func (e *InvalidStateTransitionError) Error() string {
	if e.To != "" {
		return fmt.Sprintf("cannot change trip request status from %s to %s", e.From, e.To)
	}
	return fmt.Sprintf("cannot %s trip request with status %s", e.Action, e.From)
}

// HasDependentsError blocks a hard delete while dependent records exist.
type HasDependentsError struct {
	Entity string
	Count  int
}

func (e *HasDependentsError) Error() string {
	return fmt.Sprintf("cannot delete %s with %d associated trip requests", e.Entity, e.Count)
}

// HasPendingDependentsError blocks a deactivation while requested trip
// requests exist.
type HasPendingDependentsError struct {
	Entity string
	Count  int
}

func (e *HasPendingDependentsError) Error() string {
	return fmt.Sprintf("cannot deactivate %s with %d pending trip requests", e.Entity, e.Count)
}
