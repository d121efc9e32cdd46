package models

import (
	"errors"
	"fmt"
)

// NotFoundError reports a missing entity reference.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError reports bad input for an entity field.
type ValidationError struct {
	Entity  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s", e.Entity, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s %s", e.Entity, e.Field, e.Message)
}

// TransitionError reports an illegal state transition.
type TransitionError struct {
	Entity    string
	ID        string
	Current   string
	Requested string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot move from %s to %s", e.Entity, e.ID, e.Current, e.Requested)
}

// ConflictError reports a concurrent modification. Callers retry with fresh state.
type ConflictError struct {
	Entity string
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: conflict: %s", e.Entity, e.ID, e.Reason)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsTransition reports whether err wraps a TransitionError.
func IsTransition(err error) bool {
	var target *TransitionError
	return errors.As(err, &target)
}

// IsConflict reports whether err wraps a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
