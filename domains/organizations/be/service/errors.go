package service

import (
	"fmt"
	"strings"
)

// ConstraintError reports invalid field values on an organization. It is
// recoverable and surfaced to the caller with the full violation list.
type ConstraintError struct {
	Violations []Violation
}

func (e *ConstraintError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.String())
	}
	return "organization has invalid values: " + strings.Join(msgs, "; ")
}

// ConflictError reports a duplicate name or alias.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("organization with %s %q already exists", e.Field, e.Value)
}

// NotFoundError reports an unknown organization id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("organization with id %q not found", e.ID)
}

// ExternalError wraps a directory or broker I/O failure. Mutation-side
// failures surface immediately; consumer-side failures are retried by the
// redelivery scheduler.
type ExternalError struct {
	Op  string
	Err error
}

func (e *ExternalError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}
