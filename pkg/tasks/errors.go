package tasks

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced by the service. NotFound and Forbidden are never
// downgraded: callers must be able to render "not found" and "access denied"
// differently.
var (
	// ErrNotFound — the organization, goal or subtask does not exist.
	// Existence is always checked before authorization.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict — a uniqueness violation during concurrent reconciliation.
	// Retryable: re-read current state and reconcile again.
	ErrConflict = errors.New("assignment conflict, retry reconciliation")
)

// Deny reasons carried by ForbiddenError
const (
	ReasonNotMember   = "not-member"
	ReasonNotManager  = "not-manager"
	ReasonNotCreator  = "not-creator"
	ReasonNotAssignee = "not-assignee"
)

// ForbiddenError is returned when the authorization evaluator denies an
// operation. Reason is a stable tag, not display text.
type ForbiddenError struct {
	Op     Operation
	Reason string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("operation %s forbidden: %s", e.Op, e.Reason)
}

// InvalidInputError is returned for missing required fields or a staff id
// that is not valid for the subtask's organization.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalidInput(field, message string) *InvalidInputError {
	return &InvalidInputError{Field: field, Message: message}
}
