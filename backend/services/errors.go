package services

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups for ids that do not exist. Wrapped with
// context by the services; controllers match it with errors.Is.
var ErrNotFound = errors.New("not found")

// NotFoundError wraps ErrNotFound with the entity kind and id.
func NotFoundError(entity string, id uint) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// InvalidStateError is returned when a transition is attempted from a
// state that does not allow it (e.g. pausing a lesson that is not in
// progress). No silent correction is applied.
type InvalidStateError struct {
	Entity  string
	Current string
	Action  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s in state %s", e.Action, e.Entity, e.Current)
}

// PreconditionError is returned when a finalize is attempted while its
// requirements are not met. Missing carries the incomplete items so the
// caller can render them.
type PreconditionError struct {
	Reason  string
	Missing []MissingItem
}

// MissingItem names one incomplete requirement.
type MissingItem struct {
	Kind      string `json:"kind"` // lesson, challenge, course
	ID        uint   `json:"id"`
	Title     string `json:"title,omitempty"`
	Completed int    `json:"completed"`
	Required  int    `json:"required"`
}

func (e *PreconditionError) Error() string {
	if len(e.Missing) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s (%d requirements missing)", e.Reason, len(e.Missing))
}
