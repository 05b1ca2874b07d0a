package shared

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a business rule rejected the request.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition indicates an illegal status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrStorage indicates the store could not begin or commit a transaction.
	ErrStorage = errors.New("storage failure")
)

// Dependent identifies a record that blocks a delete.
type Dependent struct {
	Kind   string    `json:"kind"`
	ID     int64     `json:"id"`
	Label  string    `json:"label"`
	Date   time.Time `json:"date"`
	Status string    `json:"status"`
}

// DependentsError is returned when a delete is blocked by referencing records.
type DependentsError struct {
	Resource   string
	ResourceID int64
	Dependents []Dependent
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("%s %d is referenced by %d record(s)", e.Resource, e.ResourceID, len(e.Dependents))
}

// Unwrap lets errors.Is(err, ErrConflict) match.
func (e *DependentsError) Unwrap() error {
	return ErrConflict
}

// UserSafeMessage returns a message that is safe to show to API clients.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStorage):
		return "the operation could not be stored, please retry"
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrValidation):
		return err.Error()
	default:
		return "internal error"
	}
}
