package schedule

import (
	"errors"
	"fmt"
)

var (
	// ErrNilEvent is returned when posting a nil event.
	ErrNilEvent = errors.New("nil event")

	// ErrAlreadyPosted is returned when an event is posted while it is
	// still stored at some timestamp.
	ErrAlreadyPosted = errors.New("event already posted")

	// ErrNilParent is returned when an event is built without a parent.
	ErrNilParent = errors.New("nil parent")

	// ErrRebind is the sentinel wrapped by every *RebindError.
	ErrRebind = errors.New("rebind failed")
)

// RebindError reports an event whose parent or method could not be bound.
type RebindError struct {
	ParentID string
	Method   string
	Reason   string
}

// Error implements the error interface.
func (e *RebindError) Error() string {
	return fmt.Sprintf("%v: parent=%q method=%q: %s", ErrRebind, e.ParentID, e.Method, e.Reason)
}

// Unwrap returns ErrRebind so errors.Is matches.
func (e *RebindError) Unwrap() error {
	return ErrRebind
}

// IsRebindError returns true if err is or wraps a rebind failure.
// Uses errors.Is so joined and wrapped errors match.
func IsRebindError(err error) bool {
	return errors.Is(err, ErrRebind)
}
