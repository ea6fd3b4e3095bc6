package sim

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateUnit is returned when a unit id is registered twice.
var ErrDuplicateUnit = errors.New("duplicate unit")

// RuntimeError is an error raised while the loop runs or while posting
// work into a running world.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string

	// At and Index locate the event on the timeline, when there is one.
	At    time.Time
	Index int
	Event string

	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeEventFailed wraps an error returned by an event's method.
	ErrCodeEventFailed RuntimeErrorCode = "EVENT_FAILED"

	// ErrCodeQuotaExceeded means one timestamp bucket executed more events
	// than allowed, usually an event re-posting itself at the same instant.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodePastTimestamp means an event was posted for an instant the
	// loop has already passed.
	ErrCodePastTimestamp RuntimeErrorCode = "PAST_TIMESTAMP"
)

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Event != "" {
		msg += fmt.Sprintf(" (%s at %s #%d)", e.Event, e.At.Format(time.RFC3339), e.Index)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the method error for ErrCodeEventFailed.
func (e *RuntimeError) Unwrap() error { return e.Err }

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsEventError returns true if err is or wraps a failed event.
func IsEventError(err error) bool { return hasCode(err, ErrCodeEventFailed) }

// IsQuotaError returns true if err is or wraps a quota violation.
func IsQuotaError(err error) bool { return hasCode(err, ErrCodeQuotaExceeded) }

// IsPastTimestamp returns true if err is or wraps a post into the past.
func IsPastTimestamp(err error) bool { return hasCode(err, ErrCodePastTimestamp) }

func newEventError(at time.Time, index int, event string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeEventFailed,
		Message: "event failed",
		At:      at,
		Index:   index,
		Event:   event,
		Err:     err,
	}
}

func newQuotaError(at time.Time, executed, limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("bucket at %s exceeded %d events (%d executed)", at.Format(time.RFC3339Nano), limit, executed),
		At:      at,
	}
}

func newPastError(ts, now time.Time) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePastTimestamp,
		Message: fmt.Sprintf("cannot post at %s, loop is at %s", ts.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano)),
		At:      ts,
	}
}
