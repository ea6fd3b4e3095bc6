package sim

import (
	"fmt"
	"time"
)

// Clock is the simulation time cursor. It only moves forward.
type Clock struct {
	now time.Time
}

// NewClock returns a clock reading start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current simulation time.
func (c *Clock) Now() time.Time { return c.now }

// Advance moves the clock to t. Moving backwards fails; moving to the
// current time is a no-op.
func (c *Clock) Advance(t time.Time) error {
	if t.Before(c.now) {
		return fmt.Errorf("clock cannot move backwards from %s to %s",
			c.now.Format(time.RFC3339Nano), t.Format(time.RFC3339Nano))
	}
	c.now = t
	return nil
}
