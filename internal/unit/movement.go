package unit

import (
	"fmt"
	"time"

	"github.com/roach88/opcon/internal/geo"
	"github.com/roach88/opcon/internal/schedule"
)

// Scheduler posts follow-on events on behalf of a unit.
type Scheduler interface {
	Now() time.Time
	PostAfter(d time.Duration, parent schedule.Dispatcher, method string, args any) (*schedule.Event, error)
}

// Leg is a move under way. The unit stays at Position, which is From,
// until its arrive event runs or it halts.
type Leg struct {
	From, To geo.Vec
	Terrain  string
	Depart   time.Time
	Arrive   time.Time

	seq int
}

// PositionAt interpolates along the leg, clamped to its endpoints.
func (l *Leg) PositionAt(t time.Time) geo.Vec {
	total := l.Arrive.Sub(l.Depart)
	if total <= 0 || !t.Before(l.Arrive) {
		return l.To
	}
	if !t.After(l.Depart) {
		return l.From
	}
	frac := float64(t.Sub(l.Depart)) / float64(total)
	return l.From.Toward(l.To, l.From.Dist(l.To)*frac)
}

// PositionAt returns where the unit is at t, following any leg under way.
func (u *Unit) PositionAt(t time.Time) geo.Vec {
	if u.Leg == nil {
		return u.Position
	}
	return u.Leg.PositionAt(t)
}

// MoveTo starts a move to dst across terrain and returns how long it takes.
// The arrival is posted as an "arrive" event on the unit. A move issued
// while another is under way starts from wherever the unit has got to and
// makes the earlier arrival stale. A zero-length move completes at once.
func (u *Unit) MoveTo(dst geo.Vec, terrain string) (time.Duration, error) {
	sched := u.scheduler()
	if sched == nil {
		return 0, ErrDetached
	}
	now := sched.Now()
	from := u.PositionAt(now)

	d, err := u.Template.MoveTime(from.Dist(dst), terrain)
	if err != nil {
		return 0, fmt.Errorf("move %s: %w", u.ID, err)
	}
	u.Position = from
	if d == 0 {
		u.Position = dst
		u.Leg = nil
		return 0, nil
	}

	u.legs++
	leg := &Leg{From: from, To: dst, Terrain: terrain, Depart: now, Arrive: now.Add(d), seq: u.legs}
	if _, err := sched.PostAfter(d, u, "arrive", leg.seq); err != nil {
		return 0, fmt.Errorf("move %s: %w", u.ID, err)
	}
	u.Leg = leg

	u.logger().Debug("move started",
		"unit", u.ID,
		"from", from,
		"to", dst,
		"terrain", terrain,
		"friction", u.Template.FrictionFor(terrain),
		"duration", d,
	)
	return d, nil
}

// arrive completes leg seq. Arrivals for superseded or halted legs are
// ignored.
func (u *Unit) arrive(seq int) {
	if u.Leg == nil || u.Leg.seq != seq {
		u.logger().Debug("stale arrival", "unit", u.ID, "leg", seq)
		return
	}
	u.Position = u.Leg.To
	u.Leg = nil
}

// Halt stops a move under way where the unit stands now.
func (u *Unit) Halt() error {
	if u.Leg == nil {
		return nil
	}
	sched := u.scheduler()
	if sched == nil {
		return ErrDetached
	}
	u.Position = u.Leg.PositionAt(sched.Now())
	u.Leg = nil
	return nil
}

func (u *Unit) scheduler() Scheduler {
	if u.env == nil {
		return nil
	}
	return u.env.Scheduler
}
