// Package unit holds per-unit state: degradation counters, position, stance
// and the link to higher headquarters. Units are schedule parents; their
// schedulable methods are exposed by name through Method.
package unit

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/opcon/internal/catalogue"
	"github.com/roach88/opcon/internal/geo"
	"github.com/roach88/opcon/internal/toem"
)

var (
	// ErrUnknownUnit is returned when a method names a unit that is not in
	// the roster.
	ErrUnknownUnit = errors.New("unknown unit")

	// ErrBadArgs is returned when a scheduled call carries arguments of the
	// wrong shape.
	ErrBadArgs = errors.New("bad arguments")

	// ErrDetached is returned when a method that needs the roster or the
	// scheduler runs on a unit that was never bound to an Env.
	ErrDetached = errors.New("unit not bound to an environment")
)

// Roster resolves unit ids.
type Roster interface {
	Unit(uid string) (*Unit, bool)
}

// Env is what a unit needs from the world it lives in.
type Env struct {
	Roster Roster
	Source toem.Source // nil means toem.DefaultSource
	Logger *slog.Logger

	// Scheduler posts arrivals for timed moves.
	Scheduler Scheduler

	// OnResolve, when set, receives every argument a unit resolves.
	OnResolve func(u *Unit, res toem.Result)
}

// Unit is a military unit's mutable state.
//
// Morale, Fatigue and Suppression count degradation: 0 is fresh and the
// counters never go negative.
type Unit struct {
	ID       string
	Name     string
	Template catalogue.Template
	Stance   string

	Morale      int
	Fatigue     int
	Suppression int

	Position geo.Vec
	HQ       *Unit

	// Leg is the move under way, if any.
	Leg *Leg

	env  *Env
	legs int
}

// New returns a fresh unit with the template's default stance.
func New(uid, name string, tmpl catalogue.Template) *Unit {
	return &Unit{ID: uid, Name: name, Template: tmpl, Stance: tmpl.Stance}
}

// UID implements schedule.Parent.
func (u *Unit) UID() string { return u.ID }

// Bind attaches the unit to env.
func (u *Unit) Bind(env *Env) { u.env = env }

// HigherHQ returns the unit's higher headquarters, if any.
func (u *Unit) HigherHQ() (*Unit, bool) {
	return u.HQ, u.HQ != nil
}

// Pos returns the unit's planar position.
func (u *Unit) Pos() geo.Vec { return u.Position }

// CommDistance returns the distance to higher HQ. ok is false without one.
func (u *Unit) CommDistance() (dist float64, ok bool) {
	if u.HQ == nil {
		return 0, false
	}
	return u.Position.Dist(u.HQ.Position), true
}

// CommRanges returns the template's effective and maximum radio ranges.
func (u *Unit) CommRanges() (effective, maximum float64) {
	return u.Template.CommEffective, u.Template.CommMax
}

// InCommRange reports whether higher HQ is within effective radio range.
func (u *Unit) InCommRange() bool {
	d, ok := u.CommDistance()
	return ok && d <= u.Template.CommEffective
}

// Counters returns the degradation counters in fixed order: morale,
// fatigue, suppression.
func (u *Unit) Counters() [3]int {
	return [3]int{u.Morale, u.Fatigue, u.Suppression}
}

// Counter returns a counter by name.
func (u *Unit) Counter(name string) (int, error) {
	switch name {
	case "morale":
		return u.Morale, nil
	case "fatigue":
		return u.Fatigue, nil
	case "suppression":
		return u.Suppression, nil
	default:
		return 0, fmt.Errorf("unknown counter %q", name)
	}
}

// SetCounter sets a counter by name, clamping at zero.
func (u *Unit) SetCounter(name string, v int) error {
	v = max(v, 0)
	switch name {
	case "morale":
		u.Morale = v
	case "fatigue":
		u.Fatigue = v
	case "suppression":
		u.Suppression = v
	default:
		return fmt.Errorf("unknown counter %q", name)
	}
	return nil
}

func (u *Unit) String() string {
	return fmt.Sprintf("%s (%s)", u.Name, u.ID)
}

func (u *Unit) logger() *slog.Logger {
	if u.env != nil && u.env.Logger != nil {
		return u.env.Logger
	}
	return slog.Default()
}

func (u *Unit) source() toem.Source {
	if u.env != nil && u.env.Source != nil {
		return u.env.Source
	}
	return toem.DefaultSource()
}
