// Package c4i derives command-and-control factors from unit state:
// deployment, human factors, communications to higher HQ, and the verbal
// bands staff reports use for them.
package c4i

import (
	"fmt"

	"github.com/roach88/opcon/internal/toem"
)

// Defaults.
const (
	DefaultCap     = 10
	DefaultInRange = 1.0

	// BetweenRanges is the comm level between effective and maximum range.
	BetweenRanges = 0.5

	// StanceTransit is the only stance that lowers the deploy level.
	StanceTransit = "transit"
)

// Subject is the unit state the façade reads.
type Subject interface {
	// Counters returns morale, fatigue and suppression degradation.
	Counters() [3]int
	// CommDistance returns the distance to higher HQ; ok is false without one.
	CommDistance() (dist float64, ok bool)
	CommRanges() (effective, maximum float64)
}

// Facade computes C4I levels with a fixed configuration.
type Facade struct {
	cap     int
	inRange float64
}

// Option configures a Facade.
type Option func(*Facade)

// WithCap sets the counter value at which a human factor reaches zero.
func WithCap(n int) Option {
	return func(f *Facade) { f.cap = n }
}

// WithInRange sets the comm level inside effective range. Some doctrine
// tables use 0.8 instead of 1.0.
func WithInRange(level float64) Option {
	return func(f *Facade) { f.inRange = level }
}

// New returns a Facade.
func New(opts ...Option) (*Facade, error) {
	f := &Facade{cap: DefaultCap, inRange: DefaultInRange}
	for _, opt := range opts {
		opt(f)
	}
	if f.cap <= 0 {
		return nil, fmt.Errorf("c4i: cap must be positive, got %d", f.cap)
	}
	if f.inRange < 0 || f.inRange > 1 {
		return nil, fmt.Errorf("c4i: in-range level must be in [0, 1], got %g", f.inRange)
	}
	return f, nil
}

// LevelDeployState returns 0.8 for units in transit and 1.0 otherwise.
func LevelDeployState(stance string) float64 {
	if stance == StanceTransit {
		return 0.8
	}
	return 1.0
}

// CounterFactor maps one degradation counter to [0, 1].
func (f *Facade) CounterFactor(c int) float64 {
	return max(0, 1-float64(c)/float64(f.cap))
}

// LevelHumanFactor is the mean counter factor of u.
func (f *Facade) LevelHumanFactor(u Subject) float64 {
	var sum float64
	counters := u.Counters()
	for _, c := range counters {
		sum += f.CounterFactor(c)
	}
	return sum / float64(len(counters))
}

// HumanFactorArgument builds an unresolved TOEM argument with one con per
// counter point.
func (f *Facade) HumanFactorArgument(u Subject) (*toem.Argument, error) {
	a, err := toem.New("human factor")
	if err != nil {
		return nil, err
	}
	labels := [3]string{"morale", "fatigue", "suppression"}
	for i, c := range u.Counters() {
		for range c {
			if err := a.AddConString(labels[i]); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

// LevelHumanFactorTOEM is the TOEM variant of LevelHumanFactor: the success
// probability of HumanFactorArgument relative to an unmodified argument,
// capped at 1. Nothing is rolled.
func (f *Facade) LevelHumanFactorTOEM(u Subject) (float64, error) {
	a, err := f.HumanFactorArgument(u)
	if err != nil {
		return 0, err
	}
	p0 := a.P() - len(a.Cons()) + len(a.Pros())
	return min(1, toem.PValue(p0)/toem.PValue(0)), nil
}

// LevelCommToHQ rates the link to higher HQ: 1.0 without one, the in-range
// level within effective range, 0.0 beyond maximum range and 0.5 between.
func (f *Facade) LevelCommToHQ(u Subject) float64 {
	d, ok := u.CommDistance()
	if !ok {
		return 1.0
	}
	eff, maxRange := u.CommRanges()
	switch {
	case d <= eff:
		return f.inRange
	case d > maxRange:
		return 0.0
	default:
		return BetweenRanges
	}
}
