package toem

import (
	"fmt"
	"slices"
)

// Argument is the unit of probabilistic resolution: a label, an exponent p,
// and ordered pro and con lists.
//
// Lifecycle: built by New, mutated through AddPro/AddCon and the setters,
// resolved exactly once. After resolution only Blame may change internal
// state, and it is memoised.
//
// An Argument is not safe for concurrent use.
type Argument struct {
	label   string
	outcome string

	p    int
	base int
	src  Source

	pros []Item
	cons []Item

	resolved  bool
	increment int
	p0        int
	variate   float64

	// Shuffled working copies used for blame.
	failedPros []Item
	blameCons  []Item

	blamed bool
	blame  []Item
}

// Option configures an Argument at construction.
type Option func(*argConfig)

type argConfig struct {
	outcome  string
	baseProb string
	skill    string
	src      Source
}

// WithOutcome sets the descriptive outcome label.
func WithOutcome(outcome string) Option {
	return func(c *argConfig) { c.outcome = outcome }
}

// WithBaseProb sets the base probability concept (default "neutral").
func WithBaseProb(phrase string) Option {
	return func(c *argConfig) { c.baseProb = phrase }
}

// WithSkillLevel sets the skill level concept (default "").
func WithSkillLevel(phrase string) Option {
	return func(c *argConfig) { c.skill = phrase }
}

// WithSource sets the variate source used for the roll, for nested
// arguments resolved without an explicit variate, and for blame shuffling.
func WithSource(src Source) Option {
	return func(c *argConfig) { c.src = src }
}

// New builds an argument. The initial exponent is the sum of the base
// probability and skill level offsets.
func New(label string, opts ...Option) (*Argument, error) {
	cfg := argConfig{baseProb: "neutral"}
	for _, opt := range opts {
		opt(&cfg)
	}

	base, err := Lookup(cfg.baseProb)
	if err != nil {
		return nil, fmt.Errorf("base probability: %w", err)
	}
	skill, err := Lookup(cfg.skill)
	if err != nil {
		return nil, fmt.Errorf("skill level: %w", err)
	}

	return &Argument{
		label:   label,
		outcome: cfg.outcome,
		p:       base + skill,
		base:    base,
		src:     cfg.src,
	}, nil
}

// MustNew is like New but panics on error.
// Use only in tests or with phrases known to be in the lexicon.
func MustNew(label string, opts ...Option) *Argument {
	a, err := New(label, opts...)
	if err != nil {
		panic(err)
	}
	return a
}

// Label returns what is being attempted.
func (a *Argument) Label() string { return a.label }

// Outcome returns the descriptive outcome label.
func (a *Argument) Outcome() string { return a.outcome }

// P returns the current exponent. After resolution it is the post-state
// exponent reached by the threshold walk.
func (a *Argument) P() int { return a.p }

// P0 returns the exponent after pro/con accounting. Zero before resolution.
func (a *Argument) P0() int { return a.p0 }

// Variate returns the variate the argument was resolved with.
func (a *Argument) Variate() float64 { return a.variate }

// IsResolved reports whether the argument has been resolved.
func (a *Argument) IsResolved() bool { return a.resolved }

// IsTrue reports whether the argument resolved successfully.
// False before resolution.
func (a *Argument) IsTrue() bool { return a.resolved && a.increment >= 0 }

// Increment returns the resolution increment and whether it is present.
func (a *Argument) Increment() (int, bool) {
	if !a.resolved {
		return 0, false
	}
	return a.increment, true
}

// Pros returns a copy of the pro list in insertion order.
func (a *Argument) Pros() []Item { return slices.Clone(a.pros) }

// Cons returns a copy of the con list in insertion order.
func (a *Argument) Cons() []Item { return slices.Clone(a.cons) }

// AddPro appends a pro item.
func (a *Argument) AddPro(it Item) error {
	if err := a.checkAdd(it); err != nil {
		return fmt.Errorf("add pro to %q: %w", a.label, err)
	}
	a.pros = append(a.pros, it)
	return nil
}

// AddCon appends a con item.
func (a *Argument) AddCon(it Item) error {
	if err := a.checkAdd(it); err != nil {
		return fmt.Errorf("add con to %q: %w", a.label, err)
	}
	a.cons = append(a.cons, it)
	return nil
}

// AddProString appends a modifier pro.
func (a *Argument) AddProString(phrase string) error { return a.AddPro(Modifier(phrase)) }

// AddConString appends a modifier con.
func (a *Argument) AddConString(phrase string) error { return a.AddCon(Modifier(phrase)) }

// AddProArg appends a nested argument as a pro.
func (a *Argument) AddProArg(sub *Argument) error { return a.AddPro(Sub(sub)) }

// AddConArg appends a nested argument as a con.
func (a *Argument) AddConArg(sub *Argument) error { return a.AddCon(Sub(sub)) }

func (a *Argument) checkAdd(it Item) error {
	if a.resolved {
		return ErrResolved
	}
	if it.Kind == ItemArgument {
		if it.Arg == nil {
			return fmt.Errorf("nil sub-argument")
		}
		if it.Arg.reaches(a) {
			return ErrCycle
		}
	}
	return nil
}

// reaches reports whether target is a itself or nested anywhere below a.
func (a *Argument) reaches(target *Argument) bool {
	if a == target {
		return true
	}
	for _, list := range [][]Item{a.pros, a.cons} {
		for _, it := range list {
			if it.Kind == ItemArgument && it.Arg.reaches(target) {
				return true
			}
		}
	}
	return false
}

// SetBaseProb replaces the base probability component of p.
func (a *Argument) SetBaseProb(phrase string) error {
	if a.resolved {
		return ErrResolved
	}
	base, err := Lookup(phrase)
	if err != nil {
		return fmt.Errorf("base probability: %w", err)
	}
	a.p += base - a.base
	a.base = base
	return nil
}

// SetSkillLevel adds the skill level offset to p. Unlike SetBaseProb it
// does not replace an earlier skill level.
func (a *Argument) SetSkillLevel(phrase string) error {
	if a.resolved {
		return ErrResolved
	}
	skill, err := Lookup(phrase)
	if err != nil {
		return fmt.Errorf("skill level: %w", err)
	}
	a.p += skill
	return nil
}

// source returns the argument's source or the process-wide default.
func (a *Argument) source() Source {
	if a.src != nil {
		return a.src
	}
	return DefaultSource()
}
