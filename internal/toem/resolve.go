package toem

import (
	"fmt"
	"log/slog"
	"slices"
)

// Resolve resolves the argument with a variate drawn from its source.
// A second call returns the cached increment without drawing.
func (a *Argument) Resolve() (int, error) {
	if a.resolved {
		return a.increment, nil
	}
	return a.ResolveWith(a.source().Float64())
}

// ResolveWith resolves the argument against the variate d in [0, 1).
//
// Pros are counted first, then cons; nested arguments are resolved on
// demand with their own sources. The resulting exponent p0 decides the
// outcome: success when d <= PValue(p0). The exponent then walks away from
// p0 across every threshold the variate still clears (success, walking
// down) or still meets or exceeds (failure, walking up). The increment is
// p0 minus the exponent where the walk stops, so it is >= 0 exactly on
// success and its magnitude counts the crossings.
//
// A second call returns the cached increment and ignores d.
func (a *Argument) ResolveWith(d float64) (int, error) {
	if a.resolved {
		return a.increment, nil
	}
	if d < 0 || d >= 1 {
		return 0, fmt.Errorf("resolve %q: %w: %v", a.label, ErrVariateRange, d)
	}

	p := a.p
	var failedPros []Item
	for _, it := range a.pros {
		if it.Kind != ItemArgument {
			p++
			continue
		}
		ok, err := resolveSub(it.Arg)
		if err != nil {
			return 0, fmt.Errorf("resolve pro of %q: %w", a.label, err)
		}
		if ok {
			p++
		} else {
			failedPros = append(failedPros, it)
		}
	}
	for _, it := range a.cons {
		if it.Kind != ItemArgument {
			p--
			continue
		}
		ok, err := resolveSub(it.Arg)
		if err != nil {
			return 0, fmt.Errorf("resolve con of %q: %w", a.label, err)
		}
		if ok {
			p--
		}
	}

	p0 := p
	walk := clampExponent(p0)
	if d <= PValue(walk) {
		for walk > MinExponent && d <= PValue(walk-1) {
			walk--
		}
	} else {
		for walk < MaxExponent && d >= PValue(walk) {
			walk++
		}
	}

	a.p0 = p0
	a.p = walk
	a.variate = d
	a.increment = clampExponent(p0) - walk
	a.resolved = true

	src := a.source()
	a.failedPros = failedPros
	shuffleItems(a.failedPros, src)
	a.blameCons = slices.Clone(a.cons)
	shuffleItems(a.blameCons, src)

	slog.Debug("argument resolved",
		"argument", a.label,
		"p0", p0,
		"variate", d,
		"increment", a.increment,
	)

	return a.increment, nil
}

func resolveSub(sub *Argument) (bool, error) {
	if _, err := sub.Resolve(); err != nil {
		return false, err
	}
	return sub.IsTrue(), nil
}

// Result summarises a resolved argument for logs and persistence.
type Result struct {
	Label     string   `json:"label"`
	Outcome   string   `json:"outcome,omitempty"`
	P0        int      `json:"p0"`
	PFinal    int      `json:"p_final"`
	Variate   float64  `json:"variate"`
	Increment int      `json:"increment"`
	Success   bool     `json:"success"`
	Blame     []string `json:"blame,omitempty"`
}

// Result returns the resolution summary. ok is false before resolution.
func (a *Argument) Result() (res Result, ok bool) {
	if !a.resolved {
		return Result{}, false
	}
	return Result{
		Label:     a.label,
		Outcome:   a.outcome,
		P0:        a.p0,
		PFinal:    a.p,
		Variate:   a.variate,
		Increment: a.increment,
		Success:   a.IsTrue(),
		Blame:     a.BlameLabels(),
	}, true
}
