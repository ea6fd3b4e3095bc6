package unit

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/opcon/internal/catalogue"
	"github.com/roach88/opcon/internal/geo"
	"github.com/roach88/opcon/internal/ir"
	"github.com/roach88/opcon/internal/schedule"
	"github.com/roach88/opcon/internal/toem"
)

// Modifier labels used when building attack arguments.
const (
	ConUnderFire = "under fire"
	ConFatigued  = "fatigued"
	ConShaken    = "shaken"
	ProSupported = "supported"
)

// DefaultDifficulty is the task difficulty of an attack with none given.
const DefaultDifficulty = "trained task"

// method table, keyed by scheduled method name.
var methods = map[string]func(u *Unit, ctx context.Context, args ir.IRArray, kwargs ir.IRObject) error{
	"suppress": func(u *Unit, _ context.Context, args ir.IRArray, kwargs ir.IRObject) error {
		n, err := intArg(args, kwargs, 0, "n", 1)
		if err != nil {
			return err
		}
		u.Suppress(n)
		return nil
	},
	"rest": func(u *Unit, _ context.Context, args ir.IRArray, kwargs ir.IRObject) error {
		n, err := intArg(args, kwargs, 0, "n", 1)
		if err != nil {
			return err
		}
		u.Rest(n)
		return nil
	},
	"rally": func(u *Unit, _ context.Context, _ ir.IRArray, _ ir.IRObject) error {
		u.Rally()
		return nil
	},
	"attack": func(u *Unit, ctx context.Context, args ir.IRArray, kwargs ir.IRObject) error {
		target, err := stringArg(args, kwargs, 0, "target", "")
		if err != nil {
			return err
		}
		if target == "" {
			return fmt.Errorf("attack: %w: target is required", ErrBadArgs)
		}
		difficulty, err := stringArg(args, kwargs, 1, "difficulty", DefaultDifficulty)
		if err != nil {
			return err
		}
		_, err = u.Attack(ctx, target, difficulty)
		return err
	},
	"set_stance": func(u *Unit, _ context.Context, args ir.IRArray, kwargs ir.IRObject) error {
		stance, err := stringArg(args, kwargs, 0, "stance", "")
		if err != nil {
			return err
		}
		if stance == "" {
			return fmt.Errorf("set_stance: %w: stance is required", ErrBadArgs)
		}
		u.Stance = stance
		return nil
	},
	"move": func(u *Unit, _ context.Context, args ir.IRArray, kwargs ir.IRObject) error {
		x, err := floatArg(args, kwargs, 0, "x")
		if err != nil {
			return err
		}
		y, err := floatArg(args, kwargs, 1, "y")
		if err != nil {
			return err
		}
		terrain, err := stringArg(args, kwargs, 2, "terrain", catalogue.DefaultTerrain)
		if err != nil {
			return err
		}
		_, err = u.MoveTo(geo.V(x, y), terrain)
		return err
	},
	"arrive": func(u *Unit, _ context.Context, args ir.IRArray, kwargs ir.IRObject) error {
		seq, err := intArg(args, kwargs, 0, "leg", 0)
		if err != nil {
			return err
		}
		u.arrive(seq)
		return nil
	},
	"halt": func(u *Unit, _ context.Context, _ ir.IRArray, _ ir.IRObject) error {
		return u.Halt()
	},
}

// Methods returns the names of every schedulable method.
func Methods() []string {
	names := make([]string, 0, len(methods))
	for n := range methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Method implements schedule.Dispatcher.
func (u *Unit) Method(name string) (schedule.Method, bool) {
	fn, ok := methods[name]
	if !ok {
		return nil, false
	}
	return func(ctx context.Context, args ir.IRArray, kwargs ir.IRObject) error {
		return fn(u, ctx, args, kwargs)
	}, true
}

// Suppress adds n suppression points.
func (u *Unit) Suppress(n int) {
	u.Suppression = max(u.Suppression+n, 0)
}

// Rest removes n fatigue points.
func (u *Unit) Rest(n int) {
	u.Fatigue = max(u.Fatigue-n, 0)
}

// Rally removes one point each of morale degradation and suppression.
func (u *Unit) Rally() {
	u.Morale = max(u.Morale-1, 0)
	u.Suppression = max(u.Suppression-1, 0)
}

// AttackArgument builds the TOEM argument for an attack at the given task
// difficulty. Each suppression point is a con; fatigue and morale
// degradation add one con each when present; a link to higher HQ within
// effective range is a pro.
func (u *Unit) AttackArgument(difficulty string) (*toem.Argument, error) {
	a, err := toem.New("attack",
		toem.WithOutcome("target suppressed"),
		toem.WithBaseProb(difficulty),
		toem.WithSkillLevel(u.Template.Skill),
		toem.WithSource(u.source()),
	)
	if err != nil {
		return nil, fmt.Errorf("attack by %s: %w", u.ID, err)
	}
	if u.InCommRange() {
		if err := a.AddProString(ProSupported); err != nil {
			return nil, err
		}
	}
	for i := 0; i < u.Suppression; i++ {
		if err := a.AddConString(ConUnderFire); err != nil {
			return nil, err
		}
	}
	if u.Fatigue > 0 {
		if err := a.AddConString(ConFatigued); err != nil {
			return nil, err
		}
	}
	if u.Morale > 0 {
		if err := a.AddConString(ConShaken); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Attack resolves an attack on the unit called targetID.
//
// On success the target takes 1 + increment suppression points. On failure
// the attacker takes |increment| fatigue points.
func (u *Unit) Attack(_ context.Context, targetID, difficulty string) (toem.Result, error) {
	if u.env == nil || u.env.Roster == nil {
		return toem.Result{}, ErrDetached
	}
	target, ok := u.env.Roster.Unit(targetID)
	if !ok {
		return toem.Result{}, fmt.Errorf("attack by %s: %w: %q", u.ID, ErrUnknownUnit, targetID)
	}

	a, err := u.AttackArgument(difficulty)
	if err != nil {
		return toem.Result{}, err
	}
	inc, err := a.Resolve()
	if err != nil {
		return toem.Result{}, fmt.Errorf("attack by %s: %w", u.ID, err)
	}
	res, _ := a.Result()

	if inc >= 0 {
		target.Suppress(1 + inc)
	} else {
		u.Fatigue += -inc
	}

	u.logger().Info("attack resolved",
		"unit", u.ID,
		"target", target.ID,
		"difficulty", difficulty,
		"p0", res.P0,
		"increment", inc,
		"blame", res.Blame,
	)
	if u.env.OnResolve != nil {
		u.env.OnResolve(u, res)
	}
	return res, nil
}

func intArg(args ir.IRArray, kwargs ir.IRObject, pos int, key string, def int) (int, error) {
	var v ir.IRValue
	if pos < len(args) {
		v = args[pos]
	} else if kv, ok := kwargs[key]; ok {
		v = kv
	} else {
		return def, nil
	}
	switch n := v.(type) {
	case ir.IRInt:
		return int(n), nil
	case ir.IRFloat:
		if n == ir.IRFloat(int64(n)) {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrBadArgs, key, v)
}

// floatArg reads a required number. Integers are accepted.
func floatArg(args ir.IRArray, kwargs ir.IRObject, pos int, key string) (float64, error) {
	var v ir.IRValue
	if pos < len(args) {
		v = args[pos]
	} else if kv, ok := kwargs[key]; ok {
		v = kv
	} else {
		return 0, fmt.Errorf("%w: %s is required", ErrBadArgs, key)
	}
	switch n := v.(type) {
	case ir.IRInt:
		return float64(n), nil
	case ir.IRFloat:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrBadArgs, key, v)
}

func stringArg(args ir.IRArray, kwargs ir.IRObject, pos int, key, def string) (string, error) {
	var v ir.IRValue
	if pos < len(args) {
		v = args[pos]
	} else if kv, ok := kwargs[key]; ok {
		v = kv
	} else {
		return def, nil
	}
	s, ok := v.(ir.IRString)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrBadArgs, key, v)
	}
	return string(s), nil
}
