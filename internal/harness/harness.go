package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/roach88/opcon/internal/c4i"
	"github.com/roach88/opcon/internal/catalogue"
	"github.com/roach88/opcon/internal/geo"
	"github.com/roach88/opcon/internal/ir"
	"github.com/roach88/opcon/internal/schedule"
	"github.com/roach88/opcon/internal/sim"
	"github.com/roach88/opcon/internal/toem"
	"github.com/roach88/opcon/internal/unit"
)

// Harness is a scenario loaded into a live world, ready to run.
type Harness struct {
	scenario *Scenario
	world    *sim.World
	facade   *c4i.Facade
	logger   *slog.Logger
	proj     *geo.Projector

	result     *Result
	pending    []TraceResolution
	onRes      sim.ResolveHook
	facadeOpts []c4i.Option
	quota      int
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the world's logger. Scenarios log nowhere by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithResolveHook forwards every resolution to fn as well as the trace.
func WithResolveHook(fn sim.ResolveHook) Option {
	return func(h *Harness) { h.onRes = fn }
}

// WithFacadeOptions configures the C4I façade. A scenario's own
// comm_in_range still wins.
func WithFacadeOptions(opts ...c4i.Option) Option {
	return func(h *Harness) { h.facadeOpts = append(h.facadeOpts, opts...) }
}

// WithMaxEventsPerBucket sets the world's per-timestamp quota.
func WithMaxEventsPerBucket(n int) Option {
	return func(h *Harness) { h.quota = n }
}

// Run builds the scenario, runs it to RunUntil and evaluates its
// assertions. Each call gets a fresh world.
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	h, err := New(s, opts...)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx)
}

// New builds the world described by s without running it.
func New(s *Scenario, opts ...Option) (*Harness, error) {
	h := &Harness{
		scenario: s,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		result:   NewResult(),
		quota:    sim.DefaultMaxEventsPerBucket,
	}
	for _, opt := range opts {
		opt(h)
	}

	facadeOpts := h.facadeOpts
	if s.CommInRange > 0 {
		facadeOpts = append(facadeOpts, c4i.WithInRange(s.CommInRange))
	}
	facade, err := c4i.New(facadeOpts...)
	if err != nil {
		return nil, err
	}
	h.facade = facade

	cat, err := s.loadCatalogue()
	if err != nil {
		return nil, err
	}
	if h.proj, err = s.projector(); err != nil {
		return nil, err
	}

	h.world = sim.NewWorld(s.start(),
		sim.WithSource(s.source()),
		sim.WithLogger(h.logger),
		sim.WithObserver(h.observe),
		sim.WithResolveHook(h.resolved),
		sim.WithMaxEventsPerBucket(h.quota),
	)
	if err := h.placeUnits(cat); err != nil {
		return nil, err
	}
	if err := h.postEvents(); err != nil {
		return nil, err
	}
	return h, nil
}

// World returns the harness's world.
func (h *Harness) World() *sim.World { return h.world }

// Facade returns the C4I façade configured for the scenario.
func (h *Harness) Facade() *c4i.Facade { return h.facade }

// Execute runs the world to the scenario's RunUntil. Failed events are
// recorded in the trace and the run carries on; any other loop error
// aborts. Assertions are evaluated against the final state.
func (h *Harness) Execute(ctx context.Context) (*Result, error) {
	until := h.scenario.start().Add(h.scenario.RunUntil)
	for {
		err := h.world.Loop().Run(ctx, until)
		if err == nil {
			break
		}
		if !sim.IsEventError(err) {
			return nil, fmt.Errorf("scenario %s: %w", h.scenario.Name, err)
		}
	}

	res := h.result
	for _, u := range h.world.Units() {
		res.Units = append(res.Units, UnitState{
			UID:         u.ID,
			Stance:      u.Stance,
			Morale:      u.Morale,
			Fatigue:     u.Fatigue,
			Suppression: u.Suppression,
		})
	}

	actx := &AssertionContext{World: h.world, Facade: h.facade, Projector: h.proj}
	for _, msg := range EvaluateAssertions(res, h.scenario.Assertions, actx) {
		res.AddError(msg)
	}
	return res, nil
}

func (h *Harness) observe(ex sim.Executed) {
	ev := ex.Event
	te := TraceEvent{
		Offset:      ex.At.Sub(h.scenario.start()),
		Index:       ex.Index,
		Kind:        ev.Kind.String(),
		Parent:      ev.ParentID,
		Method:      ev.Method,
		Tag:         ev.Tag,
		Args:        ev.Args,
		Kwargs:      ev.Kwargs,
		Resolutions: h.pending,
	}
	if ex.Err != nil {
		te.Error = ex.Err.Error()
	}
	h.pending = nil
	h.result.Trace = append(h.result.Trace, te)
}

func (h *Harness) resolved(at time.Time, u *unit.Unit, res toem.Result) {
	h.pending = append(h.pending, TraceResolution{
		Unit:      u.ID,
		Label:     res.Label,
		P0:        res.P0,
		PFinal:    res.PFinal,
		Increment: res.Increment,
		Success:   res.Success,
		Blame:     res.Blame,
	})
	if h.onRes != nil {
		h.onRes(at, u, res)
	}
}

func (h *Harness) placeUnits(cat *catalogue.Catalogue) error {
	for _, spec := range h.scenario.Units {
		tmpl, err := cat.Lookup(spec.Template)
		if err != nil {
			return fmt.Errorf("unit %s: %w", spec.UID, err)
		}
		name := spec.Name
		if name == "" {
			name = spec.UID
		}
		u := unit.New(spec.UID, name, tmpl)
		if spec.Stance != "" {
			u.Stance = spec.Stance
		}
		u.Position = spec.Position
		if spec.Location != nil {
			u.Position = h.proj.ToXY(*spec.Location)
		}
		u.Morale, u.Fatigue, u.Suppression = spec.Morale, spec.Fatigue, spec.Suppression
		if err := h.world.AddUnit(u); err != nil {
			return err
		}
	}
	for _, spec := range h.scenario.Units {
		if spec.HQ == "" {
			continue
		}
		u, _ := h.world.Unit(spec.UID)
		hq, ok := h.world.Unit(spec.HQ)
		if !ok {
			return fmt.Errorf("unit %s: %w: hq %q", spec.UID, unit.ErrUnknownUnit, spec.HQ)
		}
		u.HQ = hq
	}
	return nil
}

func (h *Harness) postEvents() error {
	start := h.scenario.start()
	for i, spec := range h.scenario.Events {
		parent, ok := h.world.Lookup(spec.Parent)
		if !ok {
			return fmt.Errorf("events[%d]: %w: %q", i, unit.ErrUnknownUnit, spec.Parent)
		}
		at := start.Add(spec.At)

		if spec.Memo != "" {
			var data ir.IRValue
			if spec.Data != nil {
				v, err := convertToIRValue(spec.Data)
				if err != nil {
					return fmt.Errorf("events[%d]: data: %w", i, err)
				}
				data = v
			}
			if _, err := h.world.PostMemo(at, parent, spec.Memo, data); err != nil {
				return fmt.Errorf("events[%d]: %w", i, err)
			}
			continue
		}

		d, ok := parent.(schedule.Dispatcher)
		if !ok {
			return fmt.Errorf("events[%d]: %s has no methods", i, spec.Parent)
		}
		call, err := convertCall(spec.Args, spec.Kwargs)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		if _, err := h.world.Post(at, d, spec.Method, call); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
	}
	return nil
}

func (s *Scenario) start() time.Time {
	if s.Start.IsZero() {
		return DefaultStart
	}
	return s.Start
}

func (s *Scenario) source() toem.Source {
	if len(s.Variates) > 0 {
		return &cycleSource{values: s.Variates}
	}
	return toem.NewSeededSource(s.Seed)
}

func (s *Scenario) loadCatalogue() (*catalogue.Catalogue, error) {
	var templates []catalogue.Template
	if s.Catalogue != "" {
		path := s.resolve(s.Catalogue)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("catalogue: %w", err)
		}
		var cat *catalogue.Catalogue
		if info.IsDir() {
			cat, err = catalogue.LoadCUE(path)
		} else {
			cat, err = catalogue.LoadYAML(path)
		}
		if err != nil {
			return nil, err
		}
		for _, name := range cat.Names() {
			t, _ := cat.Get(name)
			templates = append(templates, t)
		}
	}
	templates = append(templates, s.Templates...)
	return catalogue.New(templates...)
}

// cycleSource replays a fixed list of variates, wrapping at the end.
type cycleSource struct {
	mu     sync.Mutex
	values []float64
	idx    int
}

func (c *cycleSource) Float64() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.values[c.idx%len(c.values)]
	c.idx++
	return v
}

func convertCall(args []any, kwargs map[string]any) (any, error) {
	var call schedule.Call
	if len(args) > 0 {
		v, err := convertToIRValue(args)
		if err != nil {
			return nil, fmt.Errorf("args: %w", err)
		}
		call.Args = v.(ir.IRArray)
	}
	if len(kwargs) > 0 {
		v, err := convertToIRValue(kwargs)
		if err != nil {
			return nil, fmt.Errorf("kwargs: %w", err)
		}
		call.Kwargs = v.(ir.IRObject)
	}
	if call.Args == nil && call.Kwargs == nil {
		return nil, nil
	}
	return call, nil
}

// convertToIRValue converts a YAML-decoded value to an IRValue.
// Nulls are rejected here with a clear message rather than later by the
// canonical encoder; integral floats become IRInt.
func convertToIRValue(val any) (ir.IRValue, error) {
	if val == nil {
		return nil, fmt.Errorf("null values are not allowed in event arguments")
	}

	switch v := val.(type) {
	case string:
		return ir.IRString(v), nil
	case int:
		return ir.IRInt(int64(v)), nil
	case int64:
		return ir.IRInt(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite number %v in event arguments", v)
		}
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return ir.IRInt(int64(v)), nil
		}
		return ir.IRFloat(v), nil
	case bool:
		return ir.IRBool(v), nil
	case []any:
		arr := make(ir.IRArray, len(v))
		for i, elem := range v {
			irElem, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(ir.IRObject, len(v))
		for key, elem := range v {
			irElem, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			obj[key] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}
