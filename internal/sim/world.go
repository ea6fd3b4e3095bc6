package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/opcon/internal/catalogue"
	"github.com/roach88/opcon/internal/ir"
	"github.com/roach88/opcon/internal/schedule"
	"github.com/roach88/opcon/internal/toem"
	"github.com/roach88/opcon/internal/unit"
)

// WorldUID is the parent id of the world itself.
const WorldUID = "world"

// Executed describes one event the loop ran. Err is the method error, if
// any; the event counts as executed either way.
type Executed struct {
	At    time.Time
	Index int
	Event *schedule.Event
	Err   error
}

// ResolveHook receives every TOEM argument a unit resolves, stamped with
// the simulation time.
type ResolveHook func(at time.Time, u *unit.Unit, res toem.Result)

// World is the registry of schedule parents: the units and the world
// itself. It implements schedule.World for rebinding and unit.Roster for
// unit-to-unit calls.
type World struct {
	sched *schedule.Schedule
	clock *Clock
	loop  *Loop

	units map[string]*unit.Unit
	order []string

	ids     UIDGenerator
	src     toem.Source
	logger  *slog.Logger
	observe func(Executed)
	resolve ResolveHook
	quota   int

	env *unit.Env
}

// Option configures a World.
type Option func(*World)

// WithSource sets the uniform source for every unit's rolls.
func WithSource(src toem.Source) Option {
	return func(w *World) { w.src = src }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *World) { w.logger = l }
}

// WithUIDGenerator sets how NewUnit names units. Defaults to UUIDv7.
func WithUIDGenerator(g UIDGenerator) Option {
	return func(w *World) { w.ids = g }
}

// WithObserver registers a callback for every executed event.
func WithObserver(fn func(Executed)) Option {
	return func(w *World) { w.observe = fn }
}

// WithResolveHook registers a callback for every unit resolution.
func WithResolveHook(fn ResolveHook) Option {
	return func(w *World) { w.resolve = fn }
}

// WithMaxEventsPerBucket sets the per-timestamp quota. Zero disables it.
func WithMaxEventsPerBucket(n int) Option {
	return func(w *World) { w.quota = n }
}

// NewWorld returns an empty world whose clock reads start.
func NewWorld(start time.Time, opts ...Option) *World {
	w := &World{
		sched:  schedule.New(),
		clock:  NewClock(start),
		units:  make(map[string]*unit.Unit),
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
		quota:  DefaultMaxEventsPerBucket,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.env = &unit.Env{
		Roster:    w,
		Source:    w.src,
		Logger:    w.logger,
		Scheduler: w,
		OnResolve: func(u *unit.Unit, res toem.Result) {
			if w.resolve != nil {
				w.resolve(w.clock.Now(), u, res)
			}
		},
	}
	w.loop = newLoop(w)
	return w
}

// UID implements schedule.Parent.
func (w *World) UID() string { return WorldUID }

// Method implements schedule.Dispatcher. The world answers "log", which
// writes its first argument to the logger, and "noop".
func (w *World) Method(name string) (schedule.Method, bool) {
	switch name {
	case "log":
		return func(_ context.Context, args ir.IRArray, kwargs ir.IRObject) error {
			msg, _ := args.String(0)
			if msg == "" {
				msg, _ = kwargs.String("message")
			}
			w.logger.Info(msg, "sim_time", w.clock.Now())
			return nil
		}, true
	case "noop":
		return func(context.Context, ir.IRArray, ir.IRObject) error { return nil }, true
	}
	return nil, false
}

// Lookup implements schedule.World.
func (w *World) Lookup(uid string) (schedule.Parent, bool) {
	if uid == WorldUID {
		return w, true
	}
	u, ok := w.units[uid]
	if !ok {
		return nil, false
	}
	return u, true
}

// Unit implements unit.Roster.
func (w *World) Unit(uid string) (*unit.Unit, bool) {
	u, ok := w.units[uid]
	return u, ok
}

// AddUnit registers u and binds it to the world.
func (w *World) AddUnit(u *unit.Unit) error {
	if u.ID == "" || u.ID == WorldUID {
		return fmt.Errorf("invalid unit id %q", u.ID)
	}
	if _, dup := w.units[u.ID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateUnit, u.ID)
	}
	u.Bind(w.env)
	w.units[u.ID] = u
	w.order = append(w.order, u.ID)
	return nil
}

// NewUnit builds a unit with a generated id and registers it.
func (w *World) NewUnit(name string, tmpl catalogue.Template) (*unit.Unit, error) {
	u := unit.New(w.ids.Generate(), name, tmpl)
	if err := w.AddUnit(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Units returns units in registration order.
func (w *World) Units() []*unit.Unit {
	out := make([]*unit.Unit, len(w.order))
	for i, id := range w.order {
		out[i] = w.units[id]
	}
	return out
}

// Schedule returns the world's schedule.
func (w *World) Schedule() *schedule.Schedule { return w.sched }

// Clock returns the simulation clock.
func (w *World) Clock() *Clock { return w.clock }

// Now is shorthand for Clock().Now().
func (w *World) Now() time.Time { return w.clock.Now() }

// Loop returns the world's event loop.
func (w *World) Loop() *Loop { return w.loop }

// Logger returns the world's logger.
func (w *World) Logger() *slog.Logger { return w.logger }

// Post schedules parent.method(args) at ts. Instants the loop has already
// finished fail with ErrCodePastTimestamp.
func (w *World) Post(ts time.Time, parent schedule.Dispatcher, method string, args any) (*schedule.Event, error) {
	if err := w.checkPost(ts); err != nil {
		return nil, err
	}
	return w.sched.PostCall(ts, parent, method, args)
}

// PostAfter schedules parent.method(args) d after the current time.
func (w *World) PostAfter(d time.Duration, parent schedule.Dispatcher, method string, args any) (*schedule.Event, error) {
	return w.Post(w.clock.Now().Add(d), parent, method, args)
}

// PostMemo annotates the timeline at ts.
func (w *World) PostMemo(ts time.Time, parent schedule.Parent, tag string, data any) (*schedule.Event, error) {
	if err := w.checkPost(ts); err != nil {
		return nil, err
	}
	return w.sched.PostMemo(ts, parent, tag, data)
}

func (w *World) checkPost(ts time.Time) error {
	now := w.clock.Now()
	if ts.Before(now) {
		return newPastError(ts, now)
	}
	if ts.Equal(now) && w.loop.finished(ts) {
		return newPastError(ts, now)
	}
	return nil
}
