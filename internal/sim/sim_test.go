package sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opcon/internal/catalogue"
	"github.com/roach88/opcon/internal/geo"
	"github.com/roach88/opcon/internal/ir"
	"github.com/roach88/opcon/internal/schedule"
	"github.com/roach88/opcon/internal/testutil"
	"github.com/roach88/opcon/internal/toem"
	"github.com/roach88/opcon/internal/unit"
)

var rifleCoy = catalogue.Template{
	Name:          "rifle-coy",
	Skill:         "regular",
	Stance:        "hasty defence",
	CommEffective: 2000,
	CommMax:       5000,
	Speed:         4,
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// newTestWorld returns a world with units u-1 and u-2 and a trace of
// executed events.
func newTestWorld(t *testing.T, opts ...Option) (*World, *[]string) {
	t.Helper()
	var trace []string
	opts = append([]Option{
		WithLogger(quietLogger()),
		WithSource(testutil.ConstSource(0.1)),
		WithUIDGenerator(NewFixedGenerator("u-1", "u-2")),
		WithObserver(func(e Executed) {
			trace = append(trace, fmt.Sprintf("%s %s", e.At.Sub(testutil.Epoch), e.Event))
		}),
	}, opts...)

	w := NewWorld(testutil.Epoch, opts...)
	for _, name := range []string{"A Coy", "B Coy"} {
		_, err := w.NewUnit(name, rifleCoy)
		require.NoError(t, err)
	}
	return w, &trace
}

func mustUnit(t *testing.T, w *World, uid string) *unit.Unit {
	t.Helper()
	u, ok := w.Unit(uid)
	require.True(t, ok, uid)
	return u
}

func TestClock(t *testing.T) {
	c := NewClock(testutil.Epoch)
	require.NoError(t, c.Advance(testutil.At(time.Hour)))
	require.NoError(t, c.Advance(testutil.At(time.Hour)))
	assert.Error(t, c.Advance(testutil.Epoch))
	assert.Equal(t, testutil.At(time.Hour), c.Now())
}

func TestRun_ExecutesInOrder(t *testing.T) {
	w, trace := newTestWorld(t)
	a := mustUnit(t, w, "u-1")

	_, err := w.Post(testutil.At(2*time.Minute), a, "suppress", 1)
	require.NoError(t, err)
	_, err = w.Post(testutil.At(time.Minute), a, "rally", nil)
	require.NoError(t, err)
	_, err = w.Post(testutil.Epoch, w, "noop", nil)
	require.NoError(t, err)
	_, err = w.Post(testutil.At(time.Minute), a, "set_stance", "transit")
	require.NoError(t, err)

	require.NoError(t, w.Loop().Run(context.Background(), testutil.At(time.Hour)))

	assert.Equal(t, []string{
		"0s call world.noop",
		"1m0s call u-1.rally",
		"1m0s call u-1.set_stance",
		"2m0s call u-1.suppress",
	}, *trace)
	assert.Equal(t, 1, a.Suppression)
	assert.Equal(t, "transit", a.Stance)
	assert.Equal(t, testutil.At(time.Hour), w.Now())
	assert.Equal(t, 4, w.Loop().Executed())
}

func TestRun_StopsAtUntil(t *testing.T) {
	w, trace := newTestWorld(t)
	a := mustUnit(t, w, "u-1")
	_, _ = w.Post(testutil.At(time.Minute), a, "suppress", nil)
	_, _ = w.Post(testutil.At(3*time.Minute), a, "suppress", nil)

	require.NoError(t, w.Loop().Run(context.Background(), testutil.At(2*time.Minute)))
	assert.Len(t, *trace, 1)
	assert.Equal(t, testutil.At(2*time.Minute), w.Now())

	next, ok := w.Loop().Peek()
	require.True(t, ok)
	assert.Equal(t, testutil.At(3*time.Minute), next)

	require.NoError(t, w.Loop().Run(context.Background(), testutil.At(3*time.Minute)))
	assert.Len(t, *trace, 2, "events exactly at until run")
}

func TestStep(t *testing.T) {
	w, trace := newTestWorld(t)
	a := mustUnit(t, w, "u-1")
	_, _ = w.Post(testutil.At(time.Minute), a, "suppress", nil)
	_, _ = w.Post(testutil.At(time.Minute), a, "suppress", nil)
	_, _ = w.Post(testutil.At(2*time.Minute), a, "suppress", nil)

	ran, err := w.Loop().Step(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Len(t, *trace, 2)
	assert.Equal(t, testutil.At(time.Minute), w.Now())

	ran, _ = w.Loop().Step(context.Background())
	assert.True(t, ran)
	ran, _ = w.Loop().Step(context.Background())
	assert.False(t, ran)
}

func TestRun_SameInstantPostsRunInSamePass(t *testing.T) {
	w, trace := newTestWorld(t)
	a := mustUnit(t, w, "u-1")

	spawner := &dispatcher{uid: "spawner", fn: func(context.Context, ir.IRArray, ir.IRObject) error {
		_, err := w.Post(w.Now(), a, "suppress", nil)
		return err
	}}
	ev, err := schedule.NewEvent(spawner, "go", nil)
	require.NoError(t, err)
	require.NoError(t, w.Schedule().Post(testutil.At(time.Minute), ev))
	_, _ = w.Post(testutil.At(2*time.Minute), w, "noop", nil)

	require.NoError(t, w.Loop().Run(context.Background(), testutil.At(time.Hour)))
	assert.Equal(t, []string{
		"1m0s call spawner.go",
		"1m0s call u-1.suppress",
		"2m0s call world.noop",
	}, *trace)
}

// dispatcher is a minimal parent with a single method "go".
type dispatcher struct {
	uid string
	fn  schedule.Method
}

func (d *dispatcher) UID() string { return d.uid }

func (d *dispatcher) Method(name string) (schedule.Method, bool) {
	if name != "go" {
		return nil, false
	}
	return d.fn, true
}

func TestRun_EventErrorResumes(t *testing.T) {
	w, trace := newTestWorld(t)
	a := mustUnit(t, w, "u-1")

	_, _ = w.Post(testutil.At(time.Minute), a, "attack", "u-9")
	_, _ = w.Post(testutil.At(time.Minute), a, "suppress", nil)

	err := w.Loop().Run(context.Background(), testutil.At(time.Hour))
	require.Error(t, err)
	assert.True(t, IsEventError(err))
	assert.ErrorIs(t, err, unit.ErrUnknownUnit)

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 0, re.Index)
	assert.Equal(t, testutil.At(time.Minute), re.At)
	assert.Zero(t, a.Suppression)

	require.NoError(t, w.Loop().Run(context.Background(), testutil.At(time.Hour)))
	assert.Equal(t, 1, a.Suppression)
	assert.Len(t, *trace, 2)
}

func TestRun_Quota(t *testing.T) {
	w, _ := newTestWorld(t, WithMaxEventsPerBucket(5))

	var loop *dispatcher
	loop = &dispatcher{uid: "echo", fn: func(context.Context, ir.IRArray, ir.IRObject) error {
		ev, err := schedule.NewEvent(loop, "go", nil)
		if err != nil {
			return err
		}
		return w.Schedule().Post(w.Now(), ev)
	}}
	ev, err := schedule.NewEvent(loop, "go", nil)
	require.NoError(t, err)
	require.NoError(t, w.Schedule().Post(testutil.At(time.Minute), ev))

	err = w.Loop().Run(context.Background(), testutil.At(time.Hour))
	assert.True(t, IsQuotaError(err), "got %v", err)
	assert.Equal(t, 5, w.Loop().Executed())
}

func TestRun_ContextCancelled(t *testing.T) {
	w, _ := newTestWorld(t)
	_, _ = w.Post(testutil.At(time.Minute), w, "noop", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Loop().Run(ctx, testutil.At(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPost_PastTimestamp(t *testing.T) {
	w, _ := newTestWorld(t)
	_, err := w.Post(testutil.Epoch, w, "noop", nil)
	require.NoError(t, err, "the start instant is open")

	require.NoError(t, w.Loop().Run(context.Background(), testutil.At(time.Minute)))

	_, err = w.Post(testutil.At(30*time.Second), w, "noop", nil)
	assert.True(t, IsPastTimestamp(err))

	_, err = w.PostMemo(testutil.Epoch, w, "late", nil)
	assert.True(t, IsPastTimestamp(err))

	_, err = w.PostAfter(time.Second, w, "noop", nil)
	assert.NoError(t, err)
}

func TestPost_FinishedBucket(t *testing.T) {
	w, _ := newTestWorld(t)
	_, _ = w.Post(testutil.At(time.Minute), w, "noop", nil)

	_, err := w.Loop().Step(context.Background())
	require.NoError(t, err)

	_, err = w.Post(testutil.At(time.Minute), w, "noop", nil)
	assert.True(t, IsPastTimestamp(err), "bucket already finished")
}

func TestWorld_Registry(t *testing.T) {
	w, _ := newTestWorld(t)

	p, ok := w.Lookup(WorldUID)
	require.True(t, ok)
	assert.Same(t, w, p)

	p, ok = w.Lookup("u-2")
	require.True(t, ok)
	assert.Equal(t, "u-2", p.UID())

	_, ok = w.Lookup("u-3")
	assert.False(t, ok)

	assert.ErrorIs(t, w.AddUnit(unit.New("u-1", "dup", rifleCoy)), ErrDuplicateUnit)
	assert.Error(t, w.AddUnit(unit.New(WorldUID, "imposter", rifleCoy)))

	var names []string
	for _, u := range w.Units() {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"A Coy", "B Coy"}, names)

	_, ok = w.Method("log")
	assert.True(t, ok)
	_, ok = w.Method("explode")
	assert.False(t, ok)
}

func TestWorld_LogMethod(t *testing.T) {
	var buf bytes.Buffer
	w := NewWorld(testutil.Epoch, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	_, err := w.Post(testutil.At(time.Minute), w, "log", "H-hour")
	require.NoError(t, err)

	require.NoError(t, w.Loop().Run(context.Background(), testutil.At(time.Minute)))
	assert.Contains(t, buf.String(), "H-hour")
}

func TestResolveHook(t *testing.T) {
	type entry struct {
		at  time.Time
		uid string
		res toem.Result
	}
	var got []entry
	w, _ := newTestWorld(t, WithResolveHook(func(at time.Time, u *unit.Unit, res toem.Result) {
		got = append(got, entry{at, u.ID, res})
	}))
	a := mustUnit(t, w, "u-1")
	_, _ = w.Post(testutil.At(5*time.Minute), a, "attack", "u-2")

	require.NoError(t, w.Loop().Run(context.Background(), testutil.At(time.Hour)))
	require.Len(t, got, 1)
	assert.Equal(t, testutil.At(5*time.Minute), got[0].at)
	assert.Equal(t, "u-1", got[0].uid)
	assert.True(t, got[0].res.Success)
	assert.Positive(t, mustUnit(t, w, "u-2").Suppression)
}

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.NotEqual(t, id, UUIDv7Generator{}.Generate())
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

// memStore keeps saved schedules in memory.
type memStore struct {
	now     map[string]time.Time
	records map[string][]schedule.Record
}

func newMemStore() *memStore {
	return &memStore{now: map[string]time.Time{}, records: map[string][]schedule.Record{}}
}

func (m *memStore) SaveSchedule(_ context.Context, run string, now time.Time, records []schedule.Record) error {
	m.now[run] = now
	m.records[run] = records
	return nil
}

func (m *memStore) LoadSchedule(_ context.Context, run string) (time.Time, []schedule.Record, error) {
	recs, ok := m.records[run]
	if !ok {
		return time.Time{}, nil, fmt.Errorf("no run %q", run)
	}
	return m.now[run], recs, nil
}

func postPlan(t *testing.T, w *World) {
	t.Helper()
	a := mustUnit(t, w, "u-1")
	b := mustUnit(t, w, "u-2")
	for i := 1; i <= 4; i++ {
		_, err := w.Post(testutil.At(time.Duration(i)*time.Minute), a, "attack", "u-2")
		require.NoError(t, err)
		_, err = w.Post(testutil.At(time.Duration(i)*time.Minute), b, "suppress", 1)
		require.NoError(t, err)
	}
	_, err := w.PostMemo(testutil.At(3*time.Minute), a, "phase line", "PL RED")
	require.NoError(t, err)
}

func TestSaveRestore_PreservesExecution(t *testing.T) {
	ctx := context.Background()
	end := testutil.At(time.Hour)

	straight, straightTrace := newTestWorld(t)
	postPlan(t, straight)
	require.NoError(t, straight.Loop().Run(ctx, end))

	first, firstTrace := newTestWorld(t)
	postPlan(t, first)
	require.NoError(t, first.Loop().Run(ctx, testutil.At(2*time.Minute)))

	st := newMemStore()
	require.NoError(t, first.Save(ctx, st, "op-overlord"))
	assert.Len(t, st.records["op-overlord"], 5, "two buckets of two events plus one memo")

	second, secondTrace := newTestWorld(t)
	// Unit state is not part of the schedule; carry it over by hand.
	for _, u := range first.Units() {
		v := mustUnit(t, second, u.ID)
		v.Suppression, v.Fatigue, v.Morale = u.Suppression, u.Fatigue, u.Morale
	}
	require.NoError(t, second.Restore(ctx, st, "op-overlord"))
	assert.Equal(t, testutil.At(2*time.Minute), second.Now())
	require.Len(t, second.Schedule().FindMemos("phase line"), 1)

	require.NoError(t, second.Loop().Run(ctx, end))

	assert.Equal(t, *straightTrace, append(*firstTrace, *secondTrace...))
	for _, u := range straight.Units() {
		v := mustUnit(t, second, u.ID)
		assert.Equal(t, u.Counters(), v.Counters(), u.ID)
	}
}

func TestSaveRestore_MidBucket(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorld(t)
	a := mustUnit(t, w, "u-1")
	_, _ = w.Post(testutil.At(time.Minute), a, "attack", "u-9")
	_, _ = w.Post(testutil.At(time.Minute), a, "suppress", nil)

	require.Error(t, w.Loop().Run(ctx, testutil.At(time.Hour)))

	pending := w.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "suppress", pending[0].Method)
	assert.Equal(t, 1, pending[0].Seq)
}

func TestRestore_RebindFailure(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorld(t)
	postPlan(t, w)
	st := newMemStore()
	require.NoError(t, w.Save(ctx, st, "run"))

	empty := NewWorld(testutil.Epoch, WithLogger(quietLogger()))
	err := empty.Restore(ctx, st, "run")
	require.Error(t, err)
	assert.True(t, schedule.IsRebindError(err))
	assert.Equal(t, 9, empty.Schedule().Size(), "unbound events stay on the timeline")

	assert.Error(t, empty.Restore(ctx, st, "missing"))
}

func TestRun_TimedMove(t *testing.T) {
	w, trace := newTestWorld(t)
	a := mustUnit(t, w, "u-1")

	// 4 km/h covers 2 km in 30 minutes.
	_, err := w.Post(testutil.At(time.Minute), a, "move", []any{2000.0, 0})
	require.NoError(t, err)

	require.NoError(t, w.Loop().Run(context.Background(), testutil.At(16*time.Minute)))
	require.NotNil(t, a.Leg)
	assert.Equal(t, geo.V(0, 0), a.Position)
	assert.InDelta(t, 1000.0, a.PositionAt(w.Now()).X, 1e-6)

	require.NoError(t, w.Loop().Run(context.Background(), testutil.At(time.Hour)))
	assert.Equal(t, []string{
		"1m0s call u-1.move",
		"31m0s call u-1.arrive",
	}, *trace)
	assert.Equal(t, geo.V(2000, 0), a.Position)
	assert.Nil(t, a.Leg)
}
