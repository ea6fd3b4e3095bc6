package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/opcon/internal/schedule"
)

// ScheduleStore persists the pending part of a run's schedule.
// Implemented by store.Store.
type ScheduleStore interface {
	SaveSchedule(ctx context.Context, run string, now time.Time, records []schedule.Record) error
	LoadSchedule(ctx context.Context, run string) (now time.Time, records []schedule.Record, err error)
}

// Pending returns the records the loop has not executed yet, in execution
// order. Sequence numbers are those of the live schedule.
func (w *World) Pending() []schedule.Record {
	at, next, inBucket := w.loop.Cursor()
	started := w.loop.started
	var out []schedule.Record
	for _, r := range w.sched.Records() {
		switch {
		case !started && r.At.Before(w.clock.Now()):
			continue
		case started && r.At.Before(at):
			continue
		case started && r.At.Equal(at) && (!inBucket || r.Seq < next):
			continue
		}
		out = append(out, r)
	}
	return out
}

// Save writes the pending schedule and the clock under run. Events are
// stored by parent id and method name, so the same units must be
// registered before Restore.
func (w *World) Save(ctx context.Context, st ScheduleStore, run string) error {
	records := w.Pending()
	if err := st.SaveSchedule(ctx, run, w.clock.Now(), records); err != nil {
		return fmt.Errorf("save run %q: %w", run, err)
	}
	w.logger.Info("schedule saved", "run", run, "events", len(records), "sim_time", w.clock.Now())
	return nil
}

// Restore replaces the world's schedule with the one saved under run and
// moves the clock to the saved time. Every event is rebound against the
// world's registered units; rebind failures are returned joined, and the
// affected events stay on the timeline detached.
func (w *World) Restore(ctx context.Context, st ScheduleStore, run string) error {
	now, records, err := st.LoadSchedule(ctx, run)
	if err != nil {
		return fmt.Errorf("restore run %q: %w", run, err)
	}
	sched, err := schedule.FromRecords(records)
	if err != nil {
		return fmt.Errorf("restore run %q: %w", run, err)
	}
	if err := w.clock.Advance(now); err != nil {
		return fmt.Errorf("restore run %q: %w", run, err)
	}

	w.sched = sched
	w.loop.restart()
	rebindErr := sched.PostDeserialize(w)
	w.logger.Info("schedule restored", "run", run, "events", len(records), "sim_time", now)
	return rebindErr
}
