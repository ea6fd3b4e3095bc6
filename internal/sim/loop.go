package sim

import (
	"context"
	"time"
)

// Loop executes a world's schedule in timestamp order.
type Loop struct {
	w     *World
	quota bucketQuota

	started  bool
	cur      time.Time // bucket being executed, or the last one finished
	idx      int       // next index within cur
	inBucket bool
	executed int
}

func newLoop(w *World) *Loop {
	return &Loop{w: w, quota: bucketQuota{limit: w.quota}}
}

// Executed returns the number of events run so far.
func (l *Loop) Executed() int { return l.executed }

// Cursor reports the loop position: the current or last bucket, the next
// index within it, and whether that bucket is still being executed.
func (l *Loop) Cursor() (at time.Time, next int, inBucket bool) {
	return l.cur, l.idx, l.inBucket
}

// finished reports whether the loop has completed the bucket at ts.
func (l *Loop) finished(ts time.Time) bool {
	return l.started && !l.inBucket && ts.Equal(l.cur)
}

// nextKey returns the next bucket to run. Before the first step the bucket
// at the clock's own instant is included.
func (l *Loop) nextKey() (time.Time, bool) {
	if !l.started {
		return l.w.sched.NextAfter(l.w.clock.Now().Add(-time.Nanosecond))
	}
	return l.w.sched.NextAfter(l.cur)
}

// Peek returns the timestamp Step would execute next.
func (l *Loop) Peek() (time.Time, bool) {
	if l.inBucket {
		return l.cur, true
	}
	return l.nextKey()
}

// Step executes the rest of one timestamp bucket and reports whether there
// was one. A failed event stops the step; the next Step resumes after it.
func (l *Loop) Step(ctx context.Context) (bool, error) {
	if !l.inBucket {
		ts, ok := l.nextKey()
		if !ok {
			return false, nil
		}
		if err := l.w.clock.Advance(ts); err != nil {
			return false, err
		}
		l.started = true
		l.cur, l.idx, l.inBucket = ts, 0, true
		l.quota.reset()
	}

	sched := l.w.sched
	for l.idx < sched.Len(l.cur) {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		if err := l.quota.check(l.cur); err != nil {
			return true, err
		}

		i := l.idx
		ev := sched.At(l.cur, i)
		l.idx++
		l.executed++

		err := ev.Execute(ctx)
		if l.w.observe != nil {
			l.w.observe(Executed{At: l.cur, Index: i, Event: ev, Err: err})
		}
		if err != nil {
			l.w.logger.Error("event failed",
				"event", ev.String(),
				"sim_time", l.cur,
				"index", i,
				"error", err,
			)
			return true, newEventError(l.cur, i, ev.String(), err)
		}
		l.w.logger.Debug("event executed", "event", ev.String(), "sim_time", l.cur, "index", i)
	}
	l.inBucket = false
	return true, nil
}

// Run executes every bucket whose timestamp is at or before until, then
// advances the clock to until. It stops at the first failed event and
// returns it wrapped in a *RuntimeError; calling Run again resumes with the
// next event.
func (l *Loop) Run(ctx context.Context, until time.Time) error {
	for {
		ts, ok := l.Peek()
		if !ok || ts.After(until) {
			break
		}
		if _, err := l.Step(ctx); err != nil {
			return err
		}
	}
	if until.After(l.w.clock.Now()) {
		return l.w.clock.Advance(until)
	}
	return nil
}

// restart forgets the loop position. Used after a restore, where the
// schedule only holds events that have not run.
func (l *Loop) restart() {
	l.started = false
	l.inBucket = false
	l.idx = 0
	l.cur = time.Time{}
}
