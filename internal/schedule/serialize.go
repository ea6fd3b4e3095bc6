package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/opcon/internal/ir"
)

// Record is the persisted form of one event: a parent id instead of a live
// reference, a method name instead of a bound function.
type Record struct {
	At       time.Time
	Seq      int // position within the bucket
	Kind     Kind
	ParentID string
	Method   string
	Args     ir.IRArray
	Kwargs   ir.IRObject
	Tag      string
	Data     ir.IRValue
}

// PreSerialize replaces every live parent with its UID and drops bound
// functions, keeping the method names.
func (s *Schedule) PreSerialize() {
	s.Each(func(l Located) bool {
		l.Event.detach()
		return true
	})
}

// PostDeserialize rebinds every detached event. Parent ids are resolved
// against world; call events then look their method up in the parent's
// dispatch table. Events that already hold a live parent are only rebound.
//
// Every failure is collected; the returned error joins one *RebindError per
// event that could not be bound. Such events stay detached and fail again if
// executed.
func (s *Schedule) PostDeserialize(world World) error {
	var errs []error
	s.Each(func(l Located) bool {
		ev := l.Event
		if ev.parent == nil {
			if world == nil {
				errs = append(errs, &RebindError{ParentID: ev.ParentID, Method: ev.Method, Reason: "no world to resolve parent"})
				return true
			}
			p, ok := world.Lookup(ev.ParentID)
			if !ok {
				errs = append(errs, &RebindError{ParentID: ev.ParentID, Method: ev.Method, Reason: "parent not found"})
				return true
			}
			ev.parent = p
		}
		if ev.Kind == KindCall && ev.fn == nil {
			if err := ev.bind(); err != nil {
				errs = append(errs, err)
			}
		}
		return true
	})
	return errors.Join(errs...)
}

// Records returns the persisted layout in execution order. Live events are
// described by their parent's UID without being detached.
func (s *Schedule) Records() []Record {
	var out []Record
	s.Each(func(l Located) bool {
		ev := l.Event
		parentID := ev.ParentID
		if ev.parent != nil {
			parentID = ev.parent.UID()
		}
		out = append(out, Record{
			At:       l.At,
			Seq:      l.Index,
			Kind:     ev.Kind,
			ParentID: parentID,
			Method:   ev.Method,
			Args:     ev.Args,
			Kwargs:   ev.Kwargs,
			Tag:      ev.Tag,
			Data:     ev.Data,
		})
		return true
	})
	return out
}

// FromRecords rebuilds a schedule of detached events. Records are ordered by
// (At, Seq) before posting, so input order does not matter. Call
// PostDeserialize before executing.
func FromRecords(records []Record) (*Schedule, error) {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].At.Equal(sorted[j].At) {
			return sorted[i].At.Before(sorted[j].At)
		}
		return sorted[i].Seq < sorted[j].Seq
	})

	s := New()
	for i, r := range sorted {
		if r.Kind != KindCall && r.Kind != KindMemo {
			return nil, fmt.Errorf("record %d: unknown kind %d", i, int(r.Kind))
		}
		ev := &Event{
			Kind:     r.Kind,
			ParentID: r.ParentID,
			Method:   r.Method,
			Args:     r.Args,
			Kwargs:   r.Kwargs,
			Tag:      r.Tag,
			Data:     r.Data,
		}
		if err := s.Post(r.At, ev); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return s, nil
}
