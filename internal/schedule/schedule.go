package schedule

import (
	"slices"
	"sort"
	"time"
)

// Schedule is a sorted multi-map from timestamp to events.
//
// Timestamps are keyed by their UnixNano value, so two time.Time values for
// the same instant in different locations share a bucket.
type Schedule struct {
	buckets map[int64]*bucket
	keys    []int64 // ascending, one entry per bucket
}

type bucket struct {
	at     time.Time
	events []*Event
}

// Located is an event together with its position on the timeline.
type Located struct {
	At    time.Time
	Index int
	Event *Event
}

// New returns an empty schedule.
func New() *Schedule {
	return &Schedule{buckets: make(map[int64]*bucket)}
}

// Post appends ev to the bucket at ts, creating the bucket if absent.
// An event can only be stored at one timestamp at a time.
func (s *Schedule) Post(ts time.Time, ev *Event) error {
	if ev == nil {
		return ErrNilEvent
	}
	if ev.posted {
		return ErrAlreadyPosted
	}

	key := ts.UnixNano()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{at: ts}
		s.buckets[key] = b
		i, _ := slices.BinarySearch(s.keys, key)
		s.keys = slices.Insert(s.keys, i, key)
	}
	b.events = append(b.events, ev)
	ev.posted = true
	return nil
}

// PostCall builds an event for parent.method(args) and posts it at ts.
// Argument shapes are normalized as in NewEvent.
func (s *Schedule) PostCall(ts time.Time, parent Dispatcher, method string, args any) (*Event, error) {
	ev, err := NewEvent(parent, method, args)
	if err != nil {
		return nil, err
	}
	return ev, s.Post(ts, ev)
}

// PostMemo builds a memo and posts it at ts.
func (s *Schedule) PostMemo(ts time.Time, parent Parent, tag string, data any) (*Event, error) {
	ev, err := NewMemo(parent, tag, data)
	if err != nil {
		return nil, err
	}
	return ev, s.Post(ts, ev)
}

// NextAfter returns the smallest key strictly greater than ts.
func (s *Schedule) NextAfter(ts time.Time) (time.Time, bool) {
	key := ts.UnixNano()
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] > key })
	if i == len(s.keys) {
		return time.Time{}, false
	}
	return s.buckets[s.keys[i]].at, true
}

// First returns the earliest key.
func (s *Schedule) First() (time.Time, bool) {
	if len(s.keys) == 0 {
		return time.Time{}, false
	}
	return s.buckets[s.keys[0]].at, true
}

// EventsAt returns a copy of the bucket at ts in posting order.
// A missing key yields an empty slice.
func (s *Schedule) EventsAt(ts time.Time) []*Event {
	b, ok := s.buckets[ts.UnixNano()]
	if !ok {
		return []*Event{}
	}
	return slices.Clone(b.events)
}

// Len returns the number of events currently stored at ts. Drivers call it
// on every iteration because executing events may append to the bucket.
func (s *Schedule) Len(ts time.Time) int {
	b, ok := s.buckets[ts.UnixNano()]
	if !ok {
		return 0
	}
	return len(b.events)
}

// At returns the i-th event at ts, or nil when out of range.
func (s *Schedule) At(ts time.Time, i int) *Event {
	b, ok := s.buckets[ts.UnixNano()]
	if !ok || i < 0 || i >= len(b.events) {
		return nil
	}
	return b.events[i]
}

// ShredUpTo removes every bucket whose key is <= ts and returns how many
// were removed.
func (s *Schedule) ShredUpTo(ts time.Time) int {
	key := ts.UnixNano()
	n := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] > key })
	for _, k := range s.keys[:n] {
		s.dropBucket(k)
	}
	s.keys = s.keys[n:]
	return n
}

// Remove deletes the bucket at ts. Returns false if there was none.
func (s *Schedule) Remove(ts time.Time) bool {
	key := ts.UnixNano()
	i, found := slices.BinarySearch(s.keys, key)
	if !found {
		return false
	}
	s.dropBucket(key)
	s.keys = slices.Delete(s.keys, i, i+1)
	return true
}

func (s *Schedule) dropBucket(key int64) {
	if b, ok := s.buckets[key]; ok {
		for _, ev := range b.events {
			ev.posted = false
		}
	}
	delete(s.buckets, key)
}

// Keys returns every timestamp in ascending order.
func (s *Schedule) Keys() []time.Time {
	out := make([]time.Time, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.buckets[k].at
	}
	return out
}

// Size returns the total number of stored events.
func (s *Schedule) Size() int {
	n := 0
	for _, b := range s.buckets {
		n += len(b.events)
	}
	return n
}

// Each visits events in execution order until fn returns false.
func (s *Schedule) Each(fn func(Located) bool) {
	for _, k := range s.keys {
		b := s.buckets[k]
		for i, ev := range b.events {
			if !fn(Located{At: b.at, Index: i, Event: ev}) {
				return
			}
		}
	}
}

// FindMemos returns every memo with the given tag in execution order.
// The search is a linear scan.
func (s *Schedule) FindMemos(tag string) []Located {
	var found []Located
	s.Each(func(l Located) bool {
		if l.Event.Kind == KindMemo && l.Event.Tag == tag {
			found = append(found, l)
		}
		return true
	})
	return found
}
