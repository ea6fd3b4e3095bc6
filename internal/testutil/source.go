package testutil

import (
	"fmt"
	"sync"
)

// FixedSource replays a predetermined sequence of uniform variates.
//
// This makes argument resolution and blame shuffling reproducible: the
// same sequence always yields the same outcomes.
//
// Thread-safety: FixedSource is safe for concurrent use via internal mutex.
type FixedSource struct {
	mu     sync.Mutex
	values []float64
	idx    int
}

// NewFixedSource creates a source that returns values in order.
//
// Example:
//
//	src := NewFixedSource(0.49, 0.51)
//	src.Float64() // 0.49
//	src.Float64() // 0.51
//	src.Float64() // panic: all variates consumed
func NewFixedSource(values ...float64) *FixedSource {
	return &FixedSource{values: values}
}

// Float64 returns the next predetermined variate.
//
// Panics when the sequence is exhausted so a test that draws more than it
// planned fails loudly.
func (s *FixedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx >= len(s.values) {
		panic(fmt.Sprintf("FixedSource: all %d variates consumed", len(s.values)))
	}
	v := s.values[s.idx]
	s.idx++
	return v
}

// Remaining returns how many variates have not been drawn.
func (s *FixedSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values) - s.idx
}

// ConstSource always returns the same variate.
type ConstSource float64

// Float64 returns the constant.
func (c ConstSource) Float64() float64 { return float64(c) }
