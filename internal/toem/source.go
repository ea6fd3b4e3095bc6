package toem

import (
	"math/rand/v2"
	"sync"
)

// Source produces uniform variates in [0, 1).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
}

// globalSource draws from the math/rand/v2 top-level generator, which is
// safe for concurrent use and seeded randomly per process.
type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

var (
	defaultMu     sync.RWMutex
	defaultSource Source = globalSource{}
)

// DefaultSource returns the process-wide source used by arguments that were
// built without WithSource.
func DefaultSource() Source {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultSource
}

// SetDefaultSource replaces the process-wide source. A nil source restores
// the random default. The previous source is returned so tests can restore
// it.
func SetDefaultSource(s Source) Source {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultSource
	if s == nil {
		s = globalSource{}
	}
	defaultSource = s
	return prev
}

// NewSeededSource returns a deterministic PCG-backed source. It is not safe
// for concurrent use.
func NewSeededSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// shuffleItems permutes items in place with a Fisher-Yates walk driven by src.
// It draws len(items)-1 variates.
func shuffleItems(items []Item, src Source) {
	for i := len(items) - 1; i > 0; i-- {
		j := int(src.Float64() * float64(i+1))
		if j > i {
			j = i
		}
		items[i], items[j] = items[j], items[i]
	}
}
