package toem

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConcept is returned for a phrase that is not in the lexicon.
	ErrInvalidConcept = errors.New("invalid concept")

	// ErrResolved is returned when an argument is mutated after resolution.
	ErrResolved = errors.New("argument already resolved")

	// ErrCycle is returned when adding a sub-argument would make the
	// argument reachable from itself.
	ErrCycle = errors.New("argument cycle")

	// ErrVariateRange is returned when an injected variate is outside [0, 1).
	ErrVariateRange = errors.New("variate outside [0, 1)")
)

// ConceptError names the phrase that failed lexicon lookup.
type ConceptError struct {
	Phrase string
}

// Error implements the error interface.
func (e *ConceptError) Error() string {
	return fmt.Sprintf("%v: %q", ErrInvalidConcept, e.Phrase)
}

// Unwrap returns ErrInvalidConcept so errors.Is matches.
func (e *ConceptError) Unwrap() error {
	return ErrInvalidConcept
}

// IsInvalidConcept returns true if err is or wraps an invalid concept error.
func IsInvalidConcept(err error) bool {
	return errors.Is(err, ErrInvalidConcept)
}
