package toem

import "sort"

// lexicon maps qualitative phrases to probability exponent offsets.
// Read-only after package initialization.
var lexicon = map[string]int{
	// base probabilities
	"":              0,
	"neutral":       0,
	"likely":        1,
	"very likely":   2,
	"unlikely":      -2,
	"very unlikely": -4,

	// task difficulty
	"basic task":   4,
	"trained task": 0,
	"expert task":  -4,

	// skill level
	"untrained":    -2,
	"green":        0,
	"regular":      2,
	"professional": 2,
	"elite":        4,
}

// Lookup returns the exponent offset for a concept phrase.
// Unknown phrases fail with a *ConceptError wrapping ErrInvalidConcept.
func Lookup(phrase string) (int, error) {
	offset, ok := lexicon[phrase]
	if !ok {
		return 0, &ConceptError{Phrase: phrase}
	}
	return offset, nil
}

// IsConcept reports whether phrase is in the lexicon.
func IsConcept(phrase string) bool {
	_, ok := lexicon[phrase]
	return ok
}

// Concepts returns every legal phrase in sorted order.
func Concepts() []string {
	phrases := make([]string, 0, len(lexicon))
	for p := range lexicon {
		phrases = append(phrases, p)
	}
	sort.Strings(phrases)
	return phrases
}
