package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/opcon/internal/c4i"
	"github.com/roach88/opcon/internal/geo"
	"github.com/roach88/opcon/internal/sim"
)

// AssertionContext is the end state assertions read.
type AssertionContext struct {
	World  *sim.World
	Facade *c4i.Facade

	// Projector maps unit positions back to lat/lon. Nil without an origin.
	Projector *geo.Projector
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] +%s %s\n", i+1, event.Offset, event.Name())
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. Evaluation does not stop at the first failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertUnitCounter:
		return assertUnitCounter(actx, a)
	case AssertMemoCount:
		return assertMemoCount(actx, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertBand:
		return assertBand(actx, a)
	case AssertLocation:
		return assertLocation(actx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertUnitCounter(actx *AssertionContext, a Assertion) error {
	u, ok := actx.World.Unit(a.Unit)
	if !ok {
		return fmt.Errorf("unknown unit %q", a.Unit)
	}
	got, err := u.Counter(a.Counter)
	if err != nil {
		return err
	}
	if got != a.Value {
		return &AssertionError{
			Type:     AssertUnitCounter,
			Expected: fmt.Sprintf("%s %s = %d", a.Unit, a.Counter, a.Value),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// assertMemoCount counts memos still on the schedule, executed or not.
func assertMemoCount(actx *AssertionContext, a Assertion) error {
	got := len(actx.World.Schedule().FindMemos(a.Tag))
	if got != a.Count {
		return &AssertionError{
			Type:     AssertMemoCount,
			Expected: fmt.Sprintf("%d memos tagged %q", a.Count, a.Tag),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// assertTraceOrder checks that events first appear in the given order.
// Other events may come between them.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		name := event.Name()
		if _, seen := positions[name]; !seen {
			positions[name] = i + 1
		}
	}

	for _, name := range a.Events {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", a.Events),
				Actual:   fmt.Sprintf("missing event: %s", name),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Events); i++ {
		prev, curr := a.Events[i-1], a.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Name() == a.Event {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertBand reads the label from the unit's situation report.
func assertBand(actx *AssertionContext, a Assertion) error {
	u, ok := actx.World.Unit(a.Unit)
	if !ok {
		return fmt.Errorf("unknown unit %q", a.Unit)
	}
	r := actx.Facade.SituationReport(u)

	var got string
	switch a.Factor {
	case "morale":
		got = r.Morale
	case "fatigue":
		got = r.Fatigue
	case "suppression":
		got = r.Suppression
	case "command":
		got = r.Command
	default:
		return fmt.Errorf("unknown band factor %q", a.Factor)
	}
	if got != a.Label {
		return &AssertionError{
			Type:     AssertBand,
			Expected: fmt.Sprintf("%s %s band %s", a.Unit, a.Factor, a.Label),
			Actual:   got,
		}
	}
	return nil
}

// assertLocation checks the great-circle distance between the unit's
// position and the expected coordinate.
func assertLocation(actx *AssertionContext, a Assertion) error {
	if actx.Projector == nil {
		return fmt.Errorf("location assertion without an origin")
	}
	u, ok := actx.World.Unit(a.Unit)
	if !ok {
		return fmt.Errorf("unknown unit %q", a.Unit)
	}
	want := geo.LatLon{Lat: a.Lat, Lon: a.Lon}
	got := actx.Projector.ToLatLon(u.Position)
	if d := geo.Haversine(got, want); d > a.Within {
		return &AssertionError{
			Type:     AssertLocation,
			Expected: fmt.Sprintf("%s within %gm of %.6f,%.6f", a.Unit, a.Within, want.Lat, want.Lon),
			Actual:   fmt.Sprintf("%.6f,%.6f (%.1fm away)", got.Lat, got.Lon, d),
		}
	}
	return nil
}
