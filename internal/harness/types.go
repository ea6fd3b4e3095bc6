package harness

import (
	"time"

	"github.com/roach88/opcon/internal/ir"
)

// TraceEvent is one executed schedule event. Offsets are relative to the
// scenario start so traces do not depend on the calendar.
type TraceEvent struct {
	Offset time.Duration `json:"offset"`
	Index  int           `json:"index"`
	Kind   string        `json:"kind"` // "call" or "memo"
	Parent string        `json:"parent"`
	Method string        `json:"method,omitempty"`
	Tag    string        `json:"tag,omitempty"`
	Args   ir.IRArray    `json:"args,omitempty"`
	Kwargs ir.IRObject   `json:"kwargs,omitempty"`
	Error  string        `json:"error,omitempty"`

	// Resolutions are the TOEM arguments the event resolved, in order.
	Resolutions []TraceResolution `json:"resolutions,omitempty"`
}

// Name renders the event the way schedule.Event.String does, which is the
// form trace assertions match against.
func (e TraceEvent) Name() string {
	if e.Kind == "memo" {
		return "memo " + e.Parent + "#" + e.Tag
	}
	return "call " + e.Parent + "." + e.Method
}

// TraceResolution is the float-free part of a toem.Result.
type TraceResolution struct {
	Unit      string   `json:"unit"`
	Label     string   `json:"label"`
	P0        int      `json:"p0"`
	PFinal    int      `json:"p_final"`
	Increment int      `json:"increment"`
	Success   bool     `json:"success"`
	Blame     []string `json:"blame,omitempty"`
}

// UnitState is a unit's counters at the end of a run.
type UnitState struct {
	UID         string `json:"uid"`
	Stance      string `json:"stance"`
	Morale      int    `json:"morale"`
	Fatigue     int    `json:"fatigue"`
	Suppression int    `json:"suppression"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Units  []UnitState  `json:"units"`
	Errors []string     `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// EventErrors returns the trace entries whose method failed.
func (r *Result) EventErrors() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Error != "" {
			out = append(out, e)
		}
	}
	return out
}
