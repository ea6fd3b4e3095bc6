package c4i

import (
	"fmt"
	"strings"

	"github.com/roach88/opcon/internal/unit"
)

// Report is a situation report for one unit.
type Report struct {
	UID    string `json:"uid"`
	Name   string `json:"name"`
	Stance string `json:"stance"`
	HQ     string `json:"hq,omitempty"`

	Deploy      float64 `json:"deploy"`
	HumanFactor float64 `json:"human_factor"`
	Comm        float64 `json:"comm"`

	Morale      string `json:"morale"`
	Fatigue     string `json:"fatigue"`
	Suppression string `json:"suppression"`
	Command     string `json:"command"`
}

// SituationReport summarises u.
func (f *Facade) SituationReport(u *unit.Unit) Report {
	r := Report{
		UID:         u.ID,
		Name:        u.Name,
		Stance:      u.Stance,
		Deploy:      LevelDeployState(u.Stance),
		HumanFactor: f.LevelHumanFactor(u),
		Comm:        f.LevelCommToHQ(u),
		Morale:      MoraleBands.Label(f.CounterFactor(u.Morale)),
		Fatigue:     FatigueBands.Label(f.CounterFactor(u.Fatigue)),
		Suppression: SuppressionBands.Label(f.CounterFactor(u.Suppression)),
	}
	if hq, ok := u.HigherHQ(); ok {
		r.HQ = hq.ID
	}
	r.Command = CommandBands.Label(r.Comm)
	return r
}

// String renders the report as a fixed-layout text block.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SITREP %s (%s)\n", r.Name, r.UID)
	fmt.Fprintf(&b, "  stance:      %s (deploy %.2f)\n", r.Stance, r.Deploy)
	if r.HQ != "" {
		fmt.Fprintf(&b, "  higher hq:   %s\n", r.HQ)
	}
	fmt.Fprintf(&b, "  morale:      %s\n", r.Morale)
	fmt.Fprintf(&b, "  fatigue:     %s\n", r.Fatigue)
	fmt.Fprintf(&b, "  suppression: %s\n", r.Suppression)
	fmt.Fprintf(&b, "  human:       %.2f\n", r.HumanFactor)
	fmt.Fprintf(&b, "  command:     %s (comm %.2f)\n", r.Command, r.Comm)
	return b.String()
}
