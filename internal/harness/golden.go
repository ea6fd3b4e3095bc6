package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/opcon/internal/ir"
)

// Snapshot renders a scenario's trace and final unit states as canonical
// JSON. Offsets are written as Go duration strings.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(ir.IRArray, len(result.Trace))
	for i, e := range result.Trace {
		obj := ir.IRObject{
			"offset": ir.IRString(e.Offset.String()),
			"index":  ir.IRInt(e.Index),
			"kind":   ir.IRString(e.Kind),
			"parent": ir.IRString(e.Parent),
		}
		if e.Method != "" {
			obj["method"] = ir.IRString(e.Method)
		}
		if e.Tag != "" {
			obj["tag"] = ir.IRString(e.Tag)
		}
		if len(e.Args) > 0 {
			obj["args"] = e.Args
		}
		if len(e.Kwargs) > 0 {
			obj["kwargs"] = e.Kwargs
		}
		if e.Error != "" {
			obj["error"] = ir.IRString(e.Error)
		}
		if len(e.Resolutions) > 0 {
			rs := make(ir.IRArray, len(e.Resolutions))
			for j, r := range e.Resolutions {
				rs[j] = resolutionValue(r)
			}
			obj["resolutions"] = rs
		}
		trace[i] = obj
	}

	units := make(ir.IRArray, len(result.Units))
	for i, u := range result.Units {
		units[i] = ir.IRObject{
			"uid":         ir.IRString(u.UID),
			"stance":      ir.IRString(u.Stance),
			"morale":      ir.IRInt(u.Morale),
			"fatigue":     ir.IRInt(u.Fatigue),
			"suppression": ir.IRInt(u.Suppression),
		}
	}

	return ir.MarshalCanonical(ir.IRObject{
		"scenario": ir.IRString(name),
		"trace":    trace,
		"units":    units,
	})
}

func resolutionValue(r TraceResolution) ir.IRObject {
	obj := ir.IRObject{
		"unit":      ir.IRString(r.Unit),
		"label":     ir.IRString(r.Label),
		"p0":        ir.IRInt(r.P0),
		"p_final":   ir.IRInt(r.PFinal),
		"increment": ir.IRInt(r.Increment),
		"success":   ir.IRBool(r.Success),
	}
	if len(r.Blame) > 0 {
		blame := make(ir.IRArray, len(r.Blame))
		for i, b := range r.Blame {
			blame[i] = ir.IRString(b)
		}
		obj["blame"] = blame
	}
	return obj
}

// RunWithGolden runs a scenario and compares its snapshot against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snap, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snap)
	return nil
}
