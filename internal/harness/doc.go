// Package harness runs scripted simulation scenarios and checks their
// outcome.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: ambush
//	description: "A Coy engages B Coy from a hasty defence"
//	variates: [0.1]            # or seed: 42
//	catalogue: templates.yaml  # YAML file, or a directory of CUE files
//	units:
//	  - uid: a-coy
//	    name: A Coy
//	    template: rifle-coy
//	    position: {x: 0, y: 0}
//	    hq: bn-hq
//	events:
//	  - at: 1m
//	    parent: a-coy
//	    method: attack
//	    args: [b-coy]
//	  - at: 2m
//	    parent: world
//	    memo: phase-line
//	    data: {name: "PL RED"}
//	run_until: 10m
//	assertions:
//	  - type: unit_counter
//	    unit: b-coy
//	    counter: suppression
//	    value: 5
//
// # Assertion Types
//
//   - unit_counter: a unit's morale, fatigue or suppression at the end
//   - memo_count: memos with a tag left on the schedule
//   - trace_order: executed events appear in this order
//   - trace_count: an executed event appears exactly N times
//   - band: a sitrep band label (morale, fatigue, suppression, command)
//
// Events are named as in logs, "call a-coy.attack" or "memo world#phase-line".
//
// # Determinism
//
// Rolls come from the scenario's variates, cycled, or from a PCG source
// seeded with seed. Trace offsets are relative to the start, so a scenario
// always produces the same trace and golden files can pin it.
package harness
