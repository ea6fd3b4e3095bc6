// Package sim drives a schedule forward in simulated time.
//
// A World owns the schedule, the units and the simulation clock. Its Loop
// is the only caller that executes events: it pulls the next timestamp,
// runs that bucket in posting order and re-reads the bucket length after
// every event, so work posted for the current instant runs in the same pass.
//
// Everything here is single-threaded. Callers must not touch a World from
// more than one goroutine.
package sim
