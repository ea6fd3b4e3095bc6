package testutil

import "time"

// Epoch is the fixed simulation start used by deterministic tests.
var Epoch = time.Date(1944, time.June, 6, 0, 0, 0, 0, time.UTC)

// At returns Epoch shifted by d.
//
// Example:
//
//	t1 := testutil.At(time.Minute) // 1944-06-06T00:01:00Z
func At(d time.Duration) time.Time {
	return Epoch.Add(d)
}
