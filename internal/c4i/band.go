package c4i

import "math"

// Band is one row of a banding table.
type Band struct {
	Threshold float64
	Label     string
}

// Table maps a factor in [0, 1] to a verbal label. Rows are in ascending
// threshold order and the first row is the floor.
type Table []Band

// Label returns the label of the largest threshold strictly below x.
// Inputs at or below the floor threshold, and NaN, return the floor label.
func (t Table) Label(x float64) string {
	if len(t) == 0 {
		return ""
	}
	label := t[0].Label
	if math.IsNaN(x) {
		return label
	}
	for _, b := range t[1:] {
		if b.Threshold >= x {
			break
		}
		label = b.Label
	}
	return label
}

// Labels returns the labels from floor to top.
func (t Table) Labels() []string {
	out := make([]string, len(t))
	for i, b := range t {
		out[i] = b.Label
	}
	return out
}

func table(floor string) Table {
	return Table{
		{0.0, floor},
		{0.25, "BLACK"},
		{0.5, "RED"},
		{0.75, "AMBER"},
		{0.9, "GREEN"},
	}
}

// Banding tables.
var (
	MoraleBands      = table("Broken")
	CommandBands     = table("Broken")
	FatigueBands     = table("Exhausted")
	SuppressionBands = table("Paralyzed")
)
