package toem

import "math"

// Exponent bounds. PValue clamps to this range to stay clear of float64
// underflow; at MaxExponent the curve is exactly 1.0.
const (
	MinExponent = -60
	MaxExponent = 60
)

// PValue maps a probability exponent to a probability in (0, 1]:
//
//	max(1, 2^(p+1) - 1) / 2^(|p|+1)
//
// PValue(0) is 0.5, PValue(1) is 0.75, PValue(-2) is 0.125.
// The curve is monotone non-decreasing in p.
func PValue(p int) float64 {
	p = clampExponent(p)
	num := math.Max(1, math.Exp2(float64(p+1))-1)
	return num / math.Exp2(float64(absInt(p)+1))
}

func clampExponent(p int) int {
	if p < MinExponent {
		return MinExponent
	}
	if p > MaxExponent {
		return MaxExponent
	}
	return p
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
