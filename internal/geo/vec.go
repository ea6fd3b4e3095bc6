// Package geo provides the planar and geographic primitives used by unit
// positions: a metric 2-vector, a local lat/lon projector and great-circle
// distance.
package geo

import (
	"fmt"
	"math"
)

// Vec is a point or displacement in the local planar frame, in metres.
// X grows east, Y grows north.
type Vec struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// V is a convenience constructor for Vec.
func V(x, y float64) Vec { return Vec{X: x, Y: y} }

// Zero is the frame origin.
var Zero = Vec{}

// Add returns v + o.
func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }

// Scale returns v multiplied by k.
func (v Vec) Scale(k float64) Vec { return Vec{v.X * k, v.Y * k} }

// Len returns the euclidean length of v.
func (v Vec) Len() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the euclidean distance between v and o.
func (v Vec) Dist(o Vec) float64 { return v.Sub(o).Len() }

// Toward returns the point at most step metres from v along the line to
// target. It never overshoots.
func (v Vec) Toward(target Vec, step float64) Vec {
	d := v.Dist(target)
	if d <= step || d == 0 {
		return target
	}
	return v.Add(target.Sub(v).Scale(step / d))
}

func (v Vec) String() string {
	return fmt.Sprintf("(%.0f, %.0f)", v.X, v.Y)
}
