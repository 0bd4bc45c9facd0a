// Package kernel provides the quadratic B-spline interpolation weights shared by
// every particle-grid transfer.
package kernel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Support is the number of nodes per axis touched by the quadratic kernel.
const Support = 3

// Quadratic is the 1D quadratic B-spline evaluated at a normalized offset x,
// measured in node spacings. It is zero for |x| >= 1.5.
func Quadratic(x float64) float64 {
	x = math.Abs(x)
	switch {
	case x < 0.5:
		return 0.75 - x*x
	case x < 1.5:
		d := 1.5 - x
		return 0.5 * d * d
	default:
		return 0
	}
}

// Weight is the separable 3D weight for a normalized offset from particle to node.
func Weight(offset r3.Vec) float64 {
	return Quadratic(offset.X) * Quadratic(offset.Y) * Quadratic(offset.Z)
}

// InverseInertia is the APIC inertia scale D^-1 = 4/h² for the quadratic kernel.
func InverseInertia(nodeSize float64) float64 {
	return 4 / (nodeSize * nodeSize)
}
