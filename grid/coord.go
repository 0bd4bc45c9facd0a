// Package grid provides the sparse background lattice: integer node
// coordinates, the coordinate-to-slot index, per-grid momentum storage and the
// collider distance field.
package grid

import (
	"cmp"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mpm/kernel"
)

// Coord is an integer lattice coordinate. Node c sits at c * nodeSize.
type Coord [3]int32

// StencilSize is the number of nodes in a quadratic stencil.
const StencilSize = kernel.Support * kernel.Support * kernel.Support

// Add returns c + d.
func (c Coord) Add(d Coord) Coord {
	return Coord{c[0] + d[0], c[1] + d[1], c[2] + d[2]}
}

// Position returns the world position of the node.
func (c Coord) Position(nodeSize float64) r3.Vec {
	return r3.Vec{X: float64(c[0]) * nodeSize, Y: float64(c[1]) * nodeSize, Z: float64(c[2]) * nodeSize}
}

// Compare orders coordinates lexicographically by x, then y, then z.
func Compare(a, b Coord) int {
	if c := cmp.Compare(a[0], b[0]); c != 0 {
		return c
	}
	if c := cmp.Compare(a[1], b[1]); c != 0 {
		return c
	}
	return cmp.Compare(a[2], b[2])
}

// Base returns the lowest node of the quadratic stencil around p:
// floor(p/nodeSize - 0.5) per axis. It doubles as the spatial sort key.
func Base(p r3.Vec, nodeSize float64) Coord {
	return Coord{
		int32(math.Floor(p.X/nodeSize - 0.5)),
		int32(math.Floor(p.Y/nodeSize - 0.5)),
		int32(math.Floor(p.Z/nodeSize - 0.5)),
	}
}

// Stencil returns the nodes of the quadratic stencil around p, x-major.
func Stencil(p r3.Vec, nodeSize float64) [StencilSize]Coord {
	base := Base(p, nodeSize)
	var out [StencilSize]Coord
	n := 0
	for i := int32(0); i < kernel.Support; i++ {
		for j := int32(0); j < kernel.Support; j++ {
			for k := int32(0); k < kernel.Support; k++ {
				out[n] = base.Add(Coord{i, j, k})
				n++
			}
		}
	}
	return out
}

// Offset returns the normalized offset from p to node c, in node spacings.
func Offset(c Coord, p r3.Vec, nodeSize float64) r3.Vec {
	return r3.Vec{
		X: float64(c[0]) - p.X/nodeSize,
		Y: float64(c[1]) - p.Y/nodeSize,
		Z: float64(c[2]) - p.Z/nodeSize,
	}
}
