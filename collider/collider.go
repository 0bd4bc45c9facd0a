package collider

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// SurfaceSample is a point on the collider surface with its outward normal,
// both in collider space.
type SurfaceSample struct {
	Position r3.Vec
	Normal   r3.Vec
}

// Collider is a kinematic rigid body represented by oriented surface samples.
type Collider struct {
	Name      string
	Kinematic Kinematic
	Samples   []SurfaceSample
	// Friction is the Coulomb coefficient applied to tangential slip.
	Friction float64
	// Sticky colliders drag touching nodes along with their own velocity.
	Sticky bool
}

// ConformVelocity projects a grid velocity at world position onto the
// collider's constraint. normal points from the collider towards the node.
//
// A node approaching the surface loses its relative normal velocity, and its
// tangential slip is reduced by friction proportional to the removed normal
// part. Separating nodes are left alone.
func (c *Collider) ConformVelocity(position, velocity, normal r3.Vec) r3.Vec {
	surface := c.Kinematic.PointVelocity(position)
	if c.Sticky {
		return surface
	}

	rel := r3.Sub(velocity, surface)
	vn := r3.Dot(rel, normal)
	if vn >= 0 {
		return velocity
	}

	tangential := r3.Sub(rel, r3.Scale(vn, normal))
	if c.Friction > 0 {
		vt := r3.Norm(tangential)
		if vt > 0 {
			tangential = r3.Scale(math.Max(0, 1+c.Friction*vn/vt), tangential)
		}
	}
	return r3.Add(surface, tangential)
}

// Bounds returns the world-space box around all samples. The box is
// degenerate along any axis the samples do not span.
func (c *Collider) Bounds() r3.Box {
	if len(c.Samples) == 0 {
		p := c.Kinematic.Position
		return r3.Box{Min: p, Max: p}
	}
	first := c.Kinematic.ToWorldPosition(c.Samples[0].Position)
	b := r3.Box{Min: first, Max: first}
	// r3.Box.Union discards zero-volume boxes, so grow component-wise.
	for _, s := range c.Samples[1:] {
		p := c.Kinematic.ToWorldPosition(s.Position)
		b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b
}

// PlaneSamples covers the square [-extent, extent]² of the local y = 0 plane
// with samples spacing apart, all with normal +Y.
func PlaneSamples(extent, spacing float64) []SurfaceSample {
	n := int(math.Floor(2*extent/spacing)) + 1
	out := make([]SurfaceSample, 0, n*n)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			out = append(out, SurfaceSample{
				Position: r3.Vec{X: -extent + float64(i)*spacing, Z: -extent + float64(k)*spacing},
				Normal:   r3.Vec{Y: 1},
			})
		}
	}
	return out
}

// BoxSamples covers the faces of the box [-half, half] with outward-facing
// samples roughly spacing apart. Edge samples are shared by adjacent faces
// and appear once per face.
func BoxSamples(half r3.Vec, spacing float64) []SurfaceSample {
	var out []SurfaceSample
	axes := [3]float64{half.X, half.Y, half.Z}
	for axis := 0; axis < 3; axis++ {
		u, v := (axis+1)%3, (axis+2)%3
		nu := int(math.Ceil(2*axes[u]/spacing)) + 1
		nv := int(math.Ceil(2*axes[v]/spacing)) + 1
		for _, side := range [2]float64{-1, 1} {
			for i := 0; i < nu; i++ {
				for j := 0; j < nv; j++ {
					var p, n [3]float64
					p[axis] = side * axes[axis]
					p[u] = -axes[u] + 2*axes[u]*float64(i)/float64(max(nu-1, 1))
					p[v] = -axes[v] + 2*axes[v]*float64(j)/float64(max(nv-1, 1))
					n[axis] = side
					out = append(out, SurfaceSample{
						Position: r3.Vec{X: p[0], Y: p[1], Z: p[2]},
						Normal:   r3.Vec{X: n[0], Y: n[1], Z: n[2]},
					})
				}
			}
		}
	}
	return out
}
