// Package collider describes scripted rigid colliders: their world placement,
// oriented surface samples and the velocity conformance rule applied to grid
// nodes next to their surface.
package collider

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Kinematic is a rigid placement and its time derivative.
//
// The zero Orientation is treated as the identity rotation.
type Kinematic struct {
	Position        r3.Vec
	Orientation     r3.Rotation
	Velocity        r3.Vec
	AngularVelocity r3.Vec
}

func (k Kinematic) rotation() r3.Rotation {
	if k.Orientation == (r3.Rotation{}) {
		return r3.Rotation{Real: 1}
	}
	return k.Orientation
}

// ToWorldPosition maps a point in collider space to world space.
func (k Kinematic) ToWorldPosition(local r3.Vec) r3.Vec {
	return r3.Add(k.rotation().Rotate(local), k.Position)
}

// ToWorldNormal maps a direction in collider space to world space.
func (k Kinematic) ToWorldNormal(local r3.Vec) r3.Vec {
	return k.rotation().Rotate(local)
}

// PointVelocity returns the velocity of the rigid body at a world position.
func (k Kinematic) PointVelocity(world r3.Vec) r3.Vec {
	return r3.Add(k.Velocity, r3.Cross(k.AngularVelocity, r3.Sub(world, k.Position)))
}

// Advance integrates the placement over dt with constant velocities.
func (k *Kinematic) Advance(dt float64) {
	k.Position = r3.Add(k.Position, r3.Scale(dt, k.Velocity))
	omega := r3.Norm(k.AngularVelocity)
	if omega == 0 {
		return
	}
	step := r3.NewRotation(omega*dt, k.AngularVelocity)
	q := quat.Mul(quat.Number(step), quat.Number(k.rotation()))
	k.Orientation = r3.Rotation(quat.Scale(1/quat.Abs(q), q))
}

// OrientationFromNormal returns the rotation taking +Y onto n.
func OrientationFromNormal(n r3.Vec) r3.Rotation {
	up := r3.Vec{Y: 1}
	n = r3.Unit(n)
	axis := r3.Cross(up, n)
	c := r3.Dot(up, n)
	if r3.Norm(axis) < 1e-12 {
		if c > 0 {
			return r3.Rotation{Real: 1}
		}
		return r3.NewRotation(math.Pi, r3.Vec{X: 1})
	}
	return r3.NewRotation(math.Acos(math.Max(-1, math.Min(1, c))), axis)
}
