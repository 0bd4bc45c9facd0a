// Package tensor provides the small fixed-size matrix type used for deformation
// and velocity gradients.
package tensor

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// SingularTolerance is the determinant magnitude below which SafeInverse
// refuses to invert.
const SingularTolerance = 1e-10

// Mat3 is a 3x3 matrix stored column-major: entry (i, j) lives at index i+3*j.
// It is a value type so per-particle arrays stay dense and copy-safe.
type Mat3 [9]float64

// Identity returns the 3x3 identity matrix.
func Identity() Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// FromRows builds a matrix from row-major values.
func FromRows(a00, a01, a02, a10, a11, a12, a20, a21, a22 float64) Mat3 {
	return Mat3{a00, a10, a20, a01, a11, a21, a02, a12, a22}
}

// FromCols builds a matrix from its three column vectors.
func FromCols(c0, c1, c2 r3.Vec) Mat3 {
	return Mat3{c0.X, c0.Y, c0.Z, c1.X, c1.Y, c1.Z, c2.X, c2.Y, c2.Z}
}

// Outer returns the outer product a b^T.
func Outer(a, b r3.Vec) Mat3 {
	return FromCols(r3.Scale(b.X, a), r3.Scale(b.Y, a), r3.Scale(b.Z, a))
}

// At returns entry (i, j).
func (m Mat3) At(i, j int) float64 { return m[i+3*j] }

// Set sets entry (i, j).
func (m *Mat3) Set(i, j int, v float64) { m[i+3*j] = v }

// Col returns column j.
func (m Mat3) Col(j int) r3.Vec {
	return r3.Vec{X: m[3*j], Y: m[3*j+1], Z: m[3*j+2]}
}

// Add returns m + n.
func (m Mat3) Add(n Mat3) Mat3 {
	for i := range m {
		m[i] += n[i]
	}
	return m
}

// Sub returns m - n.
func (m Mat3) Sub(n Mat3) Mat3 {
	for i := range m {
		m[i] -= n[i]
	}
	return m
}

// Scale returns f * m.
func (m Mat3) Scale(f float64) Mat3 {
	for i := range m {
		m[i] *= f
	}
	return m
}

// Mul returns the matrix product m n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var out Mat3
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			out[i+3*j] = m[i]*n[3*j] + m[i+3]*n[3*j+1] + m[i+6]*n[3*j+2]
		}
	}
	return out
}

// MulVec returns m v.
func (m Mat3) MulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0]*v.X + m[3]*v.Y + m[6]*v.Z,
		Y: m[1]*v.X + m[4]*v.Y + m[7]*v.Z,
		Z: m[2]*v.X + m[5]*v.Y + m[8]*v.Z,
	}
}

// T returns the transpose.
func (m Mat3) T() Mat3 {
	return Mat3{m[0], m[3], m[6], m[1], m[4], m[7], m[2], m[5], m[8]}
}

// Trace returns the sum of the diagonal.
func (m Mat3) Trace() float64 { return m[0] + m[4] + m[8] }

// FrobeniusNorm2 returns the sum of squared entries.
func (m Mat3) FrobeniusNorm2() float64 {
	var s float64
	for _, v := range m {
		s += v * v
	}
	return s
}

// Det returns the determinant as the triple product of the columns.
func (m Mat3) Det() float64 {
	return r3.Dot(m.Col(0), r3.Cross(m.Col(1), m.Col(2)))
}

// Cofactor returns the cofactor matrix, det(m) m^{-T}, which is also the
// derivative of the determinant with respect to m. It is defined for singular
// matrices.
func (m Mat3) Cofactor() Mat3 {
	c0, c1, c2 := m.Col(0), m.Col(1), m.Col(2)
	return FromCols(r3.Cross(c1, c2), r3.Cross(c2, c0), r3.Cross(c0, c1))
}

// SafeInverse returns the inverse of m, or false when |det(m)| is below
// SingularTolerance or not finite.
func (m Mat3) SafeInverse() (Mat3, bool) {
	det := m.Det()
	if math.Abs(det) < SingularTolerance || math.IsNaN(det) || math.IsInf(det, 0) {
		return Mat3{}, false
	}
	return m.Cofactor().T().Scale(1 / det), true
}

// IsFinite reports whether no entry is NaN or infinite.
func (m Mat3) IsFinite() bool {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
