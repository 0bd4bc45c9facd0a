// Package elastic provides the constitutive models: elastic energy densities,
// first Piola-Kirchhoff stresses and their 9x9 Hessians.
//
// Every model is written in terms of the invariants of the position gradient F,
//
//	I2 = ||F||_F^2    I3 = det(F)
//
// and composed through the chain rule, so each derivative can be checked against
// a finite difference of the quantity one order below. Matrices are flattened
// column-major (index i+3*j for entry (i, j)), matching tensor.Mat3.
package elastic

import (
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/mpm/tensor"
)

// Dim is the size of a flattened 3x3 tensor.
const Dim = 9

// Invariant2 returns the squared Frobenius norm of f.
func Invariant2(f tensor.Mat3) float64 {
	return f.FrobeniusNorm2()
}

// Invariant3 returns det(f), the volume ratio.
func Invariant3(f tensor.Mat3) float64 {
	return f.Det()
}

// PartialInvariant2 returns dI2/dF = 2F.
func PartialInvariant2(f tensor.Mat3) tensor.Mat3 {
	return f.Scale(2)
}

// PartialInvariant3 returns dI3/dF, the cofactor matrix of f.
func PartialInvariant3(f tensor.Mat3) tensor.Mat3 {
	return f.Cofactor()
}

// levi is the Levi-Civita symbol for indices in 0..2.
func levi(i, j, k int) float64 {
	return float64((i - j) * (j - k) * (k - i) / 2)
}

// HessianInvariant3 writes d²I3/dF² into dst:
//
//	d²det/dF_ij dF_kl = e_ikm e_jln F_mn
func HessianInvariant3(dst *mat.SymDense, f tensor.Mat3) {
	prepare(dst)
	for a := 0; a < Dim; a++ {
		i, j := a%3, a/3
		for b := a; b < Dim; b++ {
			k, l := b%3, b/3
			var v float64
			for m := 0; m < 3; m++ {
				eikm := levi(i, k, m)
				if eikm == 0 {
					continue
				}
				for n := 0; n < 3; n++ {
					v += eikm * levi(j, l, n) * f.At(m, n)
				}
			}
			dst.SetSym(a, b, v)
		}
	}
}

// prepare sizes dst to 9x9 and zeroes it.
func prepare(dst *mat.SymDense) {
	if dst.IsEmpty() {
		dst.ReuseAsSym(Dim)
		return
	}
	if n := dst.SymmetricDim(); n != Dim {
		panic(mat.ErrShape)
	}
	dst.Zero()
}

// composeHessian builds the Hessian of an energy Psi(I2, I3) that is at most
// linear in I2 with coefficient dI2 and depends on I3 through dI3, ddI3:
//
//	H = 2 dI2 Id + ddI3 g3 g3^T + dI3 d²I3/dF²
func composeHessian(dst *mat.SymDense, f tensor.Mat3, dI2, dI3, ddI3 float64) {
	HessianInvariant3(dst, f)
	g3 := PartialInvariant3(f)
	for a := 0; a < Dim; a++ {
		for b := a; b < Dim; b++ {
			v := dI3*dst.At(a, b) + ddI3*g3[a]*g3[b]
			if a == b {
				v += 2 * dI2
			}
			dst.SetSym(a, b, v)
		}
	}
}

