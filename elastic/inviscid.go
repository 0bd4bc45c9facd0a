package elastic

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/mpm/tensor"
)

// The inviscid (barotropic) fluid follows the Tait equation of state
//
//	p(J) = k/g (J^-g - 1)
//
// with bulk modulus k and exponent g. The energy is the volume integral of -p,
// shifted so that Psi(1) = 0. An exponent of 1 uses the logarithmic limit.

// EnergyInviscidByInvariant returns Psi(J) for the Tait fluid. It is +Inf for J <= 0.
func EnergyInviscidByInvariant(bulkModulus float64, exponent int, i3 float64) float64 {
	if i3 <= 0 {
		return math.Inf(1)
	}
	if exponent == 1 {
		return bulkModulus * (i3 - 1 - math.Log(i3))
	}
	g := float64(exponent)
	return bulkModulus/g*(i3+math.Pow(i3, 1-g)/(g-1)) - bulkModulus/(g-1)
}

// PartialEnergyInviscidByInvariant3 returns dPsi/dJ = -p(J).
func PartialEnergyInviscidByInvariant3(bulkModulus float64, exponent int, i3 float64) float64 {
	g := float64(exponent)
	return bulkModulus / g * (1 - math.Pow(i3, -g))
}

// DoublePartialEnergyInviscidByInvariant3 returns d²Psi/dJ².
func DoublePartialEnergyInviscidByInvariant3(bulkModulus float64, exponent int, i3 float64) float64 {
	return bulkModulus * math.Pow(i3, -float64(exponent)-1)
}

// EnergyInviscid evaluates the fluid energy density of f. Only det(f) matters.
func EnergyInviscid(bulkModulus float64, exponent int, f tensor.Mat3) float64 {
	return EnergyInviscidByInvariant(bulkModulus, exponent, Invariant3(f))
}

// FirstPiolaStressInviscid returns dPsi/dJ cof(F). It reports false when
// det(F) is not safely positive.
func FirstPiolaStressInviscid(bulkModulus float64, exponent int, f tensor.Mat3) (tensor.Mat3, bool) {
	j := f.Det()
	if j < tensor.SingularTolerance {
		return tensor.Mat3{}, false
	}
	return f.Cofactor().Scale(PartialEnergyInviscidByInvariant3(bulkModulus, exponent, j)), true
}

// HessianInviscid writes d²Psi/dF² into dst. It reports false, leaving dst
// zeroed, when det(F) is not safely positive.
func HessianInviscid(dst *mat.SymDense, bulkModulus float64, exponent int, f tensor.Mat3) bool {
	j := f.Det()
	if j < tensor.SingularTolerance {
		prepare(dst)
		return false
	}
	composeHessian(dst, f, 0,
		PartialEnergyInviscidByInvariant3(bulkModulus, exponent, j),
		DoublePartialEnergyInviscidByInvariant3(bulkModulus, exponent, j),
	)
	return true
}
