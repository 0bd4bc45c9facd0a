package elastic

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/mpm/tensor"
)

// Mu returns the shear modulus for a Young's modulus and Poisson's ratio.
func Mu(youngsModulus, poissonsRatio float64) float64 {
	return youngsModulus / (2 * (1 + poissonsRatio))
}

// Lambda returns the first Lamé parameter for a Young's modulus and Poisson's ratio.
func Lambda(youngsModulus, poissonsRatio float64) float64 {
	return youngsModulus * poissonsRatio / ((1 + poissonsRatio) * (1 - 2*poissonsRatio))
}

// EnergyNeoHookeanByInvariants is the classic compressible Neo-Hookean energy
//
//	Psi = mu/2 (I2 - 3) - mu ln I3 + lambda/2 (ln I3)^2
//
// It is +Inf for I3 <= 0.
func EnergyNeoHookeanByInvariants(mu, lambda, i2, i3 float64) float64 {
	if i3 <= 0 {
		return math.Inf(1)
	}
	logJ := math.Log(i3)
	return mu/2*(i2-3) - mu*logJ + lambda/2*logJ*logJ
}

// PartialEnergyNeoHookeanByInvariant3 returns dPsi/dI3.
func PartialEnergyNeoHookeanByInvariant3(mu, lambda, i3 float64) float64 {
	return (lambda*math.Log(i3) - mu) / i3
}

// DoublePartialEnergyNeoHookeanByInvariant3 returns d²Psi/dI3².
func DoublePartialEnergyNeoHookeanByInvariant3(mu, lambda, i3 float64) float64 {
	return (mu + lambda - lambda*math.Log(i3)) / (i3 * i3)
}

// EnergyNeoHookean evaluates the Neo-Hookean energy density of f.
func EnergyNeoHookean(mu, lambda float64, f tensor.Mat3) float64 {
	return EnergyNeoHookeanByInvariants(mu, lambda, Invariant2(f), Invariant3(f))
}

// FirstPiolaStressNeoHookean returns mu (F - F^{-T}) + lambda ln(J) F^{-T}.
// It reports false when F is too close to singular to invert; callers skip the
// force contribution in that case.
func FirstPiolaStressNeoHookean(mu, lambda float64, f tensor.Mat3) (tensor.Mat3, bool) {
	inv, ok := f.SafeInverse()
	if !ok {
		return tensor.Mat3{}, false
	}
	j := f.Det()
	if j <= 0 {
		return tensor.Mat3{}, false
	}
	invT := inv.T()
	return f.Sub(invT).Scale(mu).Add(invT.Scale(lambda * math.Log(j))), true
}

// HessianNeoHookean writes d²Psi/dF² into dst. It reports false, leaving dst
// zeroed, when det(F) is not safely positive.
func HessianNeoHookean(dst *mat.SymDense, mu, lambda float64, f tensor.Mat3) bool {
	j := f.Det()
	if j < tensor.SingularTolerance {
		prepare(dst)
		return false
	}
	composeHessian(dst, f, mu/2,
		PartialEnergyNeoHookeanByInvariant3(mu, lambda, j),
		DoublePartialEnergyNeoHookeanByInvariant3(mu, lambda, j),
	)
	return true
}

// EnergyStableNeoHookeanByInvariants is the stable Neo-Hookean energy with
// the rest-state constant dropped:
//
//	Psi = mu/2 (I2 - 3) - mu (I3 - 1) + lambda/2 (I3 - 1)^2
//
// It stays finite and smooth through I3 = 0 and for inverted elements.
func EnergyStableNeoHookeanByInvariants(mu, lambda, i2, i3 float64) float64 {
	return mu/2*(i2-3) - mu*(i3-1) + lambda/2*(i3-1)*(i3-1)
}

// PartialEnergyStableNeoHookeanByInvariant3 returns dPsi/dI3.
func PartialEnergyStableNeoHookeanByInvariant3(mu, lambda, i3 float64) float64 {
	return lambda*(i3-1) - mu
}

// EnergyStableNeoHookean evaluates the stable Neo-Hookean energy density of f.
func EnergyStableNeoHookean(mu, lambda float64, f tensor.Mat3) float64 {
	return EnergyStableNeoHookeanByInvariants(mu, lambda, Invariant2(f), Invariant3(f))
}

// FirstPiolaStressStableNeoHookean returns mu F + (lambda (J-1) - mu) cof(F).
func FirstPiolaStressStableNeoHookean(mu, lambda float64, f tensor.Mat3) tensor.Mat3 {
	dI3 := PartialEnergyStableNeoHookeanByInvariant3(mu, lambda, f.Det())
	return f.Scale(mu).Add(f.Cofactor().Scale(dI3))
}

// HessianStableNeoHookean writes d²Psi/dF² into dst.
func HessianStableNeoHookean(dst *mat.SymDense, mu, lambda float64, f tensor.Mat3) {
	composeHessian(dst, f, mu/2, PartialEnergyStableNeoHookeanByInvariant3(mu, lambda, f.Det()), lambda)
}
