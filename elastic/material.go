package elastic

import (
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/mpm/tensor"
)

// Material is the per-particle constitutive law. The set of implementations is
// closed: Solid and Fluid.
type Material interface {
	// Energy returns the elastic energy density at position gradient f.
	Energy(f tensor.Mat3) float64
	// FirstPiolaStress returns dEnergy/dF, or false when the force contribution
	// must be skipped because f is near singular.
	FirstPiolaStress(f tensor.Mat3) (tensor.Mat3, bool)
	// Hessian writes d²Energy/dF² into dst, reporting false when undefined.
	Hessian(dst *mat.SymDense, f tensor.Mat3) bool

	material()
}

// Solid is a Neo-Hookean solid parameterised by its Lamé parameters.
type Solid struct {
	Mu     float64
	Lambda float64
	// Stable selects the stable Neo-Hookean variant, which is defined for
	// inverted gradients.
	Stable bool
}

// NewSolid derives the Lamé parameters from Young's modulus and Poisson's ratio.
func NewSolid(youngsModulus, poissonsRatio float64) Solid {
	return Solid{Mu: Mu(youngsModulus, poissonsRatio), Lambda: Lambda(youngsModulus, poissonsRatio)}
}

func (s Solid) material() {}

func (s Solid) Energy(f tensor.Mat3) float64 {
	if s.Stable {
		return EnergyStableNeoHookean(s.Mu, s.Lambda, f)
	}
	return EnergyNeoHookean(s.Mu, s.Lambda, f)
}

func (s Solid) FirstPiolaStress(f tensor.Mat3) (tensor.Mat3, bool) {
	if s.Stable {
		return FirstPiolaStressStableNeoHookean(s.Mu, s.Lambda, f), true
	}
	return FirstPiolaStressNeoHookean(s.Mu, s.Lambda, f)
}

func (s Solid) Hessian(dst *mat.SymDense, f tensor.Mat3) bool {
	if s.Stable {
		HessianStableNeoHookean(dst, s.Mu, s.Lambda, f)
		return true
	}
	return HessianNeoHookean(dst, s.Mu, s.Lambda, f)
}

// Fluid is an inviscid barotropic fluid.
type Fluid struct {
	BulkModulus float64
	Exponent    int
}

func (f Fluid) material() {}

func (f Fluid) Energy(g tensor.Mat3) float64 {
	return EnergyInviscid(f.BulkModulus, f.Exponent, g)
}

func (f Fluid) FirstPiolaStress(g tensor.Mat3) (tensor.Mat3, bool) {
	return FirstPiolaStressInviscid(f.BulkModulus, f.Exponent, g)
}

func (f Fluid) Hessian(dst *mat.SymDense, g tensor.Mat3) bool {
	return HessianInviscid(dst, f.BulkModulus, f.Exponent, g)
}
