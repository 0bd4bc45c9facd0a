package elastic

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/mpm/tensor"
)

// Finite-difference property tests. Every analytic derivative must match a
// centered difference of the quantity one order below within a relative
// tolerance, or within an absolute tolerance when the difference is near zero.
// The absolute tolerance is nearZero times the magnitude of the quantities
// involved, so it scales with stiff parameter sets. It never drops below the
// rounding noise of a centered difference with step h, about roundoff/h times
// the same magnitude.

const (
	samples  = 400
	nearZero = 1e-6
	roundoff = 1e-9
)

// absTolerance returns the absolute cutoff for a centered difference with
// step h over quantities of the given magnitude.
func absTolerance(h, scale float64) float64 {
	return math.Max(nearZero, roundoff/h) * scale
}

// runWithRandomPositionGradients calls test on the identity and on n random
// gradients whose determinant lies in (0.1, 10).
func runWithRandomPositionGradients(t *testing.T, n int, test func(f tensor.Mat3)) {
	t.Helper()
	rng := rand.New(rand.NewPCG(17, 42))
	test(tensor.Identity())
	for s := 0; s < n; s++ {
		var f tensor.Mat3
		for {
			for i := range f {
				f[i] = 2*rng.Float64() - 1
			}
			d := math.Abs(f.Det())
			if d > 1e-1 && d < 1e+1 {
				break
			}
		}
		if f.Det() < 0 {
			f = f.Scale(-1)
		}
		test(f)
	}
}

func maxAbs(vals ...float64) float64 {
	m := 1.0
	for _, v := range vals {
		if a := math.Abs(v); a > m && !math.IsInf(a, 0) {
			m = a
		}
	}
	return m
}

func checkScalarFromScalar(t *testing.T, h, eps float64, value, gradient func(float64) float64, x float64) {
	t.Helper()
	fd := (value(x+h) - value(x-h)) / h / 2
	an := gradient(x)
	absTol := absTolerance(h, maxAbs(value(x), an))
	require.True(t, scalar.EqualWithinAbsOrRel(fd, an, absTol, eps),
		"x=%g finite difference %g, analytic %g", x, fd, an)
}

func checkScalarFromMatrix(t *testing.T, h, eps float64, value func(tensor.Mat3) float64, gradient func(tensor.Mat3) tensor.Mat3, f tensor.Mat3) {
	t.Helper()
	an := gradient(f)
	absTol := absTolerance(h, maxAbs(append([]float64{value(f)}, an[:]...)...))
	for i := range f {
		a, b := f, f
		a[i] += h
		b[i] -= h
		fd := (value(a) - value(b)) / h / 2
		require.True(t, scalar.EqualWithinAbsOrRel(fd, an[i], absTol, eps),
			"F=%v entry %d: finite difference %g, analytic %g", f, i, fd, an[i])
	}
}

func checkHessian(t *testing.T, h, eps float64, gradient func(tensor.Mat3) tensor.Mat3, hessian func(*mat.SymDense, tensor.Mat3) bool, f tensor.Mat3) {
	t.Helper()
	var hess mat.SymDense
	if !hessian(&hess, f) {
		return
	}
	g := gradient(f)
	scale := maxAbs(g[:]...)
	for a := 0; a < Dim; a++ {
		for b := 0; b < Dim; b++ {
			scale = math.Max(scale, math.Abs(hess.At(a, b)))
		}
	}
	absTol := absTolerance(h, scale)
	for a := 0; a < Dim; a++ {
		p, m := f, f
		p[a] += h
		m[a] -= h
		gp, gm := gradient(p), gradient(m)
		for b := 0; b < Dim; b++ {
			fd := (gp[b] - gm[b]) / h / 2
			require.True(t, scalar.EqualWithinAbsOrRel(fd, hess.At(b, a), absTol, eps),
				"F=%v entry (%d,%d): finite difference %g, analytic %g", f, b, a, fd, hess.At(b, a))
		}
	}
}

func lameParameters() [][2]float64 {
	var out [][2]float64
	for _, p := range [][2]float64{{10000, 0.3}, {1000000, 0.3}, {10000, 0}, {0, 0.4}} {
		out = append(out, [2]float64{Mu(p[0], p[1]), Lambda(p[0], p[1])})
	}
	return out
}

type inviscidParameters struct {
	bulkModulus float64
	exponent    int
}

func fluidParameters() []inviscidParameters {
	return []inviscidParameters{{100, 2}, {1000, 2}, {100, 7}, {1000, 7}, {500, 1}}
}

// mustStress drops the ok flag; the sampled gradients are never singular.
func mustStress(p tensor.Mat3, _ bool) tensor.Mat3 { return p }

func TestAbsTolerance(t *testing.T) {
	assert.InDelta(t, 1e-2, absTolerance(1e-7, 1), 1e-15)
	assert.InDelta(t, 1e-6*50, absTolerance(1e-5, 50), 1e-15)
}

// At the rest state every analytic stress is exactly zero while the
// difference quotient carries only rounding noise.
func TestFiniteDifferenceAtRestState(t *testing.T) {
	f := tensor.Identity()
	for _, p := range lameParameters() {
		checkScalarFromMatrix(t, 1e-7, 1e-1,
			func(f tensor.Mat3) float64 { return EnergyNeoHookean(p[0], p[1], f) },
			func(f tensor.Mat3) tensor.Mat3 { return mustStress(FirstPiolaStressNeoHookean(p[0], p[1], f)) },
			f)
		checkScalarFromMatrix(t, 1e-7, 1e-1,
			func(f tensor.Mat3) float64 { return EnergyStableNeoHookean(p[0], p[1], f) },
			func(f tensor.Mat3) tensor.Mat3 { return FirstPiolaStressStableNeoHookean(p[0], p[1], f) },
			f)
	}
	for _, p := range fluidParameters() {
		checkScalarFromScalar(t, 1e-7, 1e-3,
			func(i3 float64) float64 { return EnergyInviscidByInvariant(p.bulkModulus, p.exponent, i3) },
			func(i3 float64) float64 { return PartialEnergyInviscidByInvariant3(p.bulkModulus, p.exponent, i3) },
			1)
	}
}

func TestLameParameters(t *testing.T) {
	assert.InDelta(t, 3846.1538, Mu(10000, 0.3), 1e-3)
	assert.InDelta(t, 5769.2308, Lambda(10000, 0.3), 1e-3)
	assert.Zero(t, Lambda(10000, 0))
}

func TestPartialInvariant2(t *testing.T) {
	runWithRandomPositionGradients(t, samples, func(f tensor.Mat3) {
		checkScalarFromMatrix(t, 1e-5, 1e-3, Invariant2, PartialInvariant2, f)
	})
}

func TestPartialInvariant3(t *testing.T) {
	runWithRandomPositionGradients(t, samples, func(f tensor.Mat3) {
		checkScalarFromMatrix(t, 1e-5, 1e-3, Invariant3, PartialInvariant3, f)
	})
}

func TestHessianInvariant3(t *testing.T) {
	runWithRandomPositionGradients(t, samples, func(f tensor.Mat3) {
		checkHessian(t, 1e-5, 1e-3, PartialInvariant3, func(dst *mat.SymDense, f tensor.Mat3) bool {
			HessianInvariant3(dst, f)
			return true
		}, f)
	})
}

func TestFirstPiolaStressNeoHookean(t *testing.T) {
	for _, p := range lameParameters() {
		mu, lambda := p[0], p[1]
		runWithRandomPositionGradients(t, samples, func(f tensor.Mat3) {
			if _, ok := f.SafeInverse(); !ok {
				return
			}
			checkScalarFromMatrix(t, 1e-7, 1e-1,
				func(f tensor.Mat3) float64 { return EnergyNeoHookean(mu, lambda, f) },
				func(f tensor.Mat3) tensor.Mat3 { return mustStress(FirstPiolaStressNeoHookean(mu, lambda, f)) },
				f)
		})
	}
}

func TestFirstPiolaStressStableNeoHookean(t *testing.T) {
	for _, p := range lameParameters() {
		mu, lambda := p[0], p[1]
		runWithRandomPositionGradients(t, samples, func(f tensor.Mat3) {
			checkScalarFromMatrix(t, 1e-7, 1e-1,
				func(f tensor.Mat3) float64 { return EnergyStableNeoHookean(mu, lambda, f) },
				func(f tensor.Mat3) tensor.Mat3 { return FirstPiolaStressStableNeoHookean(mu, lambda, f) },
				f)
		})
	}
}

func TestPartialEnergyNeoHookeanByInvariant3(t *testing.T) {
	for _, p := range lameParameters() {
		mu, lambda := p[0], p[1]
		runWithRandomPositionGradients(t, samples, func(f tensor.Mat3) {
			i2 := Invariant2(f)
			checkScalarFromScalar(t, 1e-7, 1e-3,
				func(i3 float64) float64 { return EnergyNeoHookeanByInvariants(mu, lambda, i2, i3) },
				func(i3 float64) float64 { return PartialEnergyNeoHookeanByInvariant3(mu, lambda, i3) },
				Invariant3(f))
		})
	}
}

func TestDoublePartialEnergyNeoHookeanByInvariant3(t *testing.T) {
	for _, p := range lameParameters() {
		mu, lambda := p[0], p[1]
		runWithRandomPositionGradients(t, samples, func(f tensor.Mat3) {
			checkScalarFromScalar(t, 1e-7, 1e-3,
				func(i3 float64) float64 { return PartialEnergyNeoHookeanByInvariant3(mu, lambda, i3) },
				func(i3 float64) float64 { return DoublePartialEnergyNeoHookeanByInvariant3(mu, lambda, i3) },
				Invariant3(f))
		})
	}
}

func TestHessianNeoHookean(t *testing.T) {
	for _, p := range lameParameters() {
		mu, lambda := p[0], p[1]
		runWithRandomPositionGradients(t, samples, func(f tensor.Mat3) {
			checkHessian(t, 1e-7, 1e-2,
				func(f tensor.Mat3) tensor.Mat3 { return mustStress(FirstPiolaStressNeoHookean(mu, lambda, f)) },
				func(dst *mat.SymDense, f tensor.Mat3) bool { return HessianNeoHookean(dst, mu, lambda, f) },
				f)
		})
	}
}

func TestHessianStableNeoHookean(t *testing.T) {
	for _, p := range lameParameters() {
		mu, lambda := p[0], p[1]
		runWithRandomPositionGradients(t, samples, func(f tensor.Mat3) {
			checkHessian(t, 1e-7, 1e-2,
				func(f tensor.Mat3) tensor.Mat3 { return FirstPiolaStressStableNeoHookean(mu, lambda, f) },
				func(dst *mat.SymDense, f tensor.Mat3) bool {
					HessianStableNeoHookean(dst, mu, lambda, f)
					return true
				},
				f)
		})
	}
}

func TestPartialEnergyInviscidByInvariant3(t *testing.T) {
	for _, p := range fluidParameters() {
		runWithRandomPositionGradients(t, samples, func(f tensor.Mat3) {
			checkScalarFromScalar(t, 1e-7, 1e-3,
				func(i3 float64) float64 { return EnergyInviscidByInvariant(p.bulkModulus, p.exponent, i3) },
				func(i3 float64) float64 { return PartialEnergyInviscidByInvariant3(p.bulkModulus, p.exponent, i3) },
				Invariant3(f))
		})
	}
}

func TestDoublePartialEnergyInviscidByInvariant3(t *testing.T) {
	for _, p := range fluidParameters() {
		runWithRandomPositionGradients(t, samples, func(f tensor.Mat3) {
			checkScalarFromScalar(t, 1e-7, 1e-3,
				func(i3 float64) float64 { return PartialEnergyInviscidByInvariant3(p.bulkModulus, p.exponent, i3) },
				func(i3 float64) float64 {
					return DoublePartialEnergyInviscidByInvariant3(p.bulkModulus, p.exponent, i3)
				},
				Invariant3(f))
		})
	}
}

func TestFirstPiolaStressInviscid(t *testing.T) {
	for _, p := range fluidParameters() {
		runWithRandomPositionGradients(t, samples, func(f tensor.Mat3) {
			checkScalarFromMatrix(t, 1e-7, 1e-1,
				func(f tensor.Mat3) float64 { return EnergyInviscid(p.bulkModulus, p.exponent, f) },
				func(f tensor.Mat3) tensor.Mat3 {
					return mustStress(FirstPiolaStressInviscid(p.bulkModulus, p.exponent, f))
				},
				f)
		})
	}
}

func TestHessianInviscid(t *testing.T) {
	for _, p := range fluidParameters() {
		runWithRandomPositionGradients(t, samples, func(f tensor.Mat3) {
			checkHessian(t, 1e-7, 1e-2,
				func(f tensor.Mat3) tensor.Mat3 {
					return mustStress(FirstPiolaStressInviscid(p.bulkModulus, p.exponent, f))
				},
				func(dst *mat.SymDense, f tensor.Mat3) bool {
					return HessianInviscid(dst, p.bulkModulus, p.exponent, f)
				},
				f)
		})
	}
}

func TestRestStateIsStressFree(t *testing.T) {
	materials := []struct {
		name string
		m    Material
	}{
		{"neo-hookean", NewSolid(10000, 0.3)},
		{"stable neo-hookean", Solid{Mu: Mu(10000, 0.3), Lambda: Lambda(10000, 0.3), Stable: true}},
		{"tait fluid", Fluid{BulkModulus: 1000, Exponent: 7}},
	}
	for _, tt := range materials {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := tt.m.FirstPiolaStress(tensor.Identity())
			require.True(t, ok)
			for _, v := range p {
				assert.InDelta(t, 0, v, 1e-9)
			}
			assert.InDelta(t, 0, tt.m.Energy(tensor.Identity()), 1e-9)
		})
	}
}

func TestNearSingularGradientSkipsForce(t *testing.T) {
	f := tensor.Identity()
	f.Set(2, 2, 1e-12)

	_, ok := NewSolid(10000, 0.3).FirstPiolaStress(f)
	assert.False(t, ok)
	_, ok = Fluid{BulkModulus: 100, Exponent: 2}.FirstPiolaStress(f)
	assert.False(t, ok)

	// The stable variant is defined through inversion.
	_, ok = Solid{Mu: 1, Lambda: 1, Stable: true}.FirstPiolaStress(f.Scale(-1))
	assert.True(t, ok)

	var hess mat.SymDense
	assert.False(t, NewSolid(10000, 0.3).Hessian(&hess, f))
	assert.Equal(t, Dim, hess.SymmetricDim())
}
