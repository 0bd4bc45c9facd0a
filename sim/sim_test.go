package sim

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mpm/collider"
	"github.com/pthm-cable/mpm/config"
	"github.com/pthm-cable/mpm/elastic"
	"github.com/pthm-cable/mpm/grid"
	"github.com/pthm-cable/mpm/parallel"
	"github.com/pthm-cable/mpm/particles"
)

func testSettings() config.Settings {
	return config.Settings{
		GridNodeSize:          0.1,
		TimeStep:              1e-3,
		Explicit:              true,
		Gravity:               [3]float64{0, -9.81, 0},
		SurfaceDiskSizeFactor: 1,
		SortInterval:          1,
	}
}

func testInput(s config.Settings) PhaseInput {
	return PhaseInput{Settings: s, TimeStep: s.TimeStep}
}

// newTestState builds a state on a pool that fans out even small inputs.
func newTestState(t *testing.T, p *particles.Particles, colliders ...*collider.Collider) *State {
	t.Helper()
	pool := parallel.New(4, 1)
	t.Cleanup(pool.Close)
	s, err := NewState(p, colliders, pool, nil)
	require.NoError(t, err)
	return s
}

func particleAt(x r3.Vec) particles.Particle {
	return particles.Particle{
		Position:      x,
		Mass:          1,
		InitialVolume: 1e-3,
		Material:      elastic.NewSolid(1e4, 0.3),
	}
}

// floor is a static plane through the origin facing +Y.
func floor(extent, spacing float64) *collider.Collider {
	return &collider.Collider{
		Name:      "floor",
		Kinematic: collider.Kinematic{Orientation: r3.Rotation{Real: 1}},
		Samples:   collider.PlaneSamples(extent, spacing),
	}
}

// uniqueStencilNodes returns the set of lattice nodes touched by p.
func uniqueStencilNodes(p *particles.Particles, h float64) map[grid.Coord]struct{} {
	out := make(map[grid.Coord]struct{})
	for _, x := range p.Positions {
		for _, c := range grid.Stencil(x, h) {
			out[c] = struct{}{}
		}
	}
	return out
}
