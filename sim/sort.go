package sim

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mpm/collider"
	"github.com/pthm-cable/mpm/grid"
)

// Sort orders particles, and each collider's samples, by the lattice cell
// their stencil starts at. Particles in the same cell end up adjacent.
//
// Particle positions are moved directly; every other particle array follows
// through Particles.Permute, which also rebuilds the reverse sort map.
func (s *State) Sort(in PhaseInput) error {
	h := in.Settings.GridNodeSize
	p := s.Particles
	n := p.Len()

	keys := make([]grid.Coord, n)
	s.pool.Run(n, func(_, start, end int) {
		for i := start; i < end; i++ {
			keys[i] = grid.Base(p.Positions[i], h)
		}
	})

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(a, b int) int {
		return grid.Compare(keys[a], keys[b])
	})

	positions := make([]r3.Vec, n)
	for i, from := range perm {
		positions[i] = p.Positions[from]
	}
	p.Positions = positions
	if err := p.Permute(perm); err != nil {
		return err
	}

	for _, c := range s.Colliders {
		sortSamples(c, h)
	}
	return nil
}

func sortSamples(c *collider.Collider, h float64) {
	type keyed struct {
		key    grid.Coord
		sample collider.SurfaceSample
	}
	tmp := make([]keyed, len(c.Samples))
	for i, sample := range c.Samples {
		tmp[i] = keyed{grid.Base(c.Kinematic.ToWorldPosition(sample.Position), h), sample}
	}
	slices.SortStableFunc(tmp, func(a, b keyed) int {
		return grid.Compare(a.key, b.key)
	})
	for i := range tmp {
		c.Samples[i] = tmp[i].sample
	}
}
