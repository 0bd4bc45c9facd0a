package sim

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mpm/grid"
	"github.com/pthm-cable/mpm/kernel"
	"github.com/pthm-cable/mpm/tensor"
)

// Gather interpolates grid velocities back to the particles (APIC), updates
// the position gradients and advects the particles.
//
// Stencil nodes are read from the grid and slot recorded by the last topology
// rebuild, so a particle sees the same nodes it scattered to.
func (s *State) Gather(in PhaseInput) error {
	h := in.Settings.GridNodeSize
	dt := in.TimeStep
	dInv := kernel.InverseInertia(h)
	p := s.Particles

	if len(s.routes) != p.Len() {
		return fmt.Errorf("%d routes for %d particles: %w", len(s.routes), p.Len(), ErrMissingNode)
	}
	for i, g := range s.Grids() {
		if i >= len(s.generations) || g.Index.Generation() != s.generations[i] {
			return fmt.Errorf("grid %d: %w", i, ErrStaleTopology)
		}
	}

	err := s.pool.RunErr(p.Len(), func(_, start, end int) error {
		for i := start; i < end; i++ {
			x := p.Positions[i]
			r := &s.routes[i]
			var v r3.Vec
			var c tensor.Mat3
			for k, node := range grid.Stencil(x, h) {
				g := s.gridFor(r.grid[k])
				slot := int(r.slot[k])
				if slot >= g.Len() {
					return fmt.Errorf("particle %d, node %v: %w", i, node, ErrMissingNode)
				}
				offset := grid.Offset(node, x, h)
				w := kernel.Weight(offset)
				vi := g.Velocities[slot]
				v = r3.Add(v, r3.Scale(w, vi))
				c = c.Add(tensor.Outer(vi, r3.Scale(h, offset)).Scale(w * dInv))
			}

			p.Velocities[i] = v
			p.VelocityGradients[i] = c
			p.TrialPositionGradients[i] = tensor.Identity().Add(c.Scale(dt)).Mul(p.PositionGradients[i])
			p.Positions[i] = r3.Add(x, r3.Scale(dt, v))
		}
		return nil
	})
	if err != nil {
		return err
	}

	copy(p.PositionGradients, p.TrialPositionGradients)
	return nil
}
