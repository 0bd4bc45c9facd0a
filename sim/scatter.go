package sim

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mpm/grid"
	"github.com/pthm-cable/mpm/kernel"
)

// ScatterMomentum accumulates particle mass and APIC momentum onto every grid
// node from that node's contributors, then turns momentum into velocity.
// With Settings.Explicit the elastic force over the step is folded into the
// momentum as well.
//
// Each node is written by exactly one worker and sums its contributors in
// ascending particle order, so the result does not depend on scheduling.
func (s *State) ScatterMomentum(in PhaseInput) error {
	h := in.Settings.GridNodeSize
	scaling := in.TimeStep * kernel.InverseInertia(h)
	explicit := in.Settings.Explicit
	p := s.Particles

	for _, g := range s.Grids() {
		g.ResetMomentum()
		keys := g.Index.Keys()
		s.pool.Run(g.Len(), func(_, start, end int) {
			for slot := start; slot < end; slot++ {
				node := keys[slot]
				var mass float64
				var momentum r3.Vec
				for _, pi := range g.Contributors[slot] {
					offset := grid.Offset(node, p.Positions[pi], h)
					weight := kernel.Weight(offset)
					toNode := r3.Scale(h, offset)

					m := p.Masses[pi]
					imparted := r3.Scale(m, r3.Add(p.Velocities[pi], p.VelocityGradients[pi].MulVec(toNode)))

					if explicit {
						f := p.PositionGradients[pi]
						if stress, ok := p.Materials[pi].FirstPiolaStress(f); ok {
							force := stress.MulVec(f.T().MulVec(r3.Scale(scaling*p.InitialVolumes[pi], toNode)))
							imparted = r3.Sub(imparted, force)
						}
					}

					mass += weight * m
					momentum = r3.Add(momentum, r3.Scale(weight, imparted))
				}

				g.Masses[slot] = mass
				if mass > 0 {
					g.Velocities[slot] = r3.Vec{X: momentum.X / mass, Y: momentum.Y / mass, Z: momentum.Z / mass}
				} else {
					// Numerical edge case
					g.Velocities[slot] = r3.Vec{}
				}
			}
		})
	}
	return nil
}
