package sim

import "gonum.org/v1/gonum/spatial/r3"

// ApplyGravity accelerates every node that carries mass.
func (s *State) ApplyGravity(in PhaseInput) error {
	dv := r3.Scale(in.TimeStep, in.Settings.GravityVec())
	if dv == (r3.Vec{}) {
		return nil
	}
	for _, g := range s.Grids() {
		s.pool.Run(g.Len(), func(_, start, end int) {
			for i := start; i < end; i++ {
				if g.Masses[i] > 0 {
					g.Velocities[i] = r3.Add(g.Velocities[i], dv)
				}
			}
		})
	}
	return nil
}
