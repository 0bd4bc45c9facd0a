package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mpm/telemetry"
)

// Stats summarizes the state after the last completed step.
func (s *State) Stats() telemetry.StepStats {
	p := s.Particles
	st := telemetry.StepStats{
		Step:          s.steps,
		SimTimeSec:    s.simTime,
		Particles:     p.Len(),
		CommonNodes:   s.Common.Len(),
		DistanceNodes: s.Distances.Len(),
		MinHeight:     math.Inf(1),
	}

	for _, g := range s.Grids() {
		if g != s.Common {
			st.ColliderNodes += g.Len()
		}
		for _, m := range g.Masses {
			st.GridMass += m
		}
		for _, b := range g.Boundaries {
			if b.Active {
				st.BoundaryNodes++
			}
		}
	}

	speeds := make([]float64, p.Len())
	for i := range speeds {
		speeds[i] = r3.Norm(p.Velocities[i])
		st.KineticEnergy += 0.5 * p.Masses[i] * speeds[i] * speeds[i]
		st.MinHeight = math.Min(st.MinHeight, p.Positions[i].Y)
	}
	for _, e := range p.ElasticEnergies {
		st.ElasticEnergy += e
	}
	st.SpeedMean, st.SpeedP90, st.SpeedMax = telemetry.ComputeSpeedStats(speeds)
	if p.Len() == 0 {
		st.MinHeight = 0
	}
	return st
}
