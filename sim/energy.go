package sim

// ComputeEnergies stores each particle's elastic energy, initial volume times
// energy density, in Particles.ElasticEnergies.
func (s *State) ComputeEnergies(in PhaseInput) error {
	p := s.Particles
	s.pool.Run(p.Len(), func(_, start, end int) {
		for i := start; i < end; i++ {
			p.ElasticEnergies[i] = p.InitialVolumes[i] * p.Materials[i].Energy(p.PositionGradients[i])
		}
	})
	return nil
}
