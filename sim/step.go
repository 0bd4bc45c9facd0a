package sim

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/mpm/config"
	"github.com/pthm-cable/mpm/telemetry"
)

type phase struct {
	name string
	run  func(PhaseInput) error
}

// phases returns the step pipeline in execution order.
func (s *State) phases(in PhaseInput) []phase {
	var out []phase
	if in.Settings.ShouldSort(in.Step) {
		out = append(out, phase{telemetry.PhaseSort, s.Sort})
	}
	return append(out,
		phase{telemetry.PhaseTopology, s.RebuildTopology},
		phase{telemetry.PhaseDistances, s.ScatterDistances},
		phase{telemetry.PhaseScatterMomentum, s.ScatterMomentum},
		phase{telemetry.PhaseGravity, s.ApplyGravity},
		phase{telemetry.PhaseConform, s.ConformToColliders},
		phase{telemetry.PhaseGather, s.Gather},
		phase{telemetry.PhaseEnergy, s.ComputeEnergies},
	)
}

// Step advances the simulation by timeStep. On error the step is abandoned
// and the state must not be stepped further without inspection; the error
// names the failing phase.
func (s *State) Step(settings config.Settings, timeStep float64) error {
	in := PhaseInput{Settings: settings, TimeStep: timeStep, Step: s.steps}
	if err := s.Particles.Validate(); err != nil {
		return fmt.Errorf("step %d: %w", in.Step, err)
	}
	s.Particles.EnsureScratch()

	s.perf.StartStep()
	defer s.perf.EndStep()

	for _, ph := range s.phases(in) {
		s.perf.StartPhase(ph.name)
		if err := ph.run(in); err != nil {
			return fmt.Errorf("step %d: %s: %w", in.Step, ph.name, err)
		}
		slog.Debug("phase done", "phase", ph.name, "state", s)
	}

	s.steps++
	s.simTime += timeStep
	return nil
}
