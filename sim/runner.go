package sim

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/pthm-cable/mpm/config"
	"github.com/pthm-cable/mpm/telemetry"
)

// Attribute names served by FlatAttribute.
const (
	AttributePositions  = "positions"
	AttributeVelocities = "velocities"
	AttributeMasses     = "masses"
)

var attributes = []string{AttributePositions, AttributeVelocities, AttributeMasses}

// Task is a hierarchical progress record.
type Task struct {
	Name              string
	CompletedSteps    int
	StepsToCompletion int
	SubTasks          []Task
}

// frameData holds the exported attributes of one computed frame, in particle
// creation order.
type frameData map[string][]float32

// Runner drives a State frame by frame on behalf of a host and keeps the
// attributes of every computed frame.
type Runner struct {
	cfg    *config.Config
	state  *State
	perf   *telemetry.PerfCollector
	output *telemetry.OutputManager

	frames      []frameData
	stepInFrame int
}

// NewRunner returns a runner for state using cfg.Settings and cfg.Run. perf
// and output may be nil.
func NewRunner(cfg *config.Config, state *State, perf *telemetry.PerfCollector, output *telemetry.OutputManager) *Runner {
	return &Runner{cfg: cfg, state: state, perf: perf, output: output}
}

// Run computes frames until cfg.Run.Frames are available or ctx is done.
// Cancellation is checked between steps.
func (r *Runner) Run(ctx context.Context) error {
	for len(r.frames) < r.cfg.Run.Frames {
		if err := r.RunFrame(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunFrame computes the next frame.
func (r *Runner) RunFrame(ctx context.Context) error {
	settings := r.cfg.Settings
	dt := settings.TimeStep
	for r.stepInFrame < r.cfg.Run.StepsPerFrame {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.state.Step(settings, dt); err != nil {
			return fmt.Errorf("frame %d: %w", len(r.frames), err)
		}
		// Scripted collider motion.
		for _, c := range r.state.Colliders {
			c.Kinematic.Advance(dt)
		}
		r.stepInFrame++

		if err := r.recordStep(); err != nil {
			return err
		}
	}

	r.frames = append(r.frames, r.snapshot())
	r.stepInFrame = 0
	r.perf.RecordFrame()

	slog.Info("frame",
		"frame", len(r.frames)-1,
		"steps", r.state.Steps(),
		"sim_time", r.state.SimTime(),
		"state", r.state,
	)
	return nil
}

func (r *Runner) recordStep() error {
	step := r.state.Steps()
	if every := r.cfg.Telemetry.StatsEvery; every > 0 && step%every == 0 {
		stats := r.state.Stats()
		slog.Debug("stats", "stats", stats)
		if err := r.output.WriteSteps(stats); err != nil {
			return err
		}
	}
	if window := r.cfg.Telemetry.PerfWindow; r.perf != nil && window > 0 && step%window == 0 {
		stats := r.perf.Stats()
		slog.Info("perf", "perf", stats)
		if err := r.output.WritePerf(stats, step); err != nil {
			return err
		}
	}
	return nil
}

// snapshot exports the current particle state in creation order.
func (r *Runner) snapshot() frameData {
	p := r.state.Particles
	n := p.Len()
	positions := make([]float32, 0, 3*n)
	velocities := make([]float32, 0, 3*n)
	masses := make([]float32, 0, n)
	for _, i := range p.ReverseSortMap {
		x, v := p.Positions[i], p.Velocities[i]
		positions = append(positions, float32(x.X), float32(x.Y), float32(x.Z))
		velocities = append(velocities, float32(v.X), float32(v.Y), float32(v.Z))
		masses = append(masses, float32(p.Masses[i]))
	}
	return frameData{
		AttributePositions:  positions,
		AttributeVelocities: velocities,
		AttributeMasses:     masses,
	}
}

// Poll reports progress: frames overall, and steps of the frame in flight.
func (r *Runner) Poll() Task {
	t := Task{
		Name:              "simulate",
		CompletedSteps:    len(r.frames),
		StepsToCompletion: r.cfg.Run.Frames,
	}
	if len(r.frames) < r.cfg.Run.Frames {
		t.SubTasks = []Task{{
			Name:              fmt.Sprintf("frame %d", len(r.frames)),
			CompletedSteps:    r.stepInFrame,
			StepsToCompletion: r.cfg.Run.StepsPerFrame,
		}}
	}
	return t
}

// AvailableFrames returns the number of computed frames.
func (r *Runner) AvailableFrames() int { return len(r.frames) }

// Attributes lists the attributes available for a computed frame.
func (r *Runner) Attributes(frame int) ([]string, error) {
	if frame < 0 || frame >= len(r.frames) {
		return nil, fmt.Errorf("frame %d not available, have %d", frame, len(r.frames))
	}
	return slices.Clone(attributes), nil
}

// FlatAttribute returns a named attribute of a computed frame as a flat
// array, xyz-interleaved for vectors, in particle creation order.
func (r *Runner) FlatAttribute(frame int, name string) ([]float32, error) {
	if frame < 0 || frame >= len(r.frames) {
		return nil, fmt.Errorf("frame %d not available, have %d", frame, len(r.frames))
	}
	data, ok := r.frames[frame][name]
	if !ok {
		return nil, fmt.Errorf("unknown attribute %q", name)
	}
	return data, nil
}
