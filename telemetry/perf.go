package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for the simulation step.
const (
	PhaseSort            = "sort"
	PhaseTopology        = "topology"
	PhaseDistances       = "distances"
	PhaseScatterMomentum = "scatter_momentum"
	PhaseGravity         = "gravity"
	PhaseConform         = "conform"
	PhaseGather          = "gather"
	PhaseEnergy          = "energy"
)

// Phases lists the step phases in execution order.
var Phases = []string{
	PhaseSort, PhaseTopology, PhaseDistances, PhaseScatterMomentum,
	PhaseGravity, PhaseConform, PhaseGather, PhaseEnergy,
}

// PerfSample holds timing data for a single step.
type PerfSample struct {
	StepDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks performance metrics over a rolling window.
// A nil *PerfCollector is valid and records nothing.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	stepStart     time.Time
	phaseStart    time.Time
	lastPhase     string
	now           func() time.Time

	// Output frame timing
	lastFrameTime time.Time
	frameDuration time.Duration
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of steps to average over.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
		now:           time.Now,
	}
}

// StartStep begins timing a new simulation step.
func (p *PerfCollector) StartStep() {
	if p == nil {
		return
	}
	p.stepStart = p.now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase.
func (p *PerfCollector) StartPhase(phase string) {
	if p == nil {
		return
	}
	now := p.now()
	// End previous phase if any
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndStep finishes timing the current step and records the sample.
func (p *PerfCollector) EndStep() {
	if p == nil {
		return
	}
	now := p.now()
	// End final phase
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		StepDuration: now.Sub(p.stepStart),
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// RecordFrame records wall time between completed output frames.
func (p *PerfCollector) RecordFrame() {
	if p == nil {
		return
	}
	now := p.now()
	if !p.lastFrameTime.IsZero() {
		p.frameDuration = now.Sub(p.lastFrameTime)
	}
	p.lastFrameTime = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	// Step timing
	AvgStepDuration time.Duration
	MinStepDuration time.Duration
	MaxStepDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total step time
	PhasePct map[string]float64

	// Throughput
	StepsPerSecond float64

	// Output frame timing
	FrameDuration time.Duration
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p == nil || p.sampleCount == 0 {
		var frame time.Duration
		if p != nil {
			frame = p.frameDuration
		}
		return PerfStats{
			PhaseAvg:      make(map[string]time.Duration),
			PhasePct:      make(map[string]float64),
			FrameDuration: frame,
		}
	}

	var totalStep time.Duration
	var minStep, maxStep time.Duration
	phaseSum := make(map[string]time.Duration)

	// Iterate over valid samples
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		totalStep += s.StepDuration

		if i == 0 || s.StepDuration < minStep {
			minStep = s.StepDuration
		}
		if s.StepDuration > maxStep {
			maxStep = s.StepDuration
		}

		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avgStep := totalStep / time.Duration(p.sampleCount)

	// Calculate phase averages and percentages
	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avgStep > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avgStep) * 100
		}
	}

	var stepsPerSec float64
	if avgStep > 0 {
		stepsPerSec = float64(time.Second) / float64(avgStep)
	}

	return PerfStats{
		AvgStepDuration: avgStep,
		MinStepDuration: minStep,
		MaxStepDuration: maxStep,
		PhaseAvg:        phaseAvg,
		PhasePct:        phasePct,
		StepsPerSecond:  stepsPerSec,
		FrameDuration:   p.frameDuration,
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_step_us", s.AvgStepDuration.Microseconds()),
		slog.Int64("min_step_us", s.MinStepDuration.Microseconds()),
		slog.Int64("max_step_us", s.MaxStepDuration.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
	}

	if s.FrameDuration > 0 {
		attrs = append(attrs, slog.Int64("frame_ms", s.FrameDuration.Milliseconds()))
	}

	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, slog.Float64(phase+"_pct", float64(int(pct*10))/10))
		}
	}

	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd          int     `csv:"window_end"`
	AvgStepUS          int64   `csv:"avg_step_us"`
	MinStepUS          int64   `csv:"min_step_us"`
	MaxStepUS          int64   `csv:"max_step_us"`
	StepsPerSec        float64 `csv:"steps_per_sec"`
	FrameMS            int64   `csv:"frame_ms"`
	SortPct            float64 `csv:"sort_pct"`
	TopologyPct        float64 `csv:"topology_pct"`
	DistancesPct       float64 `csv:"distances_pct"`
	ScatterMomentumPct float64 `csv:"scatter_momentum_pct"`
	GravityPct         float64 `csv:"gravity_pct"`
	ConformPct         float64 `csv:"conform_pct"`
	GatherPct          float64 `csv:"gather_pct"`
	EnergyPct          float64 `csv:"energy_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:          windowEnd,
		AvgStepUS:          s.AvgStepDuration.Microseconds(),
		MinStepUS:          s.MinStepDuration.Microseconds(),
		MaxStepUS:          s.MaxStepDuration.Microseconds(),
		StepsPerSec:        s.StepsPerSecond,
		FrameMS:            s.FrameDuration.Milliseconds(),
		SortPct:            s.PhasePct[PhaseSort],
		TopologyPct:        s.PhasePct[PhaseTopology],
		DistancesPct:       s.PhasePct[PhaseDistances],
		ScatterMomentumPct: s.PhasePct[PhaseScatterMomentum],
		GravityPct:         s.PhasePct[PhaseGravity],
		ConformPct:         s.PhasePct[PhaseConform],
		GatherPct:          s.PhasePct[PhaseGather],
		EnergyPct:          s.PhasePct[PhaseEnergy],
	}
}
