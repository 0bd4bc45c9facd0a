package telemetry

import (
	"log/slog"
	"sort"
)

// StepStats holds a snapshot of the simulation after one step.
type StepStats struct {
	Step       int     `csv:"step"`
	SimTimeSec float64 `csv:"sim_time"`

	// Sizes
	Particles     int `csv:"particles"`
	CommonNodes   int `csv:"common_nodes"`
	ColliderNodes int `csv:"collider_nodes"` // Summed over all collider grids
	DistanceNodes int `csv:"distance_nodes"`
	BoundaryNodes int `csv:"boundary_nodes"` // Nodes with an active boundary record

	// Conservation
	GridMass      float64 `csv:"grid_mass"`
	KineticEnergy float64 `csv:"kinetic_energy"`
	ElasticEnergy float64 `csv:"elastic_energy"`

	// Particle speed distribution
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	// Lowest particle, for penetration checks
	MinHeight float64 `csv:"min_height"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeSpeedStats calculates mean, p90 and max of the given speeds.
func ComputeSpeedStats(values []float64) (mean, p90, maxSpeed float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	// Sort for percentiles
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return mean, Percentile(sorted, 0.90), sorted[n-1]
}

// LogValue implements slog.LogValuer for structured logging.
func (s StepStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("step", s.Step),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("particles", s.Particles),
		slog.Int("common_nodes", s.CommonNodes),
		slog.Int("collider_nodes", s.ColliderNodes),
		slog.Int("distance_nodes", s.DistanceNodes),
		slog.Int("boundary_nodes", s.BoundaryNodes),
		slog.Float64("grid_mass", s.GridMass),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Float64("elastic_energy", s.ElasticEnergy),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("min_height", s.MinHeight),
	)
}
