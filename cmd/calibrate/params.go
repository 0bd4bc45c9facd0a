package main

import (
	"github.com/pthm-cable/mpm/config"
)

// ParamSpec defines a single calibrated parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all calibrated parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of calibrated parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Block material
			{Name: "youngs_modulus", Path: "scene.block.material.youngs_modulus", Min: 2e3, Max: 1e5, Default: 1e4},
			{Name: "poissons_ratio", Path: "scene.block.material.poissons_ratio", Min: 0.05, Max: 0.45, Default: 0.3},
			// Contact
			{Name: "floor_friction", Path: "scene.colliders[floor].friction", Min: 0, Max: 1, Default: 0.5},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct. The floor
// friction applies to the collider named "floor" if there is one.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	// Order must match Specs order
	cfg.Scene.Block.Material.YoungsModulus = clamped[0]
	cfg.Scene.Block.Material.PoissonsRatio = clamped[1]
	if i, ok := cfg.Derived.ColliderIndex["floor"]; ok {
		cfg.Scene.Colliders[i].Friction = clamped[2]
	}
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	friction := pv.Specs[2].Default
	if i, ok := cfg.Derived.ColliderIndex["floor"]; ok {
		friction = cfg.Scene.Colliders[i].Friction
	}
	return []float64{
		cfg.Scene.Block.Material.YoungsModulus,
		cfg.Scene.Block.Material.PoissonsRatio,
		friction,
	}
}
