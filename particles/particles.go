// Package particles holds the simulated material points as index-aligned
// arrays together with the sort permutation that tracks their identity.
package particles

import (
	"errors"
	"fmt"
	"math/bits"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mpm/elastic"
	"github.com/pthm-cable/mpm/tensor"
)

// ErrLengthMismatch reports per-particle arrays that are not index-aligned.
var ErrLengthMismatch = errors.New("particle arrays have mismatched lengths")

// MaxColliders is the number of colliders a ColliderSet can address.
const MaxColliders = 64

// ColliderSet is the set of colliders a particle is logically inside of.
type ColliderSet uint64

// Has reports whether collider i is in the set.
func (s ColliderSet) Has(i int) bool { return s&(1<<uint(i)) != 0 }

// With returns the set with collider i added.
func (s ColliderSet) With(i int) ColliderSet { return s | 1<<uint(i) }

// Len returns the number of colliders in the set.
func (s ColliderSet) Len() int { return bits.OnesCount64(uint64(s)) }

// Particle is the initial state of one material point.
type Particle struct {
	Position         r3.Vec
	Velocity         r3.Vec
	Mass             float64
	InitialVolume    float64
	Material         elastic.Material
	Inside           ColliderSet
	PositionGradient tensor.Mat3 // identity if zero
}

// Particles stores per-particle state as index-aligned arrays.
//
// SortMap[i] is the creation index of the particle now stored at i and
// ReverseSortMap is its inverse. TrialPositionGradients and ElasticEnergies are
// scratch buffers owned by the simulation phases.
type Particles struct {
	Positions              []r3.Vec
	Velocities             []r3.Vec
	VelocityGradients      []tensor.Mat3
	PositionGradients      []tensor.Mat3
	Masses                 []float64
	InitialVolumes         []float64
	Materials              []elastic.Material
	Inside                 []ColliderSet
	SortMap                []int
	ReverseSortMap         []int
	TrialPositionGradients []tensor.Mat3
	ElasticEnergies        []float64
}

// Len returns the number of particles.
func (p *Particles) Len() int { return len(p.Positions) }

// Add appends a particle and returns its creation index.
func (p *Particles) Add(in Particle) int {
	id := len(p.SortMap)
	f := in.PositionGradient
	if f == (tensor.Mat3{}) {
		f = tensor.Identity()
	}
	p.Positions = append(p.Positions, in.Position)
	p.Velocities = append(p.Velocities, in.Velocity)
	p.VelocityGradients = append(p.VelocityGradients, tensor.Mat3{})
	p.PositionGradients = append(p.PositionGradients, f)
	p.Masses = append(p.Masses, in.Mass)
	p.InitialVolumes = append(p.InitialVolumes, in.InitialVolume)
	p.Materials = append(p.Materials, in.Material)
	p.Inside = append(p.Inside, in.Inside)
	p.SortMap = append(p.SortMap, id)
	p.ReverseSortMap = append(p.ReverseSortMap, len(p.Positions)-1)
	return id
}

// Validate checks that every persistent array has the same length.
func (p *Particles) Validate() error {
	n := len(p.Positions)
	lengths := []struct {
		name string
		len  int
	}{
		{"velocities", len(p.Velocities)},
		{"velocity gradients", len(p.VelocityGradients)},
		{"position gradients", len(p.PositionGradients)},
		{"masses", len(p.Masses)},
		{"initial volumes", len(p.InitialVolumes)},
		{"materials", len(p.Materials)},
		{"inside", len(p.Inside)},
		{"sort map", len(p.SortMap)},
		{"reverse sort map", len(p.ReverseSortMap)},
	}
	for _, l := range lengths {
		if l.len != n {
			return fmt.Errorf("%s: %d, positions: %d: %w", l.name, l.len, n, ErrLengthMismatch)
		}
	}
	return nil
}

// EnsureScratch sizes the scratch buffers to the particle count.
func (p *Particles) EnsureScratch() {
	n := p.Len()
	p.TrialPositionGradients = resize(p.TrialPositionGradients, n)
	p.ElasticEnergies = resize(p.ElasticEnergies, n)
}

// Permute reorders every persistent array except Positions so that the
// element now at i is the one previously at perm[i], then rebuilds
// ReverseSortMap. Positions are expected to have been moved by the caller.
func (p *Particles) Permute(perm []int) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if len(perm) != p.Len() {
		return fmt.Errorf("permutation: %d, particles: %d: %w", len(perm), p.Len(), ErrLengthMismatch)
	}
	p.Velocities = gather(p.Velocities, perm)
	p.VelocityGradients = gather(p.VelocityGradients, perm)
	p.PositionGradients = gather(p.PositionGradients, perm)
	p.Masses = gather(p.Masses, perm)
	p.InitialVolumes = gather(p.InitialVolumes, perm)
	p.Materials = gather(p.Materials, perm)
	p.Inside = gather(p.Inside, perm)
	p.SortMap = gather(p.SortMap, perm)
	for current, original := range p.SortMap {
		p.ReverseSortMap[original] = current
	}
	return nil
}

func gather[T any](src []T, perm []int) []T {
	out := make([]T, len(src))
	for i, from := range perm {
		out[i] = src[from]
	}
	return out
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}
