// Package sim advances a Material Point Method simulation: particles transfer
// mass and momentum to sparse background grids, the grids are constrained by
// kinematic colliders, and velocities are gathered back to the particles.
//
// A step is an ordered list of phases. Each phase fans out over particles or
// grid nodes on the worker pool and fully joins before the next phase starts.
package sim

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/mpm/collider"
	"github.com/pthm-cable/mpm/config"
	"github.com/pthm-cable/mpm/grid"
	"github.com/pthm-cable/mpm/parallel"
	"github.com/pthm-cable/mpm/particles"
	"github.com/pthm-cable/mpm/telemetry"
)

// ErrMissingNode reports a grid node that must exist but does not.
var ErrMissingNode = errors.New("missing grid node")

// ErrStaleTopology reports a grid re-indexed after the routes were resolved.
var ErrStaleTopology = errors.New("stale grid topology")

// commonGrid is the route value of nodes in the shared grid.
const commonGrid = -1

// PhaseInput bundles what a phase reads besides the state itself.
type PhaseInput struct {
	Settings config.Settings
	TimeStep float64
	Step     int
}

// route records where each stencil node of a particle lives for the current
// step: the grid it was routed to (commonGrid or a collider index) and its
// slot in that grid.
type route struct {
	grid [grid.StencilSize]int8
	slot [grid.StencilSize]int32
}

// State is the complete mutable simulation state.
type State struct {
	Particles *particles.Particles
	Colliders []*collider.Collider

	// Common is the grid for free space, ColliderGrids[i] holds nodes claimed
	// by Colliders[i].
	Common        *grid.Momentum
	ColliderGrids []*grid.Momentum
	Distances     *grid.DistanceField

	pool *parallel.Pool
	perf *telemetry.PerfCollector

	steps   int
	simTime float64

	// Scratch reused across steps.
	routes        []route
	generations   []uint64 // index generation of each grid when routes were resolved
	workerNodes   [][]grid.Coord
	workerRecords [][]grid.WeightedDistance
}

// NewState wires particles and colliders to empty grids. The pool is owned by
// the caller; perf may be nil.
func NewState(p *particles.Particles, colliders []*collider.Collider, pool *parallel.Pool, perf *telemetry.PerfCollector) (*State, error) {
	if len(colliders) > particles.MaxColliders {
		return nil, fmt.Errorf("%d colliders, at most %d supported", len(colliders), particles.MaxColliders)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("particles: %w", err)
	}

	s := &State{
		Particles:     p,
		Colliders:     colliders,
		Common:        grid.NewMomentum(),
		ColliderGrids: make([]*grid.Momentum, len(colliders)),
		Distances:     grid.NewDistanceField(),
		pool:          pool,
		perf:          perf,
		workerNodes:   make([][]grid.Coord, pool.Workers()),
		workerRecords: make([][]grid.WeightedDistance, pool.Workers()),
	}
	for i := range s.ColliderGrids {
		s.ColliderGrids[i] = grid.NewMomentum()
	}
	return s, nil
}

// Grids returns the common grid followed by every collider grid.
func (s *State) Grids() []*grid.Momentum {
	out := make([]*grid.Momentum, 0, 1+len(s.ColliderGrids))
	out = append(out, s.Common)
	return append(out, s.ColliderGrids...)
}

// gridFor returns the grid a route value refers to.
func (s *State) gridFor(r int8) *grid.Momentum {
	if r == commonGrid {
		return s.Common
	}
	return s.ColliderGrids[r]
}

// Steps returns the number of completed steps.
func (s *State) Steps() int { return s.steps }

// SimTime returns the simulated time of completed steps.
func (s *State) SimTime() float64 { return s.simTime }

// LogValue implements slog.LogValuer for structured logging.
func (s *State) LogValue() slog.Value {
	colliderNodes := 0
	for _, g := range s.ColliderGrids {
		colliderNodes += g.Len()
	}
	return slog.GroupValue(
		slog.Int("step", s.steps),
		slog.Int("particles", s.Particles.Len()),
		slog.Int("common_nodes", s.Common.Len()),
		slog.Int("collider_nodes", colliderNodes),
		slog.Int("distance_nodes", s.Distances.Len()),
	)
}

// mergeWorkerNodes inserts every buffered coordinate into ix in worker order
// and empties the buffers.
func (s *State) mergeWorkerNodes(ix *grid.Index) int {
	added := 0
	for w := range s.workerNodes {
		for _, c := range s.workerNodes[w] {
			if ix.Insert(c) {
				added++
			}
		}
		s.workerNodes[w] = s.workerNodes[w][:0]
	}
	return added
}
