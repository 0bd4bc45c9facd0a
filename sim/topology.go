package sim

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/mpm/grid"
	"github.com/pthm-cable/mpm/particles"
)

// worstIncompatibility returns the collider whose surface separates a particle
// from a node by the largest distance. A record conflicts when the node is on
// the other side of that collider's surface than the particle is logically on.
// A node at distance zero counts as outside.
func worstIncompatibility(inside particles.ColliderSet, records []grid.WeightedDistance) (int, bool) {
	worst, worstDist := -1, -1.0
	for _, r := range records {
		if inside.Has(r.Collider) == (r.Distance < 0) {
			continue
		}
		d := math.Abs(r.Distance)
		if d > worstDist || (d == worstDist && r.Collider < worst) {
			worst, worstDist = r.Collider, d
		}
	}
	return worst, worst >= 0
}

// RebuildTopology recomputes which lattice nodes are active this step and in
// which grid each lives, then renumbers every grid and registers each particle
// as a contributor of its stencil nodes.
//
// Nodes a particle cannot share with the common grid, because a collider
// surface lies between them, go to that collider's grid. Each collider grid has
// exactly one goroutine inserting into it, fed through a channel.
func (s *State) RebuildTopology(in PhaseInput) error {
	h := in.Settings.GridNodeSize
	p := s.Particles
	grids := s.Grids()

	// Entries nobody contributed to last step are dropped.
	pruned := 0
	for _, g := range grids {
		pruned += g.Index.Retain(func(_ grid.Coord, slot int) bool {
			return g.HasContributors(slot)
		})
	}

	if cap(s.routes) < p.Len() {
		s.routes = make([]route, p.Len())
	}
	s.routes = s.routes[:p.Len()]

	senders := make([]chan grid.Coord, len(s.ColliderGrids))
	var collectors sync.WaitGroup
	for i, g := range s.ColliderGrids {
		ch := make(chan grid.Coord, 1024)
		senders[i] = ch
		collectors.Add(1)
		go func(ix *grid.Index) {
			defer collectors.Done()
			for c := range ch {
				ix.Insert(c)
			}
		}(g.Index)
	}

	err := s.pool.RunErr(p.Len(), func(worker, start, end int) error {
		records := s.workerRecords[worker]
		nodes := s.workerNodes[worker]
		for i := start; i < end; i++ {
			r := &s.routes[i]
			for k, c := range grid.Stencil(p.Positions[i], h) {
				r.grid[k] = commonGrid
				records = records[:0]
				if node := s.Distances.Node(c); node != nil {
					records = node.AppendRecords(records)
				}
				if ci, ok := worstIncompatibility(p.Inside[i], records); ok {
					if ci >= len(senders) {
						return fmt.Errorf("particle %d: distance record for collider %d of %d", i, ci, len(senders))
					}
					r.grid[k] = int8(ci)
					senders[ci] <- c
					continue
				}
				if !s.Common.Index.Contains(c) {
					nodes = append(nodes, c)
				}
			}
		}
		s.workerRecords[worker] = records
		s.workerNodes[worker] = nodes
		return nil
	})

	for _, ch := range senders {
		close(ch)
	}
	collectors.Wait()
	if err != nil {
		return err
	}

	added := s.mergeWorkerNodes(s.Common.Index)
	s.generations = s.generations[:0]
	for _, g := range grids {
		g.Index.Reindex()
		g.ResetContributors()
		s.generations = append(s.generations, g.Index.Generation())
	}

	if err := s.resolveRoutes(h); err != nil {
		return err
	}
	for i := range s.routes {
		r := &s.routes[i]
		for k := range r.grid {
			g := s.gridFor(r.grid[k])
			g.Contributors[r.slot[k]] = append(g.Contributors[r.slot[k]], int32(i))
		}
	}

	s.logTopology(pruned, added)
	return nil
}

// resolveRoutes fills the slot of every routed stencil node.
func (s *State) resolveRoutes(h float64) error {
	p := s.Particles
	return s.pool.RunErr(p.Len(), func(_, start, end int) error {
		for i := start; i < end; i++ {
			r := &s.routes[i]
			for k, c := range grid.Stencil(p.Positions[i], h) {
				slot, ok := s.gridFor(r.grid[k]).Index.Slot(c)
				if !ok {
					return fmt.Errorf("particle %d, node %v, grid %d: %w", i, c, r.grid[k], ErrMissingNode)
				}
				r.slot[k] = int32(slot)
			}
		}
		return nil
	})
}

func (s *State) logTopology(pruned, added int) {
	colliderNodes := 0
	for _, g := range s.ColliderGrids {
		colliderNodes += g.Len()
	}
	slog.Debug("topology rebuilt",
		"pruned", pruned,
		"added", added,
		"common_nodes", s.Common.Len(),
		"collider_nodes", colliderNodes,
	)
}
