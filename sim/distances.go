package sim

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mpm/grid"
)

// ScatterDistances splats every collider surface sample, as an oriented disk,
// into the distance field. Each node keeps, per collider, the signed distance
// and normal of the disk closest to it.
func (s *State) ScatterDistances(in PhaseInput) error {
	h := in.Settings.GridNodeSize
	f := s.Distances

	// Nodes no disk reached last step are dropped.
	pruned := f.Index.Retain(func(_ grid.Coord, slot int) bool {
		return !f.At(slot).Empty()
	})

	added, err := s.createDistanceEntries(h)
	if err != nil {
		return err
	}

	f.Index.Reindex()
	f.Resize()
	s.pool.Run(f.Len(), func(_, start, end int) {
		for i := start; i < end; i++ {
			f.At(i).Reset()
		}
	})

	radius := in.Settings.DiskRadius()
	for ci, c := range s.Colliders {
		err := s.pool.RunErr(len(c.Samples), func(_, start, end int) error {
			for _, sample := range c.Samples[start:end] {
				position := c.Kinematic.ToWorldPosition(sample.Position)
				normal := c.Kinematic.ToWorldNormal(sample.Normal)
				for _, node := range grid.Stencil(position, h) {
					to := r3.Sub(node.Position(h), position)
					d := r3.Dot(normal, to)
					if r3.Norm(r3.Sub(to, r3.Scale(d, normal))) > radius {
						// Another nearby disk covers this node.
						continue
					}
					dn := f.Node(node)
					if dn == nil {
						return fmt.Errorf("collider %d, node %v: %w", ci, node, ErrMissingNode)
					}
					dn.Offer(grid.WeightedDistance{Collider: ci, Distance: d, Normal: normal})
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	slog.Debug("distances scattered", "pruned", pruned, "added", added, "nodes", f.Len())
	return nil
}

// createDistanceEntries adds every node touched by a surface sample stencil.
func (s *State) createDistanceEntries(h float64) (int, error) {
	ix := s.Distances.Index
	added := 0
	for _, c := range s.Colliders {
		err := s.pool.RunErr(len(c.Samples), func(worker, start, end int) error {
			nodes := s.workerNodes[worker]
			for _, sample := range c.Samples[start:end] {
				for _, node := range grid.Stencil(c.Kinematic.ToWorldPosition(sample.Position), h) {
					if !ix.Contains(node) {
						nodes = append(nodes, node)
					}
				}
			}
			s.workerNodes[worker] = nodes
			return nil
		})
		if err != nil {
			return added, err
		}
		added += s.mergeWorkerNodes(ix)
	}
	return added, nil
}
