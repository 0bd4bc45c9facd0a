package sim

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mpm/grid"
)

// ConformToColliders applies each collider's velocity rule to the nodes of its
// grid and records the resulting boundary condition. Nodes without a distance
// record for their collider get no boundary and keep their velocity.
func (s *State) ConformToColliders(in PhaseInput) error {
	h := in.Settings.GridNodeSize

	// The common grid carries no constraints, only sized records.
	s.Common.ResetBoundaries()

	for ci, c := range s.Colliders {
		g := s.ColliderGrids[ci]
		g.ResetBoundaries()
		keys := g.Index.Keys()
		s.pool.Run(g.Len(), func(_, start, end int) {
			for slot := start; slot < end; slot++ {
				dn := s.Distances.Node(keys[slot])
				if dn == nil {
					continue
				}
				rec, ok := dn.Record(ci)
				if !ok {
					continue
				}

				position := keys[slot].Position(h)
				// Point away from the side the node is on.
				normal := rec.Normal
				if rec.Distance >= 0 {
					normal = r3.Scale(-1, normal)
				}

				v := c.ConformVelocity(position, g.Velocities[slot], normal)
				g.Velocities[slot] = v

				colliderValue := r3.Dot(normal, c.Kinematic.PointVelocity(position))
				g.Boundaries[slot] = grid.Boundary{
					Active:         true,
					Normal:         normal,
					ColliderValue:  colliderValue,
					ConditionValue: r3.Dot(v, normal) - colliderValue,
					DualVariable:   1,
				}
			}
		})
	}
	return nil
}
