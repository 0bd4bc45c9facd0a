package grid

import "gonum.org/v1/gonum/spatial/r3"

// Boundary is the velocity constraint recorded for a node by collider
// conformance.
type Boundary struct {
	Active bool
	// Normal points away from the collider surface towards the material side.
	Normal r3.Vec
	// ColliderValue is the collider's own surface velocity along Normal.
	ColliderValue float64
	// ConditionValue is the conformed velocity along Normal minus ColliderValue.
	ConditionValue float64
	// DualVariable is reserved for an implicit contact solve and seeded to 1.
	DualVariable float64
}

// Momentum is one sparse momentum grid. All slices are indexed by the slots of
// Index and are only valid for the Index generation they were sized for.
type Momentum struct {
	Index        *Index
	Masses       []float64
	Velocities   []r3.Vec
	Boundaries   []Boundary
	Contributors [][]int32
}

// NewMomentum returns an empty grid.
func NewMomentum() *Momentum {
	return &Momentum{Index: NewIndex()}
}

// Len returns the number of active nodes.
func (g *Momentum) Len() int { return g.Index.Len() }

// ResetMomentum sizes masses and velocities to the index and zeroes them.
func (g *Momentum) ResetMomentum() {
	n := g.Index.Len()
	g.Masses = resize(g.Masses, n)
	g.Velocities = resize(g.Velocities, n)
	clear(g.Masses)
	clear(g.Velocities)
}

// ResetBoundaries sizes the boundary records to the index and clears them.
func (g *Momentum) ResetBoundaries() {
	g.Boundaries = resize(g.Boundaries, g.Index.Len())
	clear(g.Boundaries)
}

// ResetContributors sizes the contributor lists to the index and empties them,
// keeping their backing arrays.
func (g *Momentum) ResetContributors() {
	g.Contributors = resize(g.Contributors, g.Index.Len())
	for i := range g.Contributors {
		g.Contributors[i] = g.Contributors[i][:0]
	}
}

// HasContributors reports whether slot had at least one contributor in the
// last registration pass.
func (g *Momentum) HasContributors(slot int) bool {
	return slot < len(g.Contributors) && len(g.Contributors[slot]) > 0
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}
