package grid

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// WeightedDistance is the signed distance and surface normal of the closest
// surface disk of one collider, as seen from a node.
type WeightedDistance struct {
	Collider int
	Distance float64
	Normal   r3.Vec
}

// closer reports whether a should replace b: smaller |distance| wins, ties are
// broken on the signed distance and then the normal so the result does not
// depend on the order of writers.
func closer(a, b WeightedDistance) bool {
	da, db := math.Abs(a.Distance), math.Abs(b.Distance)
	if da != db {
		return da < db
	}
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if a.Normal.X != b.Normal.X {
		return a.Normal.X < b.Normal.X
	}
	if a.Normal.Y != b.Normal.Y {
		return a.Normal.Y < b.Normal.Y
	}
	return a.Normal.Z < b.Normal.Z
}

// DistanceNode holds the per-collider records of one node. Access is guarded
// by the node's own mutex.
type DistanceNode struct {
	mu      sync.Mutex
	records []WeightedDistance
}

// Offer keeps rec if the node has no record for rec.Collider yet or rec is
// closer than the existing one.
func (n *DistanceNode) Offer(rec WeightedDistance) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.records {
		if n.records[i].Collider != rec.Collider {
			continue
		}
		if closer(rec, n.records[i]) {
			n.records[i] = rec
		}
		return
	}
	n.records = append(n.records, rec)
}

// Record returns the record for a collider.
func (n *DistanceNode) Record(collider int) (WeightedDistance, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, r := range n.records {
		if r.Collider == collider {
			return r, true
		}
	}
	return WeightedDistance{}, false
}

// AppendRecords appends a copy of all records to dst.
func (n *DistanceNode) AppendRecords(dst []WeightedDistance) []WeightedDistance {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append(dst, n.records...)
}

// Empty reports whether the node holds no record.
func (n *DistanceNode) Empty() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.records) == 0
}

// Reset drops all records.
func (n *DistanceNode) Reset() {
	n.mu.Lock()
	n.records = n.records[:0]
	n.mu.Unlock()
}

// DistanceField stores collider distance records for lattice nodes near any
// collider surface.
type DistanceField struct {
	Index *Index
	nodes []DistanceNode
}

// NewDistanceField returns an empty field.
func NewDistanceField() *DistanceField {
	return &DistanceField{Index: NewIndex()}
}

// Len returns the number of nodes.
func (f *DistanceField) Len() int { return f.Index.Len() }

// Node returns the node at c, or nil if c has no entry.
func (f *DistanceField) Node(c Coord) *DistanceNode {
	slot, ok := f.Index.Slot(c)
	if !ok || slot >= len(f.nodes) {
		return nil
	}
	return &f.nodes[slot]
}

// At returns the node in slot.
func (f *DistanceField) At(slot int) *DistanceNode { return &f.nodes[slot] }

// Resize sizes node storage to the index. Records are undefined afterwards
// until every node has been Reset.
func (f *DistanceField) Resize() {
	n := f.Index.Len()
	if cap(f.nodes) < n {
		f.nodes = make([]DistanceNode, n)
		return
	}
	f.nodes = f.nodes[:n]
}
