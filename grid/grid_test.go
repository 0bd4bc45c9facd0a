package grid

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestBaseAndStencil(t *testing.T) {
	tests := []struct {
		name string
		p    r3.Vec
		h    float64
		want Coord
	}{
		{"origin", r3.Vec{}, 0.1, Coord{-1, -1, -1}},
		{"cell center", r3.Vec{X: 0.06, Y: 0.06, Z: 0.06}, 0.1, Coord{0, 0, 0}},
		{"just below center", r3.Vec{X: 0.049, Y: 0.151, Z: -0.02}, 0.1, Coord{-1, 1, -1}},
		{"unit spacing", r3.Vec{X: 2.7, Y: -3.2, Z: 10}, 1, Coord{2, -4, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Base(tt.p, tt.h))
			st := Stencil(tt.p, tt.h)
			assert.Equal(t, tt.want, st[0])
			assert.Equal(t, tt.want.Add(Coord{2, 2, 2}), st[StencilSize-1])
			assert.Equal(t, tt.want.Add(Coord{0, 0, 1}), st[1])
		})
	}
}

func TestIndexSlotsContiguous(t *testing.T) {
	ix := NewIndex()
	coords := []Coord{{3, 0, 0}, {-1, 2, 5}, {0, 0, 0}, {3, 0, 0}, {0, -7, 1}}
	added := 0
	for _, c := range coords {
		if ix.Insert(c) {
			added++
		}
	}
	require.Equal(t, 4, added)
	require.Equal(t, 4, ix.Len())

	ix.Reindex()
	assert.Equal(t, uint64(1), ix.Generation())

	seen := make([]bool, ix.Len())
	for _, c := range ix.Keys() {
		slot, ok := ix.Slot(c)
		require.True(t, ok)
		require.False(t, seen[slot], "duplicate slot %d", slot)
		seen[slot] = true
	}
	for i, s := range seen {
		assert.True(t, s, "gap at slot %d", i)
	}

	keys := ix.Keys()
	for i := 1; i < len(keys); i++ {
		assert.Negative(t, Compare(keys[i-1], keys[i]))
	}
}

func TestIndexRetainThenReindex(t *testing.T) {
	ix := NewIndex()
	for x := int32(0); x < 10; x++ {
		ix.Insert(Coord{x, 0, 0})
	}
	ix.Reindex()

	dropped := ix.Retain(func(c Coord, slot int) bool {
		assert.Equal(t, int(c[0]), slot)
		return c[0]%2 == 0
	})
	assert.Equal(t, 5, dropped)
	assert.False(t, ix.Contains(Coord{3, 0, 0}))

	ix.Insert(Coord{-4, 0, 0})
	ix.Reindex()
	require.Equal(t, 6, ix.Len())
	for i, c := range ix.Keys() {
		slot, _ := ix.Slot(c)
		assert.Equal(t, i, slot)
	}
	slot, _ := ix.Slot(Coord{-4, 0, 0})
	assert.Equal(t, 0, slot)
}

func TestDistanceNodeKeepsSmallestMagnitude(t *testing.T) {
	var n DistanceNode
	up := r3.Vec{Y: 1}
	n.Offer(WeightedDistance{Collider: 0, Distance: 0.3, Normal: up})
	n.Offer(WeightedDistance{Collider: 0, Distance: -0.1, Normal: up})
	n.Offer(WeightedDistance{Collider: 0, Distance: 0.2, Normal: up})
	n.Offer(WeightedDistance{Collider: 1, Distance: 0.5, Normal: up})

	rec, ok := n.Record(0)
	require.True(t, ok)
	assert.Equal(t, -0.1, rec.Distance)

	rec, ok = n.Record(1)
	require.True(t, ok)
	assert.Equal(t, 0.5, rec.Distance)

	_, ok = n.Record(2)
	assert.False(t, ok)

	n.Reset()
	assert.True(t, n.Empty())
}

func TestDistanceNodeConcurrentOffersAreOrderIndependent(t *testing.T) {
	offers := []WeightedDistance{
		{Distance: 0.2, Normal: r3.Vec{Y: 1}},
		{Distance: -0.2, Normal: r3.Vec{Y: 1}},
		{Distance: 0.2, Normal: r3.Vec{X: 1}},
		{Distance: 0.4, Normal: r3.Vec{Y: 1}},
	}

	var want WeightedDistance
	for run := 0; run < 20; run++ {
		var n DistanceNode
		var wg sync.WaitGroup
		for i := range offers {
			wg.Add(1)
			go func(rec WeightedDistance) {
				defer wg.Done()
				n.Offer(rec)
			}(offers[(i+run)%len(offers)])
		}
		wg.Wait()

		got, ok := n.Record(0)
		require.True(t, ok)
		if run == 0 {
			want = got
			continue
		}
		assert.Equal(t, want, got)
	}
	assert.Equal(t, -0.2, want.Distance)
}

func TestDistanceFieldNodeLookup(t *testing.T) {
	f := NewDistanceField()
	f.Index.Insert(Coord{1, 2, 3})
	f.Index.Insert(Coord{0, 0, 0})
	f.Index.Reindex()
	f.Resize()
	for i := 0; i < f.Len(); i++ {
		f.At(i).Reset()
	}

	require.NotNil(t, f.Node(Coord{1, 2, 3}))
	assert.Nil(t, f.Node(Coord{9, 9, 9}))

	f.Node(Coord{0, 0, 0}).Offer(WeightedDistance{Collider: 2, Distance: 1})
	assert.True(t, f.At(0).AppendRecords(nil)[0].Collider == 2)
	assert.True(t, f.At(1).Empty())
}

func TestMomentumResetKeepsCapacity(t *testing.T) {
	g := NewMomentum()
	for x := int32(0); x < 4; x++ {
		g.Index.Insert(Coord{x, 0, 0})
	}
	g.Index.Reindex()

	g.ResetContributors()
	g.Contributors[2] = append(g.Contributors[2], 7, 9)
	g.ResetMomentum()
	g.Masses[1] = 3

	assert.True(t, g.HasContributors(2))
	assert.False(t, g.HasContributors(0))
	assert.False(t, g.HasContributors(10))

	g.ResetContributors()
	g.ResetMomentum()
	assert.Empty(t, g.Contributors[2])
	assert.GreaterOrEqual(t, cap(g.Contributors[2]), 2)
	assert.Zero(t, g.Masses[1])
	assert.Len(t, g.Velocities, 4)
}
