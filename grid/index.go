package grid

import "slices"

// Index maps lattice coordinates to dense slots 0..Len()-1.
//
// Slots are only meaningful between calls to Reindex: Reindex renumbers every
// entry and bumps Generation, so slots cached before it are invalid after it.
// Retain leaves slots stale until the next Reindex.
type Index struct {
	slots      map[Coord]int
	keys       []Coord
	generation uint64
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{slots: make(map[Coord]int)}
}

// Len returns the number of entries.
func (ix *Index) Len() int { return len(ix.keys) }

// Generation counts completed re-indexings.
func (ix *Index) Generation() uint64 { return ix.generation }

// Slot returns the slot of c.
func (ix *Index) Slot(c Coord) (int, bool) {
	s, ok := ix.slots[c]
	return s, ok
}

// Contains reports whether c has an entry.
func (ix *Index) Contains(c Coord) bool {
	_, ok := ix.slots[c]
	return ok
}

// Insert adds c if absent and reports whether it was added.
func (ix *Index) Insert(c Coord) bool {
	if _, ok := ix.slots[c]; ok {
		return false
	}
	ix.slots[c] = len(ix.keys)
	ix.keys = append(ix.keys, c)
	return true
}

// Keys returns the coordinates in slot order. The slice is owned by the index.
func (ix *Index) Keys() []Coord { return ix.keys }

// Retain drops every entry for which keep returns false and returns the number
// dropped. keep receives the slot assigned by the last Reindex.
func (ix *Index) Retain(keep func(c Coord, slot int) bool) int {
	kept := ix.keys[:0]
	dropped := 0
	for _, c := range ix.keys {
		if keep(c, ix.slots[c]) {
			kept = append(kept, c)
			continue
		}
		delete(ix.slots, c)
		dropped++
	}
	ix.keys = kept
	return dropped
}

// Reindex sorts the coordinates and assigns contiguous slots in that order.
func (ix *Index) Reindex() {
	slices.SortFunc(ix.keys, Compare)
	for i, c := range ix.keys {
		ix.slots[c] = i
	}
	ix.generation++
}
