package ecs

import "slices"

// Filter selects archetypes that have every component in its required set and
// none in its excluded set. Prefab archetypes are skipped unless
// IncludePrefabs is set.
type Filter struct {
	all      mask
	none     mask
	ids      []ComponentID
	excluded []ComponentID
	prefabs  bool
}

func NewFilter(ids ...ComponentID) Filter {
	return Filter{all: makeMask(ids), ids: slices.Clone(ids)}
}

// Without returns a copy of f that also excludes ids.
func (f Filter) Without(ids ...ComponentID) Filter {
	f.excluded = append(slices.Clone(f.excluded), ids...)
	for _, id := range ids {
		f.none.set(id)
	}
	return f
}

// IncludePrefabs returns a copy of f that also matches prefab archetypes.
func (f Filter) IncludePrefabs() Filter {
	f.prefabs = true
	return f
}

// Components returns the required component ids.
func (f Filter) Components() []ComponentID { return slices.Clone(f.ids) }

// Excluded returns the excluded component ids.
func (f Filter) Excluded() []ComponentID { return slices.Clone(f.excluded) }

func (f Filter) Matches(a *Archetype) bool {
	if !f.prefabs && a.mask.has(PrefabID) {
		return false
	}
	return a.matches(f.all, f.none)
}

// Chunks returns the non-empty chunks of every matching archetype. The slice
// is a snapshot; parallel jobs partition work over it.
func (s *Store) Chunks(f Filter) []*Chunk {
	var out []*Chunk
	for _, a := range s.archetypes {
		if f.Matches(a) {
			out = append(out, a.chunks...)
		}
	}
	return out
}

// Count returns the number of entities matching f.
func (s *Store) Count(f Filter) int {
	n := 0
	for _, a := range s.archetypes {
		if f.Matches(a) {
			n += a.count
		}
	}
	return n
}

// Entities returns every entity matching f.
func (s *Store) Entities(f Filter) []Entity {
	out := make([]Entity, 0, s.Count(f))
	for _, c := range s.Chunks(f) {
		out = append(out, c.Entities()...)
	}
	return out
}

// RowIter walks the rows matching a filter one at a time:
//
//	it := store.Query(filter)
//	for it.Next() {
//		e := it.Entity()
//	}
//	if err := it.Err(); err != nil { ... }
//
// A structural change to the store ends the iteration with ErrStructuralChange.
type RowIter struct {
	store   *Store
	filter  Filter
	version uint64
	arch    int
	chunk   int
	row     int
	cur     *Chunk
	done    bool
	err     error
}

func (s *Store) Query(f Filter) *RowIter {
	return &RowIter{
		store:   s,
		filter:  f,
		version: s.version,
		chunk:   -1,
		row:     -1,
	}
}

func (it *RowIter) Next() bool {
	if it.done {
		return false
	}
	if it.store.version != it.version {
		it.err = ErrStructuralChange
		it.stop()
		return false
	}
	it.row++
	for it.cur == nil || it.row >= it.cur.count {
		if !it.advance() {
			it.stop()
			return false
		}
	}
	return true
}

func (it *RowIter) advance() bool {
	archs := it.store.archetypes
	it.chunk++
	for it.arch < len(archs) {
		a := archs[it.arch]
		if it.chunk < len(a.chunks) && it.filter.Matches(a) {
			it.cur = a.chunks[it.chunk]
			it.row = 0
			return true
		}
		it.arch++
		it.chunk = 0
	}
	return false
}

func (it *RowIter) stop() {
	it.done = true
	it.cur = nil
}

func (it *RowIter) Entity() Entity { return it.cur.entities[it.row] }
func (it *RowIter) Chunk() *Chunk  { return it.cur }
func (it *RowIter) Row() int       { return it.row }
func (it *RowIter) Err() error     { return it.err }
