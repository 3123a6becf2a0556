package ecs

import "fmt"

// Entity encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
// Live entities carry a generation in [1, 2^31), so the zero value is Null.
// A command buffer placeholder sets the top generation bit and keeps the id
// of the buffer that minted it in the remaining bits.
type Entity uint64

// Null is the zero Entity. It never resolves.
const Null Entity = 0

const placeholderBit uint32 = 1 << 31

func NewEntity(index uint32, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(index))
}

// NewPlaceholder returns the placeholder numbered index within buffer.
func NewPlaceholder(index, buffer uint32) Entity {
	return NewEntity(index, placeholderBit|buffer&^placeholderBit)
}

func (e Entity) Index() uint32      { return uint32(e) }
func (e Entity) Generation() uint32 { return uint32(e >> 32) }
func (e Entity) IsNull() bool       { return e == Null }

// IsPlaceholder reports whether e was minted by a command buffer and still
// needs resolving during playback.
func (e Entity) IsPlaceholder() bool {
	return e.Generation()&placeholderBit != 0
}

func (e Entity) String() string {
	if e.IsPlaceholder() {
		return fmt.Sprintf("Placeholder(%d)", e.Index())
	}
	return fmt.Sprintf("Entity(%d:%d)", e.Index(), e.Generation())
}

// location is where an entity's row currently lives. Chunks are referenced by
// pointer so releasing an empty chunk never invalidates other locations.
type location struct {
	arch  *Archetype
	chunk *Chunk
	row   int
}

// entityTable maps entity indices to rows with generational indices and a free
// list. It is the indirection that keeps external Entity values valid while
// rows are swapped around inside chunks.
type entityTable struct {
	generations []uint32
	locations   []location
	freeList    []uint32
	nextIndex   uint32
	alive       int
}

func newEntityTable() entityTable {
	return entityTable{
		generations: make([]uint32, 0, 1024),
		locations:   make([]location, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (t *entityTable) alloc() Entity {
	t.alive++
	if len(t.freeList) > 0 {
		idx := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		return NewEntity(idx, t.generations[idx])
	}
	idx := t.nextIndex
	t.nextIndex++
	t.generations = append(t.generations, 1)
	t.locations = append(t.locations, location{})
	return NewEntity(idx, 1)
}

func (t *entityTable) isAlive(e Entity) bool {
	idx := e.Index()
	if gen := e.Generation(); gen == 0 || gen&placeholderBit != 0 || idx >= t.nextIndex {
		return false
	}
	return t.generations[idx] == e.Generation() && t.locations[idx].chunk != nil
}

func (t *entityTable) locate(e Entity) (*location, bool) {
	if !t.isAlive(e) {
		return nil, false
	}
	return &t.locations[e.Index()], true
}

func (t *entityTable) release(e Entity) {
	idx := e.Index()
	gen := t.generations[idx] + 1
	if gen&placeholderBit != 0 {
		gen = 1
	}
	t.generations[idx] = gen
	t.locations[idx] = location{}
	t.freeList = append(t.freeList, idx)
	t.alive--
}
