package ecs

import (
	"slices"
	"unsafe"
)

// Archetype owns every chunk whose entities share exactly one component set.
type Archetype struct {
	store        *Store
	id           int
	mask         mask
	types        []ComponentID
	slots        [MaxComponentTypes]int16
	chunks       []*Chunk
	rowsPerChunk int
	count        int

	addEdges    map[ComponentID]*Archetype
	removeEdges map[ComponentID]*Archetype
}

func newArchetype(s *Store, id int, types []ComponentID) *Archetype {
	a := &Archetype{
		store:       s,
		id:          id,
		mask:        makeMask(types),
		types:       types,
		addEdges:    make(map[ComponentID]*Archetype),
		removeEdges: make(map[ComponentID]*Archetype),
	}
	for i := range a.slots {
		a.slots[i] = -1
	}
	rowBytes := unsafe.Sizeof(Entity(0))
	for i, t := range types {
		a.slots[t] = int16(i)
		rowBytes += s.registry.info(t).size
	}
	a.rowsPerChunk = max(1, s.opts.ChunkBytes/int(rowBytes))
	return a
}

func (a *Archetype) ID() int                     { return a.id }
func (a *Archetype) Len() int                    { return a.count }
func (a *Archetype) RowsPerChunk() int           { return a.rowsPerChunk }
func (a *Archetype) Has(id ComponentID) bool     { return a.mask.has(id) }
func (a *Archetype) Components() []ComponentID   { return slices.Clone(a.types) }
func (a *Archetype) Chunks() []*Chunk            { return slices.Clone(a.chunks) }
func (a *Archetype) ChunkCount() int             { return len(a.chunks) }
func (a *Archetype) matches(all, none mask) bool { return a.mask.contains(all) && !a.mask.intersects(none) }

// allocRow places e in the first chunk with room, creating a chunk if every
// existing one is full. The row is zeroed and initialised.
func (a *Archetype) allocRow(e Entity) (*Chunk, int) {
	var c *Chunk
	for _, ch := range a.chunks {
		if ch.count < a.rowsPerChunk {
			c = ch
			break
		}
	}
	if c == nil {
		c = newChunk(a)
		a.chunks = append(a.chunks, c)
	}
	row := c.count
	c.entities[row] = e
	for i := range c.columns {
		c.columns[i].init(row)
	}
	c.count++
	a.count++
	return c, row
}

// removeRow swap-removes row from c and returns the entity that now occupies
// row, or Null when row was the last one. The vacated row is zeroed and an
// emptied chunk is released.
func (a *Archetype) removeRow(c *Chunk, row int) Entity {
	last := c.count - 1
	moved := Null
	if row < last {
		for i := range c.columns {
			c.columns[i].copyRow(row, &c.columns[i], last)
		}
		c.entities[row] = c.entities[last]
		moved = c.entities[row]
	}
	for i := range c.columns {
		c.columns[i].zero(last)
	}
	c.entities[last] = Null
	c.count--
	a.count--
	if c.count == 0 {
		a.releaseChunk(c)
	}
	return moved
}

func (a *Archetype) releaseChunk(c *Chunk) {
	i := slices.Index(a.chunks, c)
	if i < 0 {
		return
	}
	last := len(a.chunks) - 1
	a.chunks[i] = a.chunks[last]
	a.chunks[last] = nil
	a.chunks = a.chunks[:last]
}
