package ecs

import (
	"fmt"
	"reflect"
	"unsafe"
)

// column is one component's contiguous storage inside a chunk. Data is held
// in a reflect-made slice so pointers inside component values stay visible to
// the garbage collector, and row moves go through reflect.Copy so they get the
// usual write barriers.
type column struct {
	id           ComponentID
	kind         Kind
	elem         reflect.Type
	stride       uintptr
	inlineCap    int
	inlineOffset uintptr
	data         reflect.Value
	base         unsafe.Pointer
}

func newColumn(info *componentInfo, rows int) column {
	data := reflect.MakeSlice(reflect.SliceOf(info.typ), rows, rows)
	elem := info.typ
	if info.kind == KindBuffer {
		elem = info.elem
	}
	return column{
		id:           info.id,
		kind:         info.kind,
		elem:         elem,
		stride:       info.size,
		inlineCap:    info.inlineCap,
		inlineOffset: info.inlineOffset,
		data:         data,
		base:         data.UnsafePointer(),
	}
}

func (c *column) at(row int) unsafe.Pointer {
	return unsafe.Add(c.base, uintptr(row)*c.stride)
}

// copyRow copies row src of from into row dst of c. Both columns hold the
// same component type.
func (c *column) copyRow(dst int, from *column, src int) {
	reflect.Copy(c.data.Slice(dst, dst+1), from.data.Slice(src, src+1))
}

func (c *column) zero(row int) {
	c.data.Index(row).SetZero()
}

// init prepares a zeroed row. Buffers start empty with their inline capacity.
func (c *column) init(row int) {
	if c.kind == KindBuffer {
		(*bufferHeader)(c.at(row)).capacity = int32(c.inlineCap)
	}
}

// Chunk is a fixed-capacity block of rows for a single archetype. Rows
// [0, Len) are live and densely packed.
type Chunk struct {
	arch     *Archetype
	entities []Entity
	columns  []column
	count    int
}

func newChunk(a *Archetype) *Chunk {
	c := &Chunk{
		arch:     a,
		entities: make([]Entity, a.rowsPerChunk),
		columns:  make([]column, len(a.types)),
	}
	for i, id := range a.types {
		c.columns[i] = newColumn(a.store.registry.info(id), a.rowsPerChunk)
	}
	return c
}

func (c *Chunk) Len() int                { return c.count }
func (c *Chunk) Capacity() int           { return len(c.entities) }
func (c *Chunk) Archetype() *Archetype   { return c.arch }
func (c *Chunk) Has(id ComponentID) bool { return c.arch.mask.has(id) }

// Entities returns the live entity ids of c, row for row.
func (c *Chunk) Entities() []Entity {
	return c.entities[:c.count]
}

func (c *Chunk) column(id ComponentID) (*column, bool) {
	slot := c.arch.slots[id]
	if slot < 0 {
		return nil, false
	}
	return &c.columns[slot], true
}

// Column returns the live rows of component T in c. The slice aliases chunk
// memory and is only valid until the next structural change.
func Column[T any](c *Chunk, id ComponentID) ([]T, error) {
	col, ok := c.column(id)
	if !ok || col.kind != KindData {
		return nil, fmt.Errorf("%w: %s in chunk", ErrComponentNotPresent, c.arch.store.ComponentName(id))
	}
	if col.elem != reflect.TypeFor[T]() {
		return nil, fmt.Errorf("%w: column %s is not %s", ErrComponentNotPresent, col.elem, reflect.TypeFor[T]())
	}
	if c.count == 0 {
		return nil, nil
	}
	return unsafe.Slice((*T)(col.base), c.count), nil
}

// BufferAt returns the buffer view of row in c.
func BufferAt[E any](c *Chunk, id ComponentID, row int) (DynamicBuffer[E], error) {
	col, ok := c.column(id)
	if !ok || col.kind != KindBuffer {
		return DynamicBuffer[E]{}, fmt.Errorf("%w: %s in chunk", ErrComponentNotPresent, c.arch.store.ComponentName(id))
	}
	if col.elem != reflect.TypeFor[E]() {
		return DynamicBuffer[E]{}, fmt.Errorf("%w: buffer of %s is not %s", ErrComponentNotPresent, col.elem, reflect.TypeFor[E]())
	}
	if row < 0 || row >= c.count {
		return DynamicBuffer[E]{}, fmt.Errorf("%w: row %d, chunk length %d", ErrIndexOutOfRange, row, c.count)
	}
	return bufferView[E](col, row), nil
}
