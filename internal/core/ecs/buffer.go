package ecs

import (
	"fmt"
	"iter"
	"unsafe"
)

// bufferHeader sits at the start of every buffer record in a chunk column.
// While external is nil the elements live in the record's inline array right
// after the header.
type bufferHeader struct {
	external unsafe.Pointer
	length   int32
	capacity int32
}

// DynamicBuffer is a view over one entity's buffer component. Views are cheap
// values; copies of a view alias the same storage. A view is invalidated by
// any structural change that moves its entity.
type DynamicBuffer[E any] struct {
	header    *bufferHeader
	inlineOff uintptr
	inlineCap int32
}

func bufferView[E any](col *column, row int) DynamicBuffer[E] {
	return DynamicBuffer[E]{
		header:    (*bufferHeader)(col.at(row)),
		inlineOff: col.inlineOffset,
		inlineCap: int32(col.inlineCap),
	}
}

func (b DynamicBuffer[E]) IsNull() bool { return b.header == nil }

func (b DynamicBuffer[E]) Length() int {
	if b.header == nil {
		return 0
	}
	return int(b.header.length)
}

func (b DynamicBuffer[E]) Capacity() int {
	if b.header == nil {
		return 0
	}
	return int(b.header.capacity)
}

// IsInline reports whether the elements currently live inside the chunk.
func (b DynamicBuffer[E]) IsInline() bool {
	return b.header != nil && b.header.external == nil
}

func (b DynamicBuffer[E]) InlineCapacity() int { return int(b.inlineCap) }

func (b DynamicBuffer[E]) hdr() *bufferHeader {
	if b.header == nil {
		panic("ecs: use of null DynamicBuffer")
	}
	return b.header
}

func (b DynamicBuffer[E]) inline() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(b.header), b.inlineOff)
}

func (b DynamicBuffer[E]) data() unsafe.Pointer {
	if b.header.external != nil {
		return b.header.external
	}
	return b.inline()
}

func (b DynamicBuffer[E]) slice(n int) []E {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*E)(b.data()), n)
}

// UnsafePtr returns the address of element 0. It moves whenever the buffer
// crosses the inline threshold.
func (b DynamicBuffer[E]) UnsafePtr() unsafe.Pointer {
	if b.header == nil {
		return nil
	}
	return b.data()
}

// AsSlice returns the live elements. The slice aliases buffer storage and is
// invalidated by any call that changes capacity.
func (b DynamicBuffer[E]) AsSlice() []E {
	if b.header == nil {
		return nil
	}
	return b.slice(int(b.header.length))
}

// All yields index/element pairs without allocating.
func (b DynamicBuffer[E]) All() iter.Seq2[int, E] {
	return func(yield func(int, E) bool) {
		for i, v := range b.AsSlice() {
			if !yield(i, v) {
				return
			}
		}
	}
}

func (b DynamicBuffer[E]) checkIndex(i int) error {
	if n := b.Length(); i < 0 || i >= n {
		return fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, i, n)
	}
	return nil
}

func (b DynamicBuffer[E]) Get(i int) (E, error) {
	if err := b.checkIndex(i); err != nil {
		var zero E
		return zero, err
	}
	return b.AsSlice()[i], nil
}

func (b DynamicBuffer[E]) Set(i int, v E) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	b.AsSlice()[i] = v
	return nil
}

// ElementAt returns a pointer to element i, valid until the next capacity change.
func (b DynamicBuffer[E]) ElementAt(i int) (*E, error) {
	if err := b.checkIndex(i); err != nil {
		return nil, err
	}
	return &b.AsSlice()[i], nil
}

// Add appends v and returns its index.
func (b DynamicBuffer[E]) Add(v E) int {
	h := b.hdr()
	n := int(h.length)
	if n == int(h.capacity) {
		b.grow(n + 1)
	}
	b.slice(n + 1)[n] = v
	h.length++
	return n
}

func (b DynamicBuffer[E]) AddRange(vs []E) {
	if len(vs) == 0 {
		return
	}
	h := b.hdr()
	n := int(h.length)
	if need := n + len(vs); need > int(h.capacity) {
		b.grow(need)
	}
	copy(b.slice(n + len(vs))[n:], vs)
	h.length += int32(len(vs))
}

// Insert places v at i, shifting later elements up. i may equal Length.
func (b DynamicBuffer[E]) Insert(i int, v E) error {
	h := b.hdr()
	n := int(h.length)
	if i < 0 || i > n {
		return fmt.Errorf("%w: insert at %d, length %d", ErrIndexOutOfRange, i, n)
	}
	if n == int(h.capacity) {
		b.grow(n + 1)
	}
	s := b.slice(n + 1)
	copy(s[i+1:], s[i:n])
	s[i] = v
	h.length++
	return nil
}

func (b DynamicBuffer[E]) RemoveAt(i int) error {
	return b.RemoveRange(i, 1)
}

// RemoveRange removes count elements starting at i, preserving order.
func (b DynamicBuffer[E]) RemoveRange(i, count int) error {
	n := b.Length()
	if i < 0 || count < 0 || i+count > n {
		return fmt.Errorf("%w: remove [%d,%d), length %d", ErrIndexOutOfRange, i, i+count, n)
	}
	if count == 0 {
		return nil
	}
	s := b.slice(n)
	copy(s[i:], s[i+count:])
	clear(s[n-count:])
	b.header.length -= int32(count)
	return nil
}

// RemoveAtSwapBack removes element i by moving the last element into its place.
func (b DynamicBuffer[E]) RemoveAtSwapBack(i int) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	s := b.AsSlice()
	last := len(s) - 1
	s[i] = s[last]
	clear(s[last:])
	b.header.length--
	return nil
}

// Clear drops every element but keeps the capacity.
func (b DynamicBuffer[E]) Clear() {
	h := b.hdr()
	clear(b.slice(int(h.length)))
	h.length = 0
}

// Resize sets the length to n, zero-filling new elements.
func (b DynamicBuffer[E]) Resize(n int) {
	h := b.hdr()
	if n < 0 {
		panic(fmt.Sprintf("ecs: negative buffer length %d", n))
	}
	old := int(h.length)
	if n > int(h.capacity) {
		b.grow(n)
	}
	if n < old {
		clear(b.slice(old)[n:])
	} else {
		clear(b.slice(n)[old:])
	}
	h.length = int32(n)
}

// EnsureCapacity grows the capacity to at least n.
func (b DynamicBuffer[E]) EnsureCapacity(n int) {
	if n > int(b.hdr().capacity) {
		b.realloc(n)
	}
}

// SetCapacity sets the capacity to exactly n. Capacities that fit the inline
// threshold move the elements back into the chunk and drop the external block.
func (b DynamicBuffer[E]) SetCapacity(n int) error {
	h := b.hdr()
	if n < int(h.length) {
		return fmt.Errorf("%w: capacity %d below length %d", ErrInvalidCapacity, n, h.length)
	}
	if n != int(h.capacity) {
		b.realloc(n)
	}
	return nil
}

// TrimExcess shrinks the capacity to the length.
func (b DynamicBuffer[E]) TrimExcess() {
	h := b.hdr()
	if h.length < h.capacity {
		b.realloc(int(h.length))
	}
}

// CopyFrom replaces the contents of b with those of src.
func (b DynamicBuffer[E]) CopyFrom(src DynamicBuffer[E]) error {
	if src.IsNull() {
		return ErrNullSource
	}
	if src.header == b.header {
		return nil
	}
	b.CopyFromSlice(src.AsSlice())
	return nil
}

// CopyFromSlice replaces the contents of b with src. A nil slice empties b.
func (b DynamicBuffer[E]) CopyFromSlice(src []E) {
	h := b.hdr()
	n := len(src)
	old := int(h.length)
	if n > int(h.capacity) {
		clear(b.slice(old))
		h.length = 0
		old = 0
		b.realloc(n)
	}
	s := b.slice(max(n, old))
	copy(s, src)
	if old > n {
		clear(s[n:old])
	}
	h.length = int32(n)
}

func (b DynamicBuffer[E]) grow(need int) {
	b.realloc(max(2*int(b.header.capacity), int(b.inlineCap), need))
}

// realloc moves the live elements to storage of capacity n >= length.
func (b DynamicBuffer[E]) realloc(n int) {
	h := b.header
	live := b.slice(int(h.length))
	if n <= int(b.inlineCap) {
		if h.external != nil {
			copy(unsafe.Slice((*E)(b.inline()), b.inlineCap), live)
			h.external = nil
		}
		h.capacity = int32(n)
		return
	}
	block := make([]E, n)
	copy(block, live)
	if h.external == nil {
		clear(live)
	}
	h.external = unsafe.Pointer(unsafe.SliceData(block))
	h.capacity = int32(n)
}
