package ecb

import (
	"fmt"

	"golang.org/x/sys/cpu"

	"github.com/kodebolds/froggies/internal/core/ecs"
)

// Kind is the structural operation an entry performs at playback.
type Kind uint8

const (
	KindInstantiate Kind = iota
	KindDestroy
	KindDestroyWithChildren
	KindSetComponent
	KindAddComponent
	KindRemoveComponent
	KindAppendToBuffer
	KindLinkChild
)

var kindNames = [...]string{
	KindInstantiate:         "instantiate",
	KindDestroy:             "destroy",
	KindDestroyWithChildren: "destroy-with-children",
	KindSetComponent:        "set-component",
	KindAddComponent:        "add-component",
	KindRemoveComponent:     "remove-component",
	KindAppendToBuffer:      "append-to-buffer",
	KindLinkChild:           "link-child",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// entry is one recorded command. target is the entity acted on; other is the
// prefab for instantiate and the child for link-child.
type entry struct {
	kind   Kind
	target ecs.Entity
	other  ecs.Entity
	apply  func(s *ecs.Store, target, other ecs.Entity) error
}

const (
	placeholderSeqBits = 22
	maxShards          = 1 << (32 - placeholderSeqBits)
	maxPlaceholders    = 1<<placeholderSeqBits - 1
)

// Writer is one shard of a command buffer. A Writer must only be used by one
// goroutine at a time; distinct shards may be written concurrently.
type Writer struct {
	_       cpu.CacheLinePad
	buffer  uint32
	shard   uint32
	seq     uint32
	entries []entry
	_       cpu.CacheLinePad
}

func (w *Writer) push(e entry) {
	w.entries = append(w.entries, e)
}

// Len returns the number of recorded commands.
func (w *Writer) Len() int { return len(w.entries) }

// placeholder mints an entity id that only exists until playback. The shard
// index is encoded in the high bits so shards never hand out the same id,
// and the buffer id keeps placeholders of different buffers apart.
func (w *Writer) placeholder() ecs.Entity {
	w.seq++
	if w.seq > maxPlaceholders {
		panic(fmt.Sprintf("ecb: shard %d exhausted its placeholders", w.shard))
	}
	return ecs.NewPlaceholder(w.shard<<placeholderSeqBits|w.seq, w.buffer)
}

// Instantiate records a copy of prefab and returns a placeholder for it.
// Later commands may target the placeholder.
func (w *Writer) Instantiate(prefab ecs.Entity) ecs.Entity {
	p := w.placeholder()
	w.push(entry{kind: KindInstantiate, target: p, other: prefab})
	return p
}

func (w *Writer) Destroy(e ecs.Entity) {
	w.push(entry{kind: KindDestroy, target: e, apply: destroy})
}

// DestroyWithChildren records the destruction of e and of every entity
// reachable through Child buffers, depth-first in pre-order. children is
// only read.
func (w *Writer) DestroyWithChildren(e ecs.Entity, children ecs.BufferLookup[ecs.Child]) {
	w.destroyTree(e, children, KindDestroyWithChildren, nil)
}

func (w *Writer) destroyTree(e ecs.Entity, children ecs.BufferLookup[ecs.Child], kind Kind, visited map[ecs.Entity]struct{}) map[ecs.Entity]struct{} {
	if _, seen := visited[e]; seen {
		return visited
	}
	w.push(entry{kind: kind, target: e, apply: destroy})
	if !children.Has(e) {
		return visited
	}
	buf, err := children.Get(e)
	if err != nil || buf.Length() == 0 {
		return visited
	}
	if visited == nil {
		visited = make(map[ecs.Entity]struct{})
	}
	visited[e] = struct{}{}
	for _, c := range buf.AsSlice() {
		visited = w.destroyTree(c.Value, children, KindDestroy, visited)
	}
	return visited
}

func destroy(s *ecs.Store, target, _ ecs.Entity) error {
	return s.DestroyEntity(target)
}

// LinkChild records that child belongs to parent: child is appended to the
// parent's Child buffer and gets a Parent component.
func (w *Writer) LinkChild(parent, child ecs.Entity) {
	w.push(entry{kind: KindLinkChild, target: parent, other: child, apply: linkChild})
}

func linkChild(s *ecs.Store, parent, child ecs.Entity) error {
	if !s.Alive(child) {
		return fmt.Errorf("child %w: %s", ecs.ErrStaleEntity, child)
	}
	if err := s.AddComponent(parent, ecs.ChildID); err != nil {
		return err
	}
	buf, err := ecs.GetBuffer[ecs.Child](s, parent)
	if err != nil {
		return err
	}
	buf.Add(ecs.Child{Value: child})
	return ecs.Add(s, child, ecs.Parent{Value: parent})
}

// SetComponent records overwriting e's T with v.
func SetComponent[T any](w *Writer, e ecs.Entity, v T) {
	w.push(entry{kind: KindSetComponent, target: e, apply: func(s *ecs.Store, target, _ ecs.Entity) error {
		return ecs.Set(s, target, v)
	}})
}

// AddComponent records adding T to e with value v.
func AddComponent[T any](w *Writer, e ecs.Entity, v T) {
	w.push(entry{kind: KindAddComponent, target: e, apply: func(s *ecs.Store, target, _ ecs.Entity) error {
		return ecs.Add(s, target, v)
	}})
}

// RemoveComponent records removing T from e.
func RemoveComponent[T any](w *Writer, e ecs.Entity) {
	w.push(entry{kind: KindRemoveComponent, target: e, apply: func(s *ecs.Store, target, _ ecs.Entity) error {
		id, ok := ecs.IDOf[T](s)
		if !ok {
			return fmt.Errorf("%w: %T is not registered", ecs.ErrComponentNotPresent, *new(T))
		}
		return s.RemoveComponent(target, id)
	}})
}

// AppendToBuffer records appending v to e's buffer of E.
func AppendToBuffer[E any](w *Writer, e ecs.Entity, v E) {
	w.push(entry{kind: KindAppendToBuffer, target: e, apply: func(s *ecs.Store, target, _ ecs.Entity) error {
		buf, err := ecs.GetBuffer[E](s, target)
		if err != nil {
			return err
		}
		buf.Add(v)
		return nil
	}})
}
