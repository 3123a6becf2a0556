package ecs

import (
	"fmt"
	"reflect"
	"unsafe"
)

// ComponentID is a per-store identifier for a registered component type.
type ComponentID uint8

// MaxComponentTypes is the number of distinct component types a Store can hold.
const MaxComponentTypes = 256

// Kind distinguishes fixed-size components from dynamic buffers.
type Kind uint8

const (
	KindData Kind = iota
	KindBuffer
)

func (k Kind) String() string {
	if k == KindBuffer {
		return "buffer"
	}
	return "data"
}

// componentInfo describes how one component type is laid out in a chunk.
// For buffers, typ is the per-row record {Header bufferHeader; Inline [n]E}.
type componentInfo struct {
	id           ComponentID
	name         string
	kind         Kind
	typ          reflect.Type
	size         uintptr
	elem         reflect.Type
	inlineCap    int
	inlineOffset uintptr
	// cloneBuffer gives a freshly copied record its own external block.
	cloneBuffer func(rec unsafe.Pointer)
}

// registry tracks all component types and the reflect.Type each one is keyed on.
type registry struct {
	infos  []componentInfo
	byType map[reflect.Type]ComponentID
}

func newRegistry() registry {
	return registry{
		infos:  make([]componentInfo, 0, 16),
		byType: make(map[reflect.Type]ComponentID, 16),
	}
}

func (r *registry) add(key reflect.Type, info componentInfo) ComponentID {
	if len(r.infos) >= MaxComponentTypes {
		panic(fmt.Sprintf("ecs: cannot register %s: maximum number of component types (%d) reached", info.name, MaxComponentTypes))
	}
	info.id = ComponentID(len(r.infos))
	r.infos = append(r.infos, info)
	r.byType[key] = info.id
	return info.id
}

func (r *registry) info(id ComponentID) *componentInfo {
	if int(id) >= len(r.infos) {
		panic(fmt.Sprintf("ecs: component id %d not registered", id))
	}
	return &r.infos[id]
}

// BufferOption configures a buffer type at registration.
type BufferOption func(*bufferConfig)

type bufferConfig struct {
	inlineCap int
}

// WithInlineCapacity sets how many elements live inside the chunk before the
// buffer spills into an external block.
func WithInlineCapacity(n int) BufferOption {
	return func(c *bufferConfig) { c.inlineCap = n }
}

// Register registers T as a fixed-size component and returns its id. Registering
// the same type twice returns the existing id.
func Register[T any](s *Store) ComponentID {
	typ := reflect.TypeFor[T]()
	if id, ok := s.registry.byType[typ]; ok {
		if s.registry.infos[id].kind != KindData {
			panic(fmt.Sprintf("ecs: %s is already registered as a buffer element", typ))
		}
		return id
	}
	id := s.registry.add(typ, componentInfo{
		name: typ.String(),
		kind: KindData,
		typ:  typ,
		size: typ.Size(),
	})
	s.log.Debug("registered component", zapComponent(s, id))
	return id
}

// RegisterBuffer registers a dynamic buffer whose elements are E. By default
// the inline threshold holds Options.DefaultBufferBytes worth of elements.
func RegisterBuffer[E any](s *Store, opts ...BufferOption) ComponentID {
	elem := reflect.TypeFor[E]()
	if id, ok := s.registry.byType[elem]; ok {
		if s.registry.infos[id].kind != KindBuffer {
			panic(fmt.Sprintf("ecs: %s is already registered as a component", elem))
		}
		return id
	}
	cfg := bufferConfig{inlineCap: defaultInlineCapacity(elem.Size(), s.opts.DefaultBufferBytes)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.inlineCap < 1 {
		cfg.inlineCap = 1
	}
	record := reflect.StructOf([]reflect.StructField{
		{Name: "Header", Type: reflect.TypeFor[bufferHeader]()},
		{Name: "Inline", Type: reflect.ArrayOf(cfg.inlineCap, elem)},
	})
	id := s.registry.add(elem, componentInfo{
		name:         "[]" + elem.String(),
		kind:         KindBuffer,
		typ:          record,
		size:         record.Size(),
		elem:         elem,
		inlineCap:    cfg.inlineCap,
		inlineOffset: record.Field(1).Offset,
		cloneBuffer:  cloneExternal[E],
	})
	s.log.Debug("registered buffer", zapComponent(s, id))
	return id
}

// IDOf returns the id T (or buffer element T) was registered under.
func IDOf[T any](s *Store) (ComponentID, bool) {
	id, ok := s.registry.byType[reflect.TypeFor[T]()]
	return id, ok
}

// MustID is IDOf for types the caller knows are registered.
func MustID[T any](s *Store) ComponentID {
	id, ok := IDOf[T](s)
	if !ok {
		panic(fmt.Sprintf("ecs: %s not registered", reflect.TypeFor[T]()))
	}
	return id
}

func defaultInlineCapacity(elemSize uintptr, bytes int) int {
	if elemSize == 0 {
		return 1
	}
	return max(1, bytes/int(elemSize))
}

// cloneExternal replaces the external block of a copied record with a private
// copy so no two headers ever share one.
func cloneExternal[E any](rec unsafe.Pointer) {
	h := (*bufferHeader)(rec)
	if h.external == nil {
		return
	}
	block := make([]E, h.capacity)
	copy(block, unsafe.Slice((*E)(h.external), h.length))
	h.external = unsafe.Pointer(unsafe.SliceData(block))
}
