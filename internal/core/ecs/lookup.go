package ecs

// ComponentLookup gives random access to one component type by entity. A
// read-only lookup refuses to hand out mutable references.
type ComponentLookup[T any] struct {
	store    *Store
	id       ComponentID
	readOnly bool
}

func NewComponentLookup[T any](s *Store, readOnly bool) (ComponentLookup[T], error) {
	id, ok := IDOf[T](s)
	if !ok {
		return ComponentLookup[T]{}, notRegistered[T]()
	}
	if s.registry.info(id).kind != KindData {
		return ComponentLookup[T]{}, notRegistered[T]()
	}
	return ComponentLookup[T]{store: s, id: id, readOnly: readOnly}, nil
}

func (l ComponentLookup[T]) ID() ComponentID { return l.id }
func (l ComponentLookup[T]) ReadOnly() bool  { return l.readOnly }

func (l ComponentLookup[T]) Has(e Entity) bool {
	return l.store != nil && l.store.Has(e, l.id)
}

// Get returns a copy of e's T. A zero lookup reports ErrComponentNotPresent.
func (l ComponentLookup[T]) Get(e Entity) (T, error) {
	if l.store == nil {
		var zero T
		return zero, ErrComponentNotPresent
	}
	p, err := getByID[T](l.store, e, l.id)
	if err != nil {
		var zero T
		return zero, err
	}
	return *p, nil
}

// GetRef returns a pointer to e's T, valid until the next structural change.
func (l ComponentLookup[T]) GetRef(e Entity) (*T, error) {
	if l.readOnly {
		return nil, ErrReadOnly
	}
	if l.store == nil {
		return nil, ErrComponentNotPresent
	}
	return getByID[T](l.store, e, l.id)
}

// BufferLookup gives random access to one buffer type by entity.
type BufferLookup[E any] struct {
	store    *Store
	id       ComponentID
	readOnly bool
}

func NewBufferLookup[E any](s *Store, readOnly bool) (BufferLookup[E], error) {
	id, ok := IDOf[E](s)
	if !ok || s.registry.info(id).kind != KindBuffer {
		return BufferLookup[E]{}, notRegistered[E]()
	}
	return BufferLookup[E]{store: s, id: id, readOnly: readOnly}, nil
}

func (l BufferLookup[E]) ID() ComponentID { return l.id }
func (l BufferLookup[E]) ReadOnly() bool  { return l.readOnly }

func (l BufferLookup[E]) Has(e Entity) bool {
	return l.store != nil && l.store.Has(e, l.id)
}

// Get returns the view over e's buffer. Callers holding a read-only lookup
// must not mutate through the view.
func (l BufferLookup[E]) Get(e Entity) (DynamicBuffer[E], error) {
	if l.store == nil {
		return DynamicBuffer[E]{}, ErrComponentNotPresent
	}
	return getBufferByID[E](l.store, e, l.id)
}
