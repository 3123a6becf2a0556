package ecs

import (
	"fmt"
	"reflect"
	"slices"

	"go.uber.org/zap"
)

// Options tunes chunk layout.
type Options struct {
	// ChunkBytes is the target size of one chunk; rows per chunk is derived
	// from it and the archetype's row size.
	ChunkBytes int
	// DefaultBufferBytes sizes the inline part of buffers registered without
	// an explicit inline capacity.
	DefaultBufferBytes int
}

func DefaultOptions() Options {
	return Options{
		ChunkBytes:         16 * 1024,
		DefaultBufferBytes: 128,
	}
}

// Store is the chunked entity store. It is not safe for concurrent structural
// changes; parallel jobs may read and write component values in disjoint
// chunks or rows.
type Store struct {
	opts       Options
	log        *zap.Logger
	registry   registry
	entities   entityTable
	archetypes []*Archetype
	byMask     map[mask]*Archetype
	version    uint64
}

func NewStore(opts Options, log *zap.Logger) *Store {
	def := DefaultOptions()
	if opts.ChunkBytes <= 0 {
		opts.ChunkBytes = def.ChunkBytes
	}
	if opts.DefaultBufferBytes <= 0 {
		opts.DefaultBufferBytes = def.DefaultBufferBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		opts:     opts,
		log:      log,
		registry: newRegistry(),
		entities: newEntityTable(),
		byMask:   make(map[mask]*Archetype),
	}
	registerBuiltins(s)
	return s
}

func zapComponent(s *Store, id ComponentID) zap.Field {
	return zap.String("component", s.ComponentName(id))
}

// ComponentName returns the registered name of id, for logs and errors.
func (s *Store) ComponentName(id ComponentID) string {
	if int(id) >= len(s.registry.infos) {
		return fmt.Sprintf("component#%d", id)
	}
	return s.registry.infos[id].name
}

// ComponentKind returns whether id is a data component or a buffer.
func (s *Store) ComponentKind(id ComponentID) Kind {
	return s.registry.info(id).kind
}

// ComponentCount returns the number of registered component types.
func (s *Store) ComponentCount() int { return len(s.registry.infos) }

// Len returns the number of live entities.
func (s *Store) Len() int { return s.entities.alive }

// StructuralVersion changes on every create, destroy, move or instantiate.
func (s *Store) StructuralVersion() uint64 { return s.version }

// Archetype returns the archetype for exactly the given component set,
// creating it on first use.
func (s *Store) Archetype(ids ...ComponentID) *Archetype {
	types := slices.Clone(ids)
	slices.Sort(types)
	types = slices.Compact(types)
	for _, id := range types {
		s.registry.info(id)
	}
	m := makeMask(types)
	if a, ok := s.byMask[m]; ok {
		return a
	}
	a := newArchetype(s, len(s.archetypes), types)
	s.archetypes = append(s.archetypes, a)
	s.byMask[m] = a
	s.log.Debug("created archetype",
		zap.Int("archetype", a.id),
		zap.Int("components", len(types)),
		zap.Int("rows_per_chunk", a.rowsPerChunk),
	)
	return a
}

// Archetypes returns every archetype in creation order.
func (s *Store) Archetypes() []*Archetype {
	return slices.Clone(s.archetypes)
}

func (s *Store) archetypeWith(a *Archetype, id ComponentID) *Archetype {
	if a.mask.has(id) {
		return a
	}
	if next, ok := a.addEdges[id]; ok {
		return next
	}
	next := s.Archetype(append(slices.Clone(a.types), id)...)
	a.addEdges[id] = next
	next.removeEdges[id] = a
	return next
}

func (s *Store) archetypeWithout(a *Archetype, id ComponentID) *Archetype {
	if !a.mask.has(id) {
		return a
	}
	if next, ok := a.removeEdges[id]; ok {
		return next
	}
	types := slices.DeleteFunc(slices.Clone(a.types), func(t ComponentID) bool { return t == id })
	next := s.Archetype(types...)
	a.removeEdges[id] = next
	next.addEdges[id] = a
	return next
}

// CreateEntity creates an entity in archetype a with all components zeroed
// and all buffers empty.
func (s *Store) CreateEntity(a *Archetype) Entity {
	e := s.entities.alloc()
	c, row := a.allocRow(e)
	s.entities.locations[e.Index()] = location{arch: a, chunk: c, row: row}
	s.version++
	return e
}

// Alive reports whether e refers to a live entity.
func (s *Store) Alive(e Entity) bool { return s.entities.isAlive(e) }

// Has reports whether the live entity e carries component id.
func (s *Store) Has(e Entity, id ComponentID) bool {
	loc, ok := s.entities.locate(e)
	return ok && loc.arch.mask.has(id)
}

// ArchetypeOf returns the archetype of a live entity.
func (s *Store) ArchetypeOf(e Entity) (*Archetype, bool) {
	loc, ok := s.entities.locate(e)
	if !ok {
		return nil, false
	}
	return loc.arch, true
}

// DestroyEntity removes e. Destroying a stale or null entity returns
// ErrStaleEntity and changes nothing.
func (s *Store) DestroyEntity(e Entity) error {
	loc, ok := s.entities.locate(e)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStaleEntity, e)
	}
	arch, c, row := loc.arch, loc.chunk, loc.row
	if moved := arch.removeRow(c, row); moved != Null {
		s.entities.locations[moved.Index()].row = row
	}
	s.entities.release(e)
	s.version++
	return nil
}

// Instantiate creates a copy of prefab. Every component value is copied and
// every buffer gets its own storage. The Prefab tag and the hierarchy links
// (Child and Parent) are not copied, so the copy starts as a root with no
// children.
func (s *Store) Instantiate(prefab Entity) (Entity, error) {
	loc, ok := s.entities.locate(prefab)
	if !ok {
		return Null, fmt.Errorf("instantiate: %w: %s", ErrStaleEntity, prefab)
	}
	src, srcChunk, srcRow := loc.arch, loc.chunk, loc.row
	dst := src
	for _, id := range [...]ComponentID{PrefabID, ChildID, ParentID} {
		dst = s.archetypeWithout(dst, id)
	}

	e := s.entities.alloc()
	c, row := dst.allocRow(e)
	s.entities.locations[e.Index()] = location{arch: dst, chunk: c, row: row}
	for i, id := range dst.types {
		from, _ := srcChunk.column(id)
		to := &c.columns[i]
		to.copyRow(row, from, srcRow)
		if to.kind == KindBuffer {
			s.registry.infos[id].cloneBuffer(to.at(row))
		}
	}
	s.version++
	return e, nil
}

// MoveEntity moves e to archetype dst, keeping the values of shared
// components. Components not in dst are dropped and new ones start zeroed.
func (s *Store) MoveEntity(e Entity, dst *Archetype) error {
	loc, ok := s.entities.locate(e)
	if !ok {
		return fmt.Errorf("move: %w: %s", ErrStaleEntity, e)
	}
	src, srcChunk, srcRow := loc.arch, loc.chunk, loc.row
	if src == dst {
		return nil
	}
	c, row := dst.allocRow(e)
	for i, id := range dst.types {
		if from, ok := srcChunk.column(id); ok {
			c.columns[i].copyRow(row, from, srcRow)
		}
	}
	if moved := src.removeRow(srcChunk, srcRow); moved != Null {
		s.entities.locations[moved.Index()].row = srcRow
	}
	s.entities.locations[e.Index()] = location{arch: dst, chunk: c, row: row}
	s.version++
	return nil
}

// AddComponent adds component id to e. Adding a present component is a no-op.
func (s *Store) AddComponent(e Entity, id ComponentID) error {
	loc, ok := s.entities.locate(e)
	if !ok {
		return fmt.Errorf("add %s: %w: %s", s.ComponentName(id), ErrStaleEntity, e)
	}
	return s.MoveEntity(e, s.archetypeWith(loc.arch, id))
}

// RemoveComponent removes component id from e. Removing an absent component
// is a no-op.
func (s *Store) RemoveComponent(e Entity, id ComponentID) error {
	loc, ok := s.entities.locate(e)
	if !ok {
		return fmt.Errorf("remove %s: %w: %s", s.ComponentName(id), ErrStaleEntity, e)
	}
	return s.MoveEntity(e, s.archetypeWithout(loc.arch, id))
}

func (s *Store) resolve(e Entity, id ComponentID, kind Kind) (*column, int, error) {
	loc, ok := s.entities.locate(e)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrStaleEntity, e)
	}
	col, ok := loc.chunk.column(id)
	if !ok || col.kind != kind {
		return nil, 0, fmt.Errorf("%w: %s on %s", ErrComponentNotPresent, s.ComponentName(id), e)
	}
	return col, loc.row, nil
}

func notRegistered[T any]() error {
	return fmt.Errorf("%w: %s is not registered", ErrComponentNotPresent, reflect.TypeFor[T]())
}

// Get returns a pointer to e's T. The pointer is valid until the next
// structural change.
func Get[T any](s *Store, e Entity) (*T, error) {
	id, ok := IDOf[T](s)
	if !ok {
		return nil, notRegistered[T]()
	}
	return getByID[T](s, e, id)
}

func getByID[T any](s *Store, e Entity, id ComponentID) (*T, error) {
	col, row, err := s.resolve(e, id, KindData)
	if err != nil {
		return nil, err
	}
	return (*T)(col.at(row)), nil
}

// Set overwrites e's T.
func Set[T any](s *Store, e Entity, v T) error {
	p, err := Get[T](s, e)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Add adds T to e if missing and sets it to v.
func Add[T any](s *Store, e Entity, v T) error {
	id, ok := IDOf[T](s)
	if !ok {
		return notRegistered[T]()
	}
	if err := s.AddComponent(e, id); err != nil {
		return err
	}
	p, err := getByID[T](s, e, id)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// GetBuffer returns a view over e's buffer of E.
func GetBuffer[E any](s *Store, e Entity) (DynamicBuffer[E], error) {
	id, ok := IDOf[E](s)
	if !ok {
		return DynamicBuffer[E]{}, notRegistered[E]()
	}
	return getBufferByID[E](s, e, id)
}

func getBufferByID[E any](s *Store, e Entity, id ComponentID) (DynamicBuffer[E], error) {
	col, row, err := s.resolve(e, id, KindBuffer)
	if err != nil {
		return DynamicBuffer[E]{}, err
	}
	return bufferView[E](col, row), nil
}
