package ecs

// Built-in components every Store registers first, in this order.
const (
	PrefabID ComponentID = iota
	ChildID
	ParentID
)

// Prefab tags template entities. Instantiate drops it from the copy and
// filters skip prefab archetypes unless asked not to.
type Prefab struct{}

// Child is the buffer element listing an entity's direct children.
type Child struct {
	Value Entity
}

// Parent points at the entity whose Child buffer lists this one.
type Parent struct {
	Value Entity
}

func registerBuiltins(s *Store) {
	Register[Prefab](s)
	RegisterBuffer[Child](s, WithInlineCapacity(8))
	Register[Parent](s)
}
