package ecs

import "errors"

var (
	// ErrComponentNotPresent is returned when a component or buffer type is
	// absent from an entity's archetype, or was never registered.
	ErrComponentNotPresent = errors.New("ecs: component not present")
	// ErrInvalidCapacity is returned when a buffer capacity would drop below
	// its live length.
	ErrInvalidCapacity = errors.New("ecs: invalid capacity")
	// ErrNullSource is returned when copying from a null buffer view.
	ErrNullSource = errors.New("ecs: null source")
	// ErrIndexOutOfRange is returned by bounds-checked element access.
	ErrIndexOutOfRange = errors.New("ecs: index out of range")
	// ErrStaleEntity is returned for entities whose generation no longer
	// matches. Callers may treat it as a no-op.
	ErrStaleEntity = errors.New("ecs: stale entity")
	// ErrStructuralChange is reported by a RowIter that outlived a structural
	// change of the store.
	ErrStructuralChange = errors.New("ecs: structural change during iteration")
	// ErrReadOnly is returned when a read-only lookup is asked for a mutable
	// reference.
	ErrReadOnly = errors.New("ecs: lookup is read-only")
)
