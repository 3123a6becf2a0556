package event

import "github.com/kodebolds/froggies/internal/core/ecs"

// Structural events emitted during command buffer playback.

type EntityInstantiated struct {
	Prefab ecs.Entity
	Entity ecs.Entity
}

type EntityDestroyed struct {
	Entity ecs.Entity
}
