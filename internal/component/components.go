package component

import "github.com/kodebolds/froggies/internal/core/ecs"

// Components are pure data with no behaviour; systems own every mutation.

// Health is what DamageSystem drains and DeathSystem watches.
type Health struct {
	Value float32
}

// DamageOverTime drains Health every frame, scaled by frame delta.
type DamageOverTime struct {
	PerSecond float32
}

type Translation struct {
	X, Y, Z float32
}

// Rotation is a unit quaternion.
type Rotation struct {
	X, Y, Z, W float32
}

// IdentityRotation is the rotation a zero-valued prefab falls back to.
var IdentityRotation = Rotation{W: 1}

// LocalToWorld is a column-major 4x4 transform.
type LocalToWorld struct {
	M [16]float32
}

// NewLocalToWorld builds the rigid transform for r followed by t.
func NewLocalToWorld(r Rotation, t Translation) LocalToWorld {
	if r == (Rotation{}) {
		r = IdentityRotation
	}
	x, y, z, w := r.X, r.Y, r.Z, r.W
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z
	return LocalToWorld{M: [16]float32{
		1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy), 0,
		2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx), 0,
		2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy), 0,
		t.X, t.Y, t.Z, 1,
	}}
}

// Position returns the translation column.
func (m LocalToWorld) Position() Translation {
	return Translation{X: m.M[12], Y: m.M[13], Z: m.M[14]}
}

// RuntimePrefabData sits on a spawner and names the prefabs it instantiates.
type RuntimePrefabData struct {
	Drone     ecs.Entity
	Part      ecs.Entity
	PartCount int32
}

// Spawner caps how many drones a spawner keeps alive.
type Spawner struct {
	MaxAlive int32
}

// SpawnedBy links a spawned drone back to its spawner. Null on prefabs and
// parts.
type SpawnedBy struct {
	Spawner ecs.Entity
}

// IDs holds the component ids assigned by Register.
type IDs struct {
	Health            ecs.ComponentID
	DamageOverTime    ecs.ComponentID
	Translation       ecs.ComponentID
	Rotation          ecs.ComponentID
	LocalToWorld      ecs.ComponentID
	RuntimePrefabData ecs.ComponentID
	Spawner           ecs.ComponentID
	SpawnedBy         ecs.ComponentID
	Child             ecs.ComponentID
	Parent            ecs.ComponentID
	Prefab            ecs.ComponentID
}

// Register adds every gameplay component to s. Registering twice returns the
// same ids.
func Register(s *ecs.Store) IDs {
	return IDs{
		Health:            ecs.Register[Health](s),
		DamageOverTime:    ecs.Register[DamageOverTime](s),
		Translation:       ecs.Register[Translation](s),
		Rotation:          ecs.Register[Rotation](s),
		LocalToWorld:      ecs.Register[LocalToWorld](s),
		RuntimePrefabData: ecs.Register[RuntimePrefabData](s),
		Spawner:           ecs.Register[Spawner](s),
		SpawnedBy:         ecs.Register[SpawnedBy](s),
		Child:             ecs.ChildID,
		Parent:            ecs.ParentID,
		Prefab:            ecs.PrefabID,
	}
}
