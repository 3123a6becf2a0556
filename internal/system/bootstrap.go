package system

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kodebolds/froggies/internal/component"
	"github.com/kodebolds/froggies/internal/core/ecs"
	"github.com/kodebolds/froggies/internal/data"
)

// World is what Bootstrap built.
type World struct {
	Prefabs  map[string]ecs.Entity
	Spawners []ecs.Entity
}

// Bootstrap creates one prefab entity per template and one spawner per spawn
// entry. It runs before the first frame, outside any job.
func Bootstrap(store *ecs.Store, ids component.IDs, table *data.PrefabTable, spawns []data.SpawnEntry, log *zap.Logger) (*World, error) {
	if log == nil {
		log = zap.NewNop()
	}
	w := &World{Prefabs: make(map[string]ecs.Entity, table.Count())}

	withDot := store.Archetype(ids.Prefab, ids.Health, ids.DamageOverTime, ids.Translation, ids.Rotation, ids.LocalToWorld, ids.SpawnedBy)
	withoutDot := store.Archetype(ids.Prefab, ids.Health, ids.Translation, ids.Rotation, ids.LocalToWorld, ids.SpawnedBy)
	for _, name := range table.Names() {
		tmpl := table.Get(name)
		arch := withoutDot
		if tmpl.DamagePerSecond > 0 {
			arch = withDot
		}
		e := store.CreateEntity(arch)
		rot := component.IdentityRotation
		if len(tmpl.Rotation) == 4 {
			rot = component.Rotation{X: tmpl.Rotation[0], Y: tmpl.Rotation[1], Z: tmpl.Rotation[2], W: tmpl.Rotation[3]}
		}
		if err := setAll(store, e, tmpl, rot); err != nil {
			return nil, fmt.Errorf("prefab %s: %w", name, err)
		}
		w.Prefabs[name] = e
		log.Debug("prefab created", zap.String("prefab", name), zap.Stringer("entity", e))
	}

	spawnerArch := store.Archetype(ids.RuntimePrefabData, ids.Spawner)
	for i, sp := range spawns {
		tmpl := table.Get(sp.Prefab)
		if tmpl == nil {
			return nil, fmt.Errorf("spawn %d: unknown prefab %q", i, sp.Prefab)
		}
		if sp.MaxAlive < 0 {
			return nil, fmt.Errorf("spawn %d: max_alive must not be negative", i)
		}
		rpd := component.RuntimePrefabData{Drone: w.Prefabs[sp.Prefab]}
		if tmpl.Part != "" {
			rpd.Part = w.Prefabs[tmpl.Part]
			rpd.PartCount = tmpl.PartCount
		}
		e := store.CreateEntity(spawnerArch)
		if err := ecs.Set(store, e, rpd); err != nil {
			return nil, fmt.Errorf("spawn %d: %w", i, err)
		}
		if err := ecs.Set(store, e, component.Spawner{MaxAlive: sp.MaxAlive}); err != nil {
			return nil, fmt.Errorf("spawn %d: %w", i, err)
		}
		w.Spawners = append(w.Spawners, e)
	}
	log.Info("world bootstrapped",
		zap.Int("prefabs", len(w.Prefabs)),
		zap.Int("spawners", len(w.Spawners)),
	)
	return w, nil
}

func setAll(store *ecs.Store, e ecs.Entity, tmpl *data.PrefabTemplate, rot component.Rotation) error {
	if err := ecs.Set(store, e, component.Health{Value: tmpl.Health}); err != nil {
		return err
	}
	if tmpl.DamagePerSecond > 0 {
		if err := ecs.Set(store, e, component.DamageOverTime{PerSecond: tmpl.DamagePerSecond}); err != nil {
			return err
		}
	}
	if err := ecs.Set(store, e, rot); err != nil {
		return err
	}
	return ecs.Set(store, e, component.NewLocalToWorld(rot, component.Translation{}))
}
