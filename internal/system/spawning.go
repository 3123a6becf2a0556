package system

import (
	"go.uber.org/zap"

	"github.com/kodebolds/froggies/internal/component"
	"github.com/kodebolds/froggies/internal/core/ecb"
	"github.com/kodebolds/froggies/internal/core/ecs"
	coresys "github.com/kodebolds/froggies/internal/core/system"
	"github.com/kodebolds/froggies/internal/scripting"
)

// spawnLift raises spawned drones above the targeted ground point.
const spawnLift = 1

// SpawningSystem tops up every spawner with drones placed at the targeted
// point. The decision needs both the targeting result and the rules engine,
// so it runs as a sequential job on the driver goroutine.
type SpawningSystem struct {
	coresys.Base
	ids       component.IDs
	rules     Rules
	targeting *TargetingSystem
	spawned   uint64
}

func NewSpawningSystem(ids component.IDs, rules Rules) *SpawningSystem {
	return &SpawningSystem{ids: ids, rules: rulesOrDefault(rules)}
}

func (s *SpawningSystem) Name() string                   { return "spawning" }
func (s *SpawningSystem) Phase() coresys.Phase           { return coresys.PhaseSimulation }
func (s *SpawningSystem) ActiveState() coresys.GameState { return coresys.StateUpdating }

// Spawned is the number of drones requested so far.
func (s *SpawningSystem) Spawned() uint64 { return s.spawned }

func (s *SpawningSystem) DeclareDependencies(d *coresys.Dependencies) {
	s.targeting = coresys.Upstream[*TargetingSystem](d)
	coresys.Reads[component.RuntimePrefabData](d)
	coresys.Reads[component.Spawner](d)
	coresys.Reads[component.Rotation](d)
	coresys.Reads[component.SpawnedBy](d)
}

func (s *SpawningSystem) Update(ctx *coresys.Context) error {
	spawners, err := ctx.Chunks(ecs.NewFilter(s.ids.RuntimePrefabData, s.ids.Spawner))
	if err != nil {
		return err
	}
	if len(spawners) == 0 {
		return nil
	}
	drones, err := ctx.Chunks(ecs.NewFilter(s.ids.SpawnedBy))
	if err != nil {
		return err
	}
	rotations, err := coresys.ComponentLookupFor[component.Rotation](ctx, true)
	if err != nil {
		return err
	}
	w := ctx.CommandBuffer().Writer()
	ctx.Run("spawn", func() error {
		hit := s.targeting.Result()
		if !hit.Ground {
			return nil
		}
		alive, err := s.countAlive(drones)
		if err != nil {
			return err
		}
		total := 0
		for _, ch := range spawners {
			data, err := ecs.Column[component.RuntimePrefabData](ch, s.ids.RuntimePrefabData)
			if err != nil {
				return err
			}
			caps, err := ecs.Column[component.Spawner](ch, s.ids.Spawner)
			if err != nil {
				return err
			}
			for row, spawner := range ch.Entities() {
				n := s.rules.SpawnCount(scripting.SpawnContext{
					Frame:    ctx.Frame,
					Alive:    alive[spawner],
					MaxAlive: int(caps[row].MaxAlive),
					Spawners: len(spawners),
				})
				for i := 0; i < n; i++ {
					s.spawn(w, rotations, spawner, data[row], hit.Point, i)
				}
				total += n
			}
		}
		if total > 0 {
			s.spawned += uint64(total)
			ctx.Log.Debug("drones requested",
				zap.Int("count", total),
				zap.Uint64("frame", ctx.Frame),
			)
		}
		return nil
	})
	return nil
}

func (s *SpawningSystem) countAlive(chunks []*ecs.Chunk) (map[ecs.Entity]int, error) {
	alive := make(map[ecs.Entity]int)
	for _, ch := range chunks {
		owners, err := ecs.Column[component.SpawnedBy](ch, s.ids.SpawnedBy)
		if err != nil {
			return nil, err
		}
		for _, o := range owners {
			if !o.Spawner.IsNull() {
				alive[o.Spawner]++
			}
		}
	}
	return alive, nil
}

// spawn records one drone and its parts. Drones spawned together fan out
// along x so they do not overlap.
func (s *SpawningSystem) spawn(w *ecb.Writer, rotations ecs.ComponentLookup[component.Rotation], spawner ecs.Entity, data component.RuntimePrefabData, at component.Translation, i int) {
	rot, err := rotations.Get(data.Drone)
	if err != nil {
		rot = component.IdentityRotation
	}
	pos := component.Translation{X: at.X + float32(i), Y: at.Y + spawnLift, Z: at.Z}

	drone := w.Instantiate(data.Drone)
	ecb.SetComponent(w, drone, pos)
	ecb.SetComponent(w, drone, component.NewLocalToWorld(rot, pos))
	ecb.SetComponent(w, drone, component.SpawnedBy{Spawner: spawner})

	if data.Part.IsNull() {
		return
	}
	for j := int32(0); j < data.PartCount; j++ {
		part := w.Instantiate(data.Part)
		ecb.SetComponent(w, part, pos)
		ecb.SetComponent(w, part, component.NewLocalToWorld(rot, pos))
		w.LinkChild(drone, part)
	}
}
