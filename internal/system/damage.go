package system

import (
	"github.com/kodebolds/froggies/internal/component"
	"github.com/kodebolds/froggies/internal/core/ecs"
	coresys "github.com/kodebolds/froggies/internal/core/system"
)

// DamageSystem drains Health by DamageOverTime every frame, one job per chunk.
type DamageSystem struct {
	coresys.Base
	ids   component.IDs
	rules Rules
}

func NewDamageSystem(ids component.IDs, rules Rules) *DamageSystem {
	return &DamageSystem{ids: ids, rules: rulesOrDefault(rules)}
}

func (s *DamageSystem) Name() string                   { return "damage" }
func (s *DamageSystem) Phase() coresys.Phase           { return coresys.PhaseSimulation }
func (s *DamageSystem) ActiveState() coresys.GameState { return coresys.StateUpdating }

func (s *DamageSystem) DeclareDependencies(d *coresys.Dependencies) {
	coresys.Writes[component.Health](d)
	coresys.Reads[component.DamageOverTime](d)
}

func (s *DamageSystem) Update(ctx *coresys.Context) error {
	chunks, err := ctx.Chunks(ecs.NewFilter(s.ids.Health, s.ids.DamageOverTime))
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	step := float32(ctx.DeltaTime.Seconds()) * s.rules.DamageScale(ctx.Frame)
	hp, dot := s.ids.Health, s.ids.DamageOverTime
	ctx.ScheduleChunks("apply", chunks, func(_ int, ch *ecs.Chunk) error {
		health, err := ecs.Column[component.Health](ch, hp)
		if err != nil {
			return err
		}
		rates, err := ecs.Column[component.DamageOverTime](ch, dot)
		if err != nil {
			return err
		}
		for i := range health {
			health[i].Value -= rates[i].PerSecond * step
		}
		return nil
	})
	return nil
}
