package system

import (
	"go.uber.org/zap"

	"github.com/kodebolds/froggies/internal/component"
	"github.com/kodebolds/froggies/internal/core/ecs"
	coresys "github.com/kodebolds/froggies/internal/core/system"
)

// DeathSystem destroys every entity whose health fell to the threshold,
// together with everything hanging off its Child buffer. Destruction goes
// through the frame's command buffer, one writer per chunk.
type DeathSystem struct {
	coresys.Base
	ids   component.IDs
	rules Rules
}

func NewDeathSystem(ids component.IDs, rules Rules) *DeathSystem {
	return &DeathSystem{ids: ids, rules: rulesOrDefault(rules)}
}

func (s *DeathSystem) Name() string                   { return "death" }
func (s *DeathSystem) Phase() coresys.Phase           { return coresys.PhaseLateSimulation }
func (s *DeathSystem) ActiveState() coresys.GameState { return coresys.StateUpdating }

func (s *DeathSystem) DeclareDependencies(d *coresys.Dependencies) {
	coresys.Reads[component.Health](d)
	d.Read(ecs.ChildID)
}

func (s *DeathSystem) Update(ctx *coresys.Context) error {
	children, err := coresys.BufferLookupFor[ecs.Child](ctx, true)
	if err != nil {
		return err
	}
	chunks, err := ctx.Chunks(ecs.NewFilter(s.ids.Health))
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	threshold := s.rules.DeathThreshold()
	hp := s.ids.Health
	log := ctx.Log
	writers := ctx.CommandBuffer().ParallelWriter(len(chunks))
	ctx.ScheduleChunks("reap", chunks, func(i int, ch *ecs.Chunk) error {
		health, err := ecs.Column[component.Health](ch, hp)
		if err != nil {
			return err
		}
		w := writers.Writer(i)
		for row, e := range ch.Entities() {
			if health[row].Value > threshold {
				continue
			}
			w.DestroyWithChildren(e, children)
			log.Debug("entity has died",
				zap.Stringer("entity", e),
				zap.Float32("health", health[row].Value),
			)
		}
		return nil
	})
	return nil
}
