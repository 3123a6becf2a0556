package system

import "github.com/kodebolds/froggies/internal/scripting"

// Rules answers the tunable gameplay questions. *scripting.Engine implements
// it; DefaultRules is used when no scripts are configured. Rules are only
// consulted from Update, on the driver goroutine.
type Rules interface {
	SpawnCount(ctx scripting.SpawnContext) int
	DamageScale(frame uint64) float32
	DeathThreshold() float32
}

// DefaultRules keeps spawners full, applies damage unscaled and kills at zero
// health.
type DefaultRules struct{}

func (DefaultRules) SpawnCount(ctx scripting.SpawnContext) int { return scripting.DefaultSpawnCount(ctx) }
func (DefaultRules) DamageScale(uint64) float32                { return scripting.DefaultDamageScale }
func (DefaultRules) DeathThreshold() float32                   { return scripting.DefaultDeathThreshold }

var _ Rules = (*scripting.Engine)(nil)

func rulesOrDefault(r Rules) Rules {
	if r == nil {
		return DefaultRules{}
	}
	return r
}
