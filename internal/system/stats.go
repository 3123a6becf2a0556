package system

import (
	"go.uber.org/zap"

	"github.com/kodebolds/froggies/internal/core/event"
	coresys "github.com/kodebolds/froggies/internal/core/system"
)

// StatsSystem counts playback events and logs a summary every Every frames.
// Events are dispatched on the driver goroutine, so the counters need no
// locking.
type StatsSystem struct {
	coresys.Base
	Every uint64

	spawned uint64
	died    uint64
}

func NewStatsSystem(every uint64) *StatsSystem {
	return &StatsSystem{Every: every}
}

func (s *StatsSystem) Name() string         { return "stats" }
func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhasePresentation }

func (s *StatsSystem) Initialize(ctx *coresys.Context) error {
	event.Subscribe(ctx.Bus(), func(event.EntityInstantiated) { s.spawned++ })
	event.Subscribe(ctx.Bus(), func(event.EntityDestroyed) { s.died++ })
	return nil
}

func (s *StatsSystem) Update(ctx *coresys.Context) error {
	if s.Every == 0 || ctx.Frame%s.Every != 0 {
		return nil
	}
	ctx.Log.Info("frame stats",
		zap.Uint64("frame", ctx.Frame),
		zap.Int("entities", ctx.Store.Len()),
		zap.Uint64("spawned", s.spawned),
		zap.Uint64("died", s.died),
	)
	return nil
}

// Totals returns the events seen so far. Events from a frame's playback are
// counted at the start of the next frame.
func (s *StatsSystem) Totals() (spawned, died uint64) {
	return s.spawned, s.died
}
