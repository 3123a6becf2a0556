package system

import (
	"math"

	"github.com/kodebolds/froggies/internal/component"
	coresys "github.com/kodebolds/froggies/internal/core/system"
)

// Hit is the result of one targeting pass.
type Hit struct {
	Point  component.Translation
	Ground bool
}

// TargetingSystem picks the point spawners aim at. The point sweeps a circle
// of Radius once every Period frames; every MissEvery-th frame misses the
// ground. Its result is not a component, so readers declare it as upstream.
type TargetingSystem struct {
	coresys.Base
	Radius    float32
	Period    uint64
	MissEvery uint64

	hit Hit
}

func NewTargetingSystem(radius float32, period uint64) *TargetingSystem {
	if period == 0 {
		period = 1
	}
	return &TargetingSystem{Radius: radius, Period: period}
}

func (s *TargetingSystem) Name() string         { return "targeting" }
func (s *TargetingSystem) Phase() coresys.Phase { return coresys.PhaseSimulation }

func (s *TargetingSystem) Update(ctx *coresys.Context) error {
	frame := ctx.Frame
	ctx.Schedule("raycast", func() error {
		s.hit = s.cast(frame)
		return nil
	})
	return nil
}

func (s *TargetingSystem) cast(frame uint64) Hit {
	if s.MissEvery > 0 && frame%s.MissEvery == 0 {
		return Hit{}
	}
	angle := 2 * math.Pi * float64(frame%s.Period) / float64(s.Period)
	return Hit{
		Point: component.Translation{
			X: s.Radius * float32(math.Cos(angle)),
			Z: s.Radius * float32(math.Sin(angle)),
		},
		Ground: true,
	}
}

// Result returns the latest hit. Only valid once the system's Dependency for
// this frame has completed, which holds inside downstream jobs.
func (s *TargetingSystem) Result() Hit { return s.hit }
