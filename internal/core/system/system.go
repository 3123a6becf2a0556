package system

import "fmt"

// Phase defines execution ordering within a single frame. Systems run in
// phase order; within a phase, registration order refined by explicit
// upstream dependencies.
type Phase int

const (
	PhaseInitialization Phase = iota // 0: spawn requests, targeting
	PhaseSimulation                  // 1: game logic
	PhaseLateSimulation              // 2: death, spawning
	PhasePresentation                // 3: transforms, reporting
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialization:
		return "initialization"
	case PhaseSimulation:
		return "simulation"
	case PhaseLateSimulation:
		return "late-simulation"
	case PhasePresentation:
		return "presentation"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// GameState is the process-wide state passed into every frame.
type GameState int

const (
	StateAny GameState = iota
	StateInitialising
	StateUpdating
	StatePaused
	StateGameOver
)

var gameStateNames = map[GameState]string{
	StateAny:          "any",
	StateInitialising: "initialising",
	StateUpdating:     "updating",
	StatePaused:       "paused",
	StateGameOver:     "game-over",
}

func (s GameState) String() string {
	if name, ok := gameStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseGameState is the inverse of GameState.String.
func ParseGameState(name string) (GameState, error) {
	for s, n := range gameStateNames {
		if n == name {
			return s, nil
		}
	}
	return StateAny, fmt.Errorf("unknown game state %q", name)
}

// GameStateChanged is emitted on the bus when a frame runs in a different
// state than the previous one.
type GameStateChanged struct {
	From GameState
	To   GameState
}

// System is the interface every ECS system implements.
type System interface {
	Name() string
	Phase() Phase
	// DeclareDependencies is called once, before Initialize, to record the
	// component types the system reads and writes and its upstream systems.
	DeclareDependencies(d *Dependencies)
	Initialize(ctx *Context) error
	// Update schedules the system's work for one frame. The system starts
	// from ctx.Dependency and must leave in it a handle that completes after
	// all of its jobs.
	Update(ctx *Context) error
	Shutdown(ctx *Context) error
}

// StateGated is implemented by systems that only run in one game state.
type StateGated interface {
	ActiveState() GameState
}

// Base provides no-op lifecycle hooks for embedding.
type Base struct{}

func (Base) DeclareDependencies(*Dependencies) {}
func (Base) Initialize(*Context) error         { return nil }
func (Base) Shutdown(*Context) error           { return nil }
func (Base) ActiveState() GameState            { return StateAny }

func activeIn(sys System, state GameState) bool {
	g, ok := sys.(StateGated)
	if !ok {
		return true
	}
	want := g.ActiveState()
	return want == StateAny || want == state
}
