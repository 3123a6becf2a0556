package system

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kodebolds/froggies/internal/core/ecb"
	"github.com/kodebolds/froggies/internal/core/ecs"
	"github.com/kodebolds/froggies/internal/core/event"
	"github.com/kodebolds/froggies/internal/core/job"
)

type health struct{ Value float32 }
type armor struct{ Value float32 }

type recorder struct {
	mu  sync.Mutex
	ran []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	r.ran = append(r.ran, name)
	r.mu.Unlock()
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.ran
	r.ran = nil
	return out
}

type fakeSystem struct {
	Base
	name    string
	phase   Phase
	state   GameState
	declare func(d *Dependencies)
	update  func(ctx *Context) error
	rec     *recorder
}

func (f *fakeSystem) Name() string           { return f.name }
func (f *fakeSystem) Phase() Phase           { return f.phase }
func (f *fakeSystem) ActiveState() GameState { return f.state }

func (f *fakeSystem) DeclareDependencies(d *Dependencies) {
	if f.declare != nil {
		f.declare(d)
	}
}

func (f *fakeSystem) Update(ctx *Context) error {
	if f.rec != nil {
		f.rec.add(f.name)
	}
	if f.update != nil {
		return f.update(ctx)
	}
	return nil
}

type upstreamSystem struct{ fakeSystem }
type cycleA struct{ fakeSystem }
type cycleB struct{ fakeSystem }

type harness struct {
	store  *ecs.Store
	jobs   *job.Scheduler
	bus    *event.Bus
	driver *Driver
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := ecs.NewStore(ecs.Options{ChunkBytes: 256}, log)
	ecs.Register[health](store)
	ecs.Register[armor](store)
	jobs := job.NewScheduler(4, log)
	t.Cleanup(func() { jobs.Close() })
	bus := event.NewBus()
	return &harness{
		store:  store,
		jobs:   jobs,
		bus:    bus,
		driver: NewDriver(cfg, store, jobs, ecb.NewSystem(store, bus, log), bus, log),
	}
}

func (h *harness) register(t *testing.T, systems ...System) {
	t.Helper()
	for _, s := range systems {
		if err := h.driver.Register(s); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
}

func TestDriverOrdersByPhaseAndUpstream(t *testing.T) {
	h := newHarness(t, Config{})
	a := &fakeSystem{name: "a", phase: PhaseSimulation, declare: func(d *Dependencies) {
		Upstream[*upstreamSystem](d)
	}}
	b := &fakeSystem{name: "b", phase: PhaseInitialization}
	up := &upstreamSystem{fakeSystem{name: "up", phase: PhaseSimulation}}
	late := &fakeSystem{name: "late", phase: PhasePresentation}
	h.register(t, late, a, b, up)
	if err := h.driver.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	want := []string{"b", "up", "a", "late"}
	if got := h.driver.Order(); !slices.Equal(got, want) {
		t.Fatalf("expected order %v, got %v", want, got)
	}
}

func TestDriverInitializeErrors(t *testing.T) {
	cases := []struct {
		name    string
		systems func() []System
		want    error
	}{
		{"cycle", func() []System {
			x := &cycleA{fakeSystem{name: "x", declare: func(d *Dependencies) { Upstream[*cycleB](d) }}}
			y := &cycleB{fakeSystem{name: "y", declare: func(d *Dependencies) { Upstream[*cycleA](d) }}}
			return []System{x, y}
		}, ErrDependencyCycle},
		{"upstream_in_later_phase", func() []System {
			x := &fakeSystem{name: "x", phase: PhaseInitialization, declare: func(d *Dependencies) { Upstream[*upstreamSystem](d) }}
			up := &upstreamSystem{fakeSystem{name: "up", phase: PhasePresentation}}
			return []System{x, up}
		}, ErrPhaseOrder},
		{"missing_upstream", func() []System {
			return []System{&fakeSystem{name: "x", declare: func(d *Dependencies) { Upstream[*upstreamSystem](d) }}}
		}, ErrMissingUpstream},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := newHarness(t, Config{})
			h.register(t, c.systems()...)
			if err := h.driver.Initialize(); !errors.Is(err, c.want) {
				t.Fatalf("expected %v, got %v", c.want, err)
			}
		})
	}
}

func TestDriverGameStateGate(t *testing.T) {
	h := newHarness(t, Config{})
	rec := &recorder{}
	always := &fakeSystem{name: "always", rec: rec}
	updating := &fakeSystem{name: "updating", state: StateUpdating, rec: rec}
	h.register(t, always, updating)
	if err := h.driver.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	var changes []GameStateChanged
	event.Subscribe(h.bus, func(ev GameStateChanged) { changes = append(changes, ev) })

	frames := []struct {
		state GameState
		want  []string
	}{
		{StateUpdating, []string{"always", "updating"}},
		{StatePaused, []string{"always"}},
		{StateUpdating, []string{"always", "updating"}},
	}
	for i, f := range frames {
		if err := h.driver.Frame(f.state, time.Millisecond); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if got := rec.take(); !slices.Equal(got, f.want) {
			t.Fatalf("frame %d (%s): expected %v, got %v", i, f.state, f.want, got)
		}
		if h.driver.FrameState() != FrameIdle {
			t.Fatalf("driver must be idle between frames")
		}
	}
	// A change is emitted before the frame's dispatch, so all three arrived.
	if len(changes) != 3 || changes[0].From != StateAny || changes[1].To != StatePaused {
		t.Fatalf("unexpected state change events %v", changes)
	}
}

func TestDriverRejectsUndeclaredAccess(t *testing.T) {
	for _, validate := range []bool{true, false} {
		h := newHarness(t, Config{ValidateAccess: validate})
		sneaky := &fakeSystem{
			name: "sneaky",
			declare: func(d *Dependencies) {
				Reads[armor](d)
			},
			update: func(ctx *Context) error {
				if _, err := ComponentLookupFor[armor](ctx, true); err != nil {
					return err
				}
				_, err := ComponentLookupFor[health](ctx, false)
				return err
			},
		}
		h.register(t, sneaky)
		if err := h.driver.Initialize(); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		err := h.driver.Frame(StateUpdating, time.Millisecond)
		if validate && !errors.Is(err, ErrUndeclaredAccess) {
			t.Fatalf("expected ErrUndeclaredAccess, got %v", err)
		}
		if !validate && err != nil {
			t.Fatalf("validation disabled, got %v", err)
		}
	}
}

func TestDriverOrdersJobsAndPlaysBack(t *testing.T) {
	h := newHarness(t, Config{ValidateAccess: true, Batch: 2})
	hpID := ecs.MustID[health](h.store)
	arch := h.store.Archetype(hpID)
	for i := 0; i < 40; i++ {
		e := h.store.CreateEntity(arch)
		ecs.Set(h.store, e, health{Value: float32(i % 4)})
	}

	damage := &fakeSystem{
		name:    "damage",
		phase:   PhaseSimulation,
		declare: func(d *Dependencies) { Writes[health](d) },
		update: func(ctx *Context) error {
			chunks, err := ctx.Chunks(ecs.NewFilter(hpID))
			if err != nil {
				return err
			}
			ctx.ScheduleChunks("apply", chunks, func(_ int, ch *ecs.Chunk) error {
				col, err := ecs.Column[health](ch, hpID)
				if err != nil {
					return err
				}
				for i := range col {
					time.Sleep(10 * time.Microsecond)
					col[i].Value--
				}
				return nil
			})
			return nil
		},
	}
	var mu sync.Mutex
	observedNegative := 0
	death := &fakeSystem{
		name:    "death",
		phase:   PhaseLateSimulation,
		declare: func(d *Dependencies) { Reads[health](d) },
		update: func(ctx *Context) error {
			chunks, err := ctx.Chunks(ecs.NewFilter(hpID))
			if err != nil {
				return err
			}
			pw := ctx.CommandBuffer().ParallelWriter(len(chunks))
			ctx.ScheduleChunks("reap", chunks, func(i int, ch *ecs.Chunk) error {
				col, err := ecs.Column[health](ch, hpID)
				if err != nil {
					return err
				}
				w := pw.Writer(i)
				for row, e := range ch.Entities() {
					if col[row].Value < 0 {
						mu.Lock()
						observedNegative++
						mu.Unlock()
					}
					if col[row].Value <= 0 {
						w.Destroy(e)
					}
				}
				return nil
			})
			return nil
		},
	}
	h.register(t, death, damage)
	if err := h.driver.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := h.driver.Frame(StateUpdating, time.Millisecond); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	// Values 0..3 minus one: the 0s and 1s are gone and the 0s were seen at -1.
	if observedNegative != 10 {
		t.Fatalf("death must observe every damage write, saw %d negative", observedNegative)
	}
	if n := h.store.Count(ecs.NewFilter(hpID)); n != 20 {
		t.Fatalf("expected 20 survivors, got %d", n)
	}
}

func TestDriverSurfacesJobErrors(t *testing.T) {
	h := newHarness(t, Config{})
	boom := errors.New("boom")
	failing := &fakeSystem{
		name: "failing",
		update: func(ctx *Context) error {
			ctx.Schedule("explode", func() error { return boom })
			return nil
		},
	}
	h.register(t, failing)
	if err := h.driver.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := h.driver.Frame(StateUpdating, time.Millisecond); !errors.Is(err, boom) {
		t.Fatalf("expected job error from Frame, got %v", err)
	}
	if err := h.driver.Frame(StateUpdating, time.Millisecond); !errors.Is(err, boom) {
		t.Fatalf("every frame reports its own job errors, got %v", err)
	}
}
