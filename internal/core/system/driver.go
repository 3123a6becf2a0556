package system

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kodebolds/froggies/internal/core/ecb"
	"github.com/kodebolds/froggies/internal/core/ecs"
	"github.com/kodebolds/froggies/internal/core/event"
	"github.com/kodebolds/froggies/internal/core/job"
)

var (
	// ErrUndeclaredAccess is returned when a system touches a component type
	// it did not declare. It is a configuration error.
	ErrUndeclaredAccess = errors.New("system: undeclared component access")
	// ErrDependencyCycle is returned by Initialize when upstream edges loop.
	ErrDependencyCycle = errors.New("system: dependency cycle")
	// ErrMissingUpstream is recorded when Upstream names an unregistered system.
	ErrMissingUpstream = errors.New("system: upstream system not registered")
	// ErrPhaseOrder is returned when a system depends on one in a later phase.
	ErrPhaseOrder = errors.New("system: upstream runs in a later phase")

	ErrNotInitialized = errors.New("system: driver not initialized")
	ErrInitialized    = errors.New("system: driver already initialized")
)

// FrameState is where the driver is within a frame.
type FrameState int

const (
	FrameIdle FrameState = iota
	FrameScheduling
	FrameDraining
)

func (s FrameState) String() string {
	switch s {
	case FrameScheduling:
		return "scheduling"
	case FrameDraining:
		return "draining"
	}
	return "idle"
}

// Config tunes the driver.
type Config struct {
	// ValidateAccess checks lookups and queries against declarations.
	ValidateAccess bool
	// Batch is the number of chunks per parallel batch.
	Batch int
}

type entry struct {
	id       SystemID
	sys      System
	access   Access
	upstream []SystemID
	ctx      *Context
}

// Driver runs registered systems once per frame. Frame schedules every
// active system in order, waiting on nothing itself, then drains all jobs
// and plays back command buffers before returning.
type Driver struct {
	cfg     Config
	store   *ecs.Store
	jobs    *job.Scheduler
	ecb     *ecb.System
	bus     *event.Bus
	log     *zap.Logger
	tracker *Tracker

	entries     []*entry
	order       []*entry
	initialized bool
	frame       uint64
	state       GameState
	frameState  FrameState
}

func NewDriver(cfg Config, store *ecs.Store, jobs *job.Scheduler, ecbSys *ecb.System, bus *event.Bus, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 1
	}
	return &Driver{
		cfg:     cfg,
		store:   store,
		jobs:    jobs,
		ecb:     ecbSys,
		bus:     bus,
		log:     log,
		tracker: NewTracker(),
	}
}

// Register adds a system. Systems must be registered before Initialize.
func (d *Driver) Register(sys System) error {
	if d.initialized {
		return fmt.Errorf("register %s: %w", sys.Name(), ErrInitialized)
	}
	for _, e := range d.entries {
		if e.sys.Name() == sys.Name() {
			return fmt.Errorf("register %s: duplicate system name", sys.Name())
		}
	}
	e := &entry{id: SystemID(len(d.entries)), sys: sys}
	e.ctx = &Context{
		Store:  d.store,
		Jobs:   d.jobs,
		Log:    d.log.With(zap.String("system", sys.Name())),
		Batch:  d.cfg.Batch,
		driver: d,
		entry:  e,
	}
	d.entries = append(d.entries, e)
	return nil
}

func (d *Driver) Tracker() *Tracker      { return d.tracker }
func (d *Driver) State() GameState       { return d.state }
func (d *Driver) FrameState() FrameState { return d.frameState }
func (d *Driver) FrameCount() uint64     { return d.frame }

// Order returns system names in execution order. Empty before Initialize.
func (d *Driver) Order() []string {
	names := make([]string, len(d.order))
	for i, e := range d.order {
		names[i] = e.sys.Name()
	}
	return names
}

// Initialize collects every declaration, orders the systems and calls
// their Initialize hooks.
func (d *Driver) Initialize() error {
	if d.initialized {
		return ErrInitialized
	}
	var errs error
	for _, e := range d.entries {
		deps := &Dependencies{driver: d, self: e}
		e.sys.DeclareDependencies(deps)
		if deps.err != nil {
			errs = multierr.Append(errs, deps.err)
		}
		e.access = deps.access
		e.upstream = deps.upstream
		d.tracker.Declare(e.id, e.access, e.upstream)
	}
	if errs != nil {
		return errs
	}
	order, err := d.sort()
	if err != nil {
		return err
	}
	d.order = order
	d.initialized = true

	for _, e := range d.order {
		if err := e.sys.Initialize(e.ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("initialize %s: %w", e.sys.Name(), err))
		}
		d.log.Debug("system initialized",
			zap.String("system", e.sys.Name()),
			zap.Stringer("phase", e.sys.Phase()),
			zap.Stringer("access", e.access),
			zap.Int("upstream", len(e.upstream)),
		)
	}
	return errs
}

// sort orders systems by phase, then registration order, honouring upstream
// edges. An upstream in a later phase or a cycle is an error.
func (d *Driver) sort() ([]*entry, error) {
	indegree := make([]int, len(d.entries))
	downstream := make([][]*entry, len(d.entries))
	for _, e := range d.entries {
		for _, up := range e.upstream {
			u := d.entries[up]
			if u.sys.Phase() > e.sys.Phase() {
				return nil, fmt.Errorf("%w: %s (%s) depends on %s (%s)",
					ErrPhaseOrder, e.sys.Name(), e.sys.Phase(), u.sys.Name(), u.sys.Phase())
			}
			downstream[up] = append(downstream[up], e)
			indegree[e.id]++
		}
	}
	order := make([]*entry, 0, len(d.entries))
	done := make([]bool, len(d.entries))
	for len(order) < len(d.entries) {
		var next *entry
		for _, e := range d.entries {
			if done[e.id] || indegree[e.id] > 0 {
				continue
			}
			if next == nil || e.sys.Phase() < next.sys.Phase() {
				next = e
			}
		}
		if next == nil {
			var stuck []string
			for _, e := range d.entries {
				if !done[e.id] {
					stuck = append(stuck, e.sys.Name())
				}
			}
			return nil, fmt.Errorf("%w: %v", ErrDependencyCycle, stuck)
		}
		done[next.id] = true
		order = append(order, next)
		for _, e := range downstream[next.id] {
			indegree[e.id]--
		}
	}
	return order, nil
}

// Frame runs one frame in the given game state. It returns once every job
// has completed and every command buffer has been played back.
func (d *Driver) Frame(state GameState, dt time.Duration) error {
	if !d.initialized {
		return ErrNotInitialized
	}
	d.frame++
	if state != d.state {
		d.log.Info("game state changed",
			zap.Stringer("from", d.state),
			zap.Stringer("to", state),
			zap.Uint64("frame", d.frame),
		)
		event.Emit(d.bus, GameStateChanged{From: d.state, To: state})
		d.state = state
	}
	d.bus.SwapBuffers()
	d.bus.DispatchAll()

	d.frameState = FrameScheduling
	var errs error
	for _, e := range d.order {
		if !activeIn(e.sys, state) {
			continue
		}
		ctx := e.ctx
		ctx.reset(d.frame, dt, state, d.tracker.CombinedHandle(e.id))
		if err := e.sys.Update(ctx); err != nil && !errors.Is(err, ErrUndeclaredAccess) {
			errs = multierr.Append(errs, fmt.Errorf("update %s: %w", e.sys.Name(), err))
		}
		errs = multierr.Append(errs, ctx.err)
		if ctx.producer {
			d.ecb.AddJobHandleForProducer(ctx.Dependency)
		}
		d.tracker.RegisterCompletion(e.id, ctx.Dependency)
	}

	d.frameState = FrameDraining
	errs = multierr.Append(errs, d.jobs.CompleteAll())
	if err := d.ecb.Playback(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("playback: %w", err))
	}
	d.tracker.Reset()
	d.frameState = FrameIdle
	return errs
}

// Shutdown calls every system's Shutdown hook in reverse order.
func (d *Driver) Shutdown() error {
	if !d.initialized {
		return nil
	}
	var errs error
	for i := len(d.order) - 1; i >= 0; i-- {
		e := d.order[i]
		if err := e.sys.Shutdown(e.ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shutdown %s: %w", e.sys.Name(), err))
		}
	}
	errs = multierr.Append(errs, d.jobs.CompleteAll())
	if err := d.ecb.Playback(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("playback: %w", err))
	}
	d.initialized = false
	return errs
}
