package system

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kodebolds/froggies/internal/core/ecb"
	"github.com/kodebolds/froggies/internal/core/ecs"
	"github.com/kodebolds/froggies/internal/core/event"
	"github.com/kodebolds/froggies/internal/core/job"
)

// Context is what a system sees during its lifecycle hooks. The driver keeps
// one Context per system and refreshes it every frame.
type Context struct {
	Store     *ecs.Store
	Jobs      *job.Scheduler
	Log       *zap.Logger
	Frame     uint64
	DeltaTime time.Duration
	State     GameState
	// Dependency is the combined handle of everything this system must wait
	// for. Systems chain their jobs on it and store the last job's handle
	// back into it.
	Dependency job.Handle
	// Batch is the configured number of chunks per parallel batch.
	Batch int

	driver   *Driver
	entry    *entry
	producer bool
	err      error
}

func (c *Context) reset(frame uint64, dt time.Duration, state GameState, dep job.Handle) {
	c.Frame = frame
	c.DeltaTime = dt
	c.State = state
	c.Dependency = dep
	c.producer = false
	c.err = nil
}

func (c *Context) Bus() *event.Bus { return c.driver.bus }

// CommandBuffer returns a buffer played back at the end of the frame. The
// system's final Dependency is registered as its producer.
func (c *Context) CommandBuffer() *ecb.CommandBuffer {
	c.producer = true
	return c.driver.ecb.CreateCommandBuffer()
}

func (c *Context) fail(err error) error {
	c.err = multierr.Append(c.err, err)
	return err
}

func (c *Context) checkRead(id ecs.ComponentID) error {
	if !c.driver.cfg.ValidateAccess || c.entry.access.Reads(id) {
		return nil
	}
	return c.fail(fmt.Errorf("%w: %s reads %s", ErrUndeclaredAccess, c.entry.sys.Name(), c.Store.ComponentName(id)))
}

func (c *Context) checkWrite(id ecs.ComponentID) error {
	if !c.driver.cfg.ValidateAccess || c.entry.access.Writes(id) {
		return nil
	}
	return c.fail(fmt.Errorf("%w: %s writes %s", ErrUndeclaredAccess, c.entry.sys.Name(), c.Store.ComponentName(id)))
}

func (c *Context) check(id ecs.ComponentID, readOnly bool) error {
	if readOnly {
		return c.checkRead(id)
	}
	return c.checkWrite(id)
}

// Chunks returns the chunks matching f after checking that every required
// type was declared.
func (c *Context) Chunks(f ecs.Filter) ([]*ecs.Chunk, error) {
	for _, id := range f.Components() {
		if err := c.checkRead(id); err != nil {
			return nil, err
		}
	}
	return c.Store.Chunks(f), nil
}

// ComponentLookupFor returns a lookup for T. A writable lookup requires a
// write declaration.
func ComponentLookupFor[T any](c *Context, readOnly bool) (ecs.ComponentLookup[T], error) {
	l, err := ecs.NewComponentLookup[T](c.Store, readOnly)
	if err != nil {
		return l, err
	}
	if err := c.check(l.ID(), readOnly); err != nil {
		return ecs.ComponentLookup[T]{}, err
	}
	return l, nil
}

// BufferLookupFor returns a lookup for buffers of E.
func BufferLookupFor[E any](c *Context, readOnly bool) (ecs.BufferLookup[E], error) {
	l, err := ecs.NewBufferLookup[E](c.Store, readOnly)
	if err != nil {
		return l, err
	}
	if err := c.check(l.ID(), readOnly); err != nil {
		return ecs.BufferLookup[E]{}, err
	}
	return l, nil
}

func (c *Context) jobName(name string) string {
	return c.entry.sys.Name() + "/" + name
}

// Schedule chains fn after Dependency on a worker.
func (c *Context) Schedule(name string, fn func() error) {
	c.Dependency = c.Jobs.Schedule(c.jobName(name), c.Dependency, fn)
}

// ScheduleChunks chains a parallel job after Dependency that calls fn once
// per chunk. Chunks are processed in batches with no ordering between them.
func (c *Context) ScheduleChunks(name string, chunks []*ecs.Chunk, fn func(i int, ch *ecs.Chunk) error) {
	c.Dependency = c.Jobs.ScheduleParallel(c.jobName(name), c.Dependency, len(chunks), c.Batch, func(i int) error {
		return fn(i, chunks[i])
	})
}

// Run completes Dependency and runs fn on the driver goroutine.
func (c *Context) Run(name string, fn func() error) {
	c.Dependency = c.Jobs.Run(c.jobName(name), c.Dependency, fn)
}
