package ecb

import (
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/kodebolds/froggies/internal/core/ecs"
	"github.com/kodebolds/froggies/internal/core/event"
)

var (
	// ErrPlayedBack is returned when a command buffer is played back twice.
	ErrPlayedBack = errors.New("ecb: command buffer already played back")
	// ErrUnresolvedPlaceholder is returned when commands target a placeholder
	// that no instantiate in the buffer ever defined.
	ErrUnresolvedPlaceholder = errors.New("ecb: unresolved placeholder")
)

// Stats summarises one playback.
type Stats struct {
	Commands     int
	Instantiated int
	Destroyed    int
	Skipped      int
}

// CommandBuffer is a deferred log of structural changes. Commands are
// recorded into shards and replayed single-threaded by Playback, shard by
// shard in index order and in append order within a shard.
type CommandBuffer struct {
	id     uint32
	store  *ecs.Store
	bus    *event.Bus
	shards []*Writer
	played bool
	stats  Stats
}

var bufferIDs atomic.Uint32

// New returns an empty command buffer with a single shard. Placeholders it
// hands out only resolve in its own playback.
func New(store *ecs.Store) *CommandBuffer {
	id := bufferIDs.Add(1)
	return &CommandBuffer{
		id:     id,
		store:  store,
		shards: []*Writer{{buffer: id, shard: 0}},
	}
}

// Writer returns shard 0, for single-threaded recording.
func (cb *CommandBuffer) Writer() *Writer { return cb.shards[0] }

// ParallelWriter hands out n independent shards. It must be called before
// the jobs that use the shards are scheduled.
func (cb *CommandBuffer) ParallelWriter(n int) ParallelWriter {
	if n > maxShards {
		panic(fmt.Sprintf("ecb: %d shards requested, at most %d supported", n, maxShards))
	}
	for i := len(cb.shards); i < n; i++ {
		cb.shards = append(cb.shards, &Writer{buffer: cb.id, shard: uint32(i)})
	}
	return ParallelWriter{shards: cb.shards[:max(n, 1)]}
}

// Len returns the total number of recorded commands.
func (cb *CommandBuffer) Len() int {
	n := 0
	for _, w := range cb.shards {
		n += w.Len()
	}
	return n
}

func (cb *CommandBuffer) Stats() Stats        { return cb.stats }
func (cb *CommandBuffer) PlayedBack() bool    { return cb.played }
func (cb *CommandBuffer) Store() *ecs.Store   { return cb.store }
func (cb *CommandBuffer) SetBus(b *event.Bus) { cb.bus = b }

// ParallelWriter is a fixed set of shards indexed by partition.
type ParallelWriter struct {
	shards []*Writer
}

func (p ParallelWriter) Writer(i int) *Writer { return p.shards[i] }
func (p ParallelWriter) Len() int             { return len(p.shards) }

// Playback applies every recorded command to s. Commands whose target no
// longer exists are skipped. Commands on a placeholder wait until the
// instantiate that defines it has played. Instantiate and destroy events are
// emitted as one batch per type once every command has run.
func (cb *CommandBuffer) Playback(s *ecs.Store) error {
	if cb.played {
		return ErrPlayedBack
	}
	cb.played = true
	p := playback{
		cb:       cb,
		store:    s,
		resolved: make(map[ecs.Entity]ecs.Entity),
	}
	for _, w := range cb.shards {
		for i := range w.entries {
			p.run(w.entries[i])
		}
		w.entries = nil
	}
	if len(p.parked) > 0 {
		n := 0
		for _, entries := range p.parked {
			n += len(entries)
		}
		p.err = multierr.Append(p.err, fmt.Errorf("%w: %d commands on %d placeholders", ErrUnresolvedPlaceholder, n, len(p.parked)))
	}
	if cb.bus != nil {
		event.EmitAll(cb.bus, p.instantiated)
		event.EmitAll(cb.bus, p.destroyed)
	}
	cb.stats = p.stats
	return p.err
}

type playback struct {
	cb       *CommandBuffer
	store    *ecs.Store
	resolved map[ecs.Entity]ecs.Entity
	parked   map[ecs.Entity][]entry
	stats    Stats
	err      error

	instantiated []event.EntityInstantiated
	destroyed    []event.EntityDestroyed
}

func (p *playback) resolve(e ecs.Entity) (ecs.Entity, bool) {
	if !e.IsPlaceholder() {
		return e, true
	}
	r, ok := p.resolved[e]
	return r, ok
}

func (p *playback) park(on ecs.Entity, en entry) {
	if p.parked == nil {
		p.parked = make(map[ecs.Entity][]entry)
	}
	p.parked[on] = append(p.parked[on], en)
}

func (p *playback) run(en entry) {
	other, ok := p.resolve(en.other)
	if !ok {
		p.park(en.other, en)
		return
	}
	if en.kind == KindInstantiate {
		p.instantiate(en.target, other)
		return
	}
	target, ok := p.resolve(en.target)
	if !ok {
		p.park(en.target, en)
		return
	}
	p.stats.Commands++
	if err := en.apply(p.store, target, other); err != nil {
		if errors.Is(err, ecs.ErrStaleEntity) {
			p.stats.Skipped++
			return
		}
		p.err = multierr.Append(p.err, fmt.Errorf("%s %s: %w", en.kind, target, err))
		return
	}
	if en.kind == KindDestroy || en.kind == KindDestroyWithChildren {
		p.stats.Destroyed++
		p.destroyed = append(p.destroyed, event.EntityDestroyed{Entity: target})
	}
}

func (p *playback) instantiate(placeholder, prefab ecs.Entity) {
	p.stats.Commands++
	e, err := p.store.Instantiate(prefab)
	switch {
	case errors.Is(err, ecs.ErrStaleEntity):
		p.stats.Skipped++
	case err != nil:
		p.err = multierr.Append(p.err, fmt.Errorf("%s %s: %w", KindInstantiate, prefab, err))
	default:
		p.stats.Instantiated++
		p.instantiated = append(p.instantiated, event.EntityInstantiated{Prefab: prefab, Entity: e})
	}
	// A failed instantiate resolves to Null so dependent commands are skipped.
	p.resolved[placeholder] = e
	waiting := p.parked[placeholder]
	if len(waiting) == 0 {
		return
	}
	delete(p.parked, placeholder)
	for _, en := range waiting {
		p.run(en)
	}
}
