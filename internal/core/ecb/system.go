package ecb

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kodebolds/froggies/internal/core/ecs"
	"github.com/kodebolds/froggies/internal/core/event"
	"github.com/kodebolds/froggies/internal/core/job"
)

// System is the end-of-frame sync point. Systems create command buffers from
// it during the frame and register the handles of the jobs that write them;
// Playback waits for those jobs and replays every buffer in creation order.
type System struct {
	store     *ecs.Store
	bus       *event.Bus
	log       *zap.Logger
	buffers   []*CommandBuffer
	producers []job.Handle
}

func NewSystem(store *ecs.Store, bus *event.Bus, log *zap.Logger) *System {
	if log == nil {
		log = zap.NewNop()
	}
	return &System{store: store, bus: bus, log: log}
}

// CreateCommandBuffer returns a buffer that is played back at the end of
// the current frame.
func (s *System) CreateCommandBuffer() *CommandBuffer {
	cb := New(s.store)
	cb.SetBus(s.bus)
	s.buffers = append(s.buffers, cb)
	return cb
}

// AddJobHandleForProducer makes playback wait for h.
func (s *System) AddJobHandleForProducer(h job.Handle) {
	s.producers = append(s.producers, h)
}

// Pending returns the number of buffers waiting for playback.
func (s *System) Pending() int { return len(s.buffers) }

// Playback waits for every producer and plays back all pending buffers. Job
// errors are reported by the scheduler, not here.
func (s *System) Playback() error {
	for _, h := range s.producers {
		<-h.Done()
	}
	var err error
	var total Stats
	for _, cb := range s.buffers {
		err = multierr.Append(err, cb.Playback(s.store))
		st := cb.Stats()
		total.Commands += st.Commands
		total.Instantiated += st.Instantiated
		total.Destroyed += st.Destroyed
		total.Skipped += st.Skipped
	}
	if len(s.buffers) > 0 {
		s.log.Debug("command buffers played back",
			zap.Int("buffers", len(s.buffers)),
			zap.Int("commands", total.Commands),
			zap.Int("instantiated", total.Instantiated),
			zap.Int("destroyed", total.Destroyed),
			zap.Int("skipped", total.Skipped),
		)
	}
	clear(s.buffers)
	s.buffers = s.buffers[:0]
	s.producers = s.producers[:0]
	return err
}
