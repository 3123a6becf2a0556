package job

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is carried by handles of work scheduled after Close.
var ErrClosed = errors.New("job: scheduler closed")

// Scheduler runs jobs on a fixed pool of worker goroutines. Jobs must not
// block on other handles; ordering is expressed through the dependency
// handle passed at schedule time.
type Scheduler struct {
	log     *zap.Logger
	workers int
	queue   chan func()
	group   errgroup.Group

	mu      sync.Mutex
	closed  bool
	pending []Handle
}

// NewScheduler starts workers goroutines. workers <= 0 uses GOMAXPROCS.
func NewScheduler(workers int, log *zap.Logger) *Scheduler {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		log:     log,
		workers: workers,
		queue:   make(chan func(), workers*64),
	}
	for i := 0; i < workers; i++ {
		s.group.Go(s.work)
	}
	log.Debug("job scheduler started", zap.Int("workers", workers))
	return s
}

func (s *Scheduler) Workers() int { return s.workers }

func (s *Scheduler) work() error {
	for fn := range s.queue {
		fn()
	}
	return nil
}

// invoke runs fn and turns a panic into an error so one bad job cannot take
// a worker down.
func (s *Scheduler) invoke(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
			s.log.Error("job panicked", zap.String("job", name), zap.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	return nil
}

// after runs start once dep has completed, inline when it already has.
func (s *Scheduler) after(dep Handle, start func()) {
	if dep.IsCompleted() {
		start()
		return
	}
	go func() {
		<-dep.Done()
		start()
	}()
}

func (s *Scheduler) track(h Handle) {
	s.mu.Lock()
	s.pending = append(s.pending, h)
	s.mu.Unlock()
}

// admit tracks h unless the scheduler is closed. Close waits for every
// admitted handle before it closes the queue.
func (s *Scheduler) admit(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.pending = append(s.pending, h)
	return true
}

// Schedule runs fn on a worker after dep completes.
func (s *Scheduler) Schedule(name string, dep Handle, fn func() error) Handle {
	h, finish := newHandle()
	if !s.admit(h) {
		return Failed(ErrClosed)
	}
	s.after(dep, func() {
		s.queue <- func() { finish(s.invoke(name, fn)) }
	})
	return h
}

// ScheduleParallel runs fn(i) for every i in [0, n) after dep completes.
// Indices are split into batches of size batch that run concurrently with no
// ordering between them. Errors from all batches are combined.
func (s *Scheduler) ScheduleParallel(name string, dep Handle, n, batch int, fn func(i int) error) Handle {
	if n <= 0 {
		return s.Schedule(name, dep, func() error { return nil })
	}
	if batch <= 0 {
		batch = 1
	}
	batches := (n + batch - 1) / batch
	h, finish := newHandle()
	if !s.admit(h) {
		return Failed(ErrClosed)
	}

	var (
		remaining atomic.Int64
		mu        sync.Mutex
		errs      error
	)
	remaining.Store(int64(batches))
	s.after(dep, func() {
		for b := 0; b < batches; b++ {
			lo, hi := b*batch, min((b+1)*batch, n)
			s.queue <- func() {
				err := s.invoke(name, func() error {
					for i := lo; i < hi; i++ {
						if err := fn(i); err != nil {
							return err
						}
					}
					return nil
				})
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
				if remaining.Add(-1) == 0 {
					mu.Lock()
					final := errs
					mu.Unlock()
					finish(final)
				}
			}
		}
	})
	return h
}

// Run completes dep and runs fn on the calling goroutine. Its error is
// reported by CompleteAll like any other job's.
func (s *Scheduler) Run(name string, dep Handle, fn func() error) Handle {
	if err := dep.Complete(); err != nil {
		s.log.Debug("running after failed dependency", zap.String("job", name), zap.Error(err))
	}
	h := Failed(s.invoke(name, fn))
	s.track(h)
	return h
}

// CompleteAll waits for every job scheduled since the previous call and
// returns their combined errors.
func (s *Scheduler) CompleteAll() error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	var err error
	for _, h := range pending {
		err = multierr.Append(err, h.Complete())
	}
	return err
}

// Close waits for outstanding work and stops the workers.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	err := s.CompleteAll()
	close(s.queue)
	return multierr.Append(err, s.group.Wait())
}
