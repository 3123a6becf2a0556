package job

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

func newTestScheduler(t *testing.T, workers int) *Scheduler {
	t.Helper()
	s := NewScheduler(workers, zaptest.NewLogger(t))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestZeroHandleIsComplete(t *testing.T) {
	var h Handle
	if !h.IsCompleted() {
		t.Fatalf("zero handle must be complete")
	}
	if err := h.Complete(); err != nil {
		t.Fatalf("zero handle has no error, got %v", err)
	}
	if !Combine().IsCompleted() || !Combine(Handle{}, Handle{}).IsCompleted() {
		t.Fatalf("combining completed handles yields a completed handle")
	}
}

func TestCombineWaitsForAll(t *testing.T) {
	h1, finish1 := newHandle()
	h2, finish2 := newHandle()
	c := Combine(h1, h2, Handle{})
	if c.IsCompleted() {
		t.Fatalf("combined handle completed early")
	}
	finish1(nil)
	if c.IsCompleted() {
		// h2 still pending; the goroutine cannot have finished.
		t.Fatalf("combined handle completed before its last input")
	}
	errBoom := errors.New("boom")
	finish2(errBoom)
	if err := c.Complete(); !errors.Is(err, errBoom) {
		t.Fatalf("expected input error to propagate, got %v", err)
	}
}

func TestScheduleRespectsDependency(t *testing.T) {
	s := newTestScheduler(t, 4)
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) func() error {
		return func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}
	gate, open := newHandle()
	first := s.Schedule("first", gate, record("first"))
	second := s.Schedule("second", first, record("second"))
	third := s.Schedule("third", Combine(first, second), record("third"))
	open(nil)
	if err := third.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if strings.Join(order, ",") != "first,second,third" {
		t.Fatalf("unexpected order %v", order)
	}
	if err := s.CompleteAll(); err != nil {
		t.Fatalf("CompleteAll: %v", err)
	}
}

func TestScheduleParallelCoversEveryIndex(t *testing.T) {
	cases := []struct {
		name     string
		n, batch int
	}{
		{"empty", 0, 4},
		{"single", 1, 4},
		{"uneven", 103, 8},
		{"batch_of_one", 17, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := newTestScheduler(t, 3)
			hits := make([]atomic.Int32, c.n)
			h := s.ScheduleParallel("cover", Handle{}, c.n, c.batch, func(i int) error {
				hits[i].Add(1)
				return nil
			})
			if err := h.Complete(); err != nil {
				t.Fatalf("Complete: %v", err)
			}
			for i := range hits {
				if got := hits[i].Load(); got != 1 {
					t.Fatalf("index %d ran %d times", i, got)
				}
			}
		})
	}
}

func TestCompleteAllCombinesErrors(t *testing.T) {
	s := newTestScheduler(t, 2)
	s.Schedule("ok", Handle{}, func() error { return nil })
	s.Schedule("bad1", Handle{}, func() error { return errors.New("first failure") })
	s.ScheduleParallel("bad2", Handle{}, 4, 1, func(i int) error {
		if i == 2 {
			return errors.New("second failure")
		}
		return nil
	})
	err := s.CompleteAll()
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 errors, got %d (%v)", got, err)
	}
	if err := s.CompleteAll(); err != nil {
		t.Fatalf("second CompleteAll should see no pending work, got %v", err)
	}
}

func TestPanicBecomesError(t *testing.T) {
	s := newTestScheduler(t, 1)
	h := s.Schedule("explodes", Handle{}, func() error { panic("kaboom") })
	err := h.Complete()
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("expected panic to surface as error, got %v", err)
	}
	after := s.Schedule("after", Handle{}, func() error { return nil })
	if err := after.Complete(); err != nil {
		t.Fatalf("worker should survive a panic, got %v", err)
	}
	s.CompleteAll()
}

func TestRunIsInline(t *testing.T) {
	s := newTestScheduler(t, 1)
	ran := false
	h := s.Run("inline", Handle{}, func() error {
		ran = true
		return nil
	})
	if !ran || !h.IsCompleted() {
		t.Fatalf("Run must execute before returning")
	}
}

func TestScheduleAfterClose(t *testing.T) {
	s := NewScheduler(1, zaptest.NewLogger(t))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	h := s.Schedule("late", Handle{}, func() error { return nil })
	if err := h.Complete(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestScheduleRacingClose(t *testing.T) {
	s := NewScheduler(2, zaptest.NewLogger(t))
	var (
		wg      sync.WaitGroup
		handles = make([]Handle, 64)
	)
	for i := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				handles[i] = s.Schedule("racer", Handle{}, func() error { return nil })
				return
			}
			handles[i] = s.ScheduleParallel("racer", Handle{}, 4, 2, func(int) error { return nil })
		}()
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()
	for i, h := range handles {
		if err := h.Complete(); err != nil && !errors.Is(err, ErrClosed) {
			t.Fatalf("handle %d: unexpected error %v", i, err)
		}
	}
}
