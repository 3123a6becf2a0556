package job

import "go.uber.org/multierr"

type state struct {
	done chan struct{}
	err  error
}

// Handle is a completion token for scheduled work. The zero Handle is already
// complete. Handles are safe to share between goroutines.
type Handle struct {
	s *state
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func newHandle() (Handle, func(error)) {
	st := &state{done: make(chan struct{})}
	return Handle{s: st}, func(err error) {
		st.err = err
		close(st.done)
	}
}

// Failed returns an already completed handle carrying err.
func Failed(err error) Handle {
	if err == nil {
		return Handle{}
	}
	return Handle{s: &state{done: closedCh, err: err}}
}

func (h Handle) IsCompleted() bool {
	if h.s == nil {
		return true
	}
	select {
	case <-h.s.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed once the work behind h has finished.
func (h Handle) Done() <-chan struct{} {
	if h.s == nil {
		return closedCh
	}
	return h.s.done
}

// Complete blocks until h has finished and returns its error.
func (h Handle) Complete() error {
	if h.s == nil {
		return nil
	}
	<-h.s.done
	return h.s.err
}

// Combine returns a handle that completes once every input has completed.
// Its error is the union of the inputs' errors.
func Combine(handles ...Handle) Handle {
	var (
		pending []Handle
		errs    error
	)
	for _, h := range handles {
		if h.s == nil {
			continue
		}
		if h.IsCompleted() {
			errs = multierr.Append(errs, h.s.err)
			continue
		}
		pending = append(pending, h)
	}
	switch {
	case len(pending) == 0:
		return Failed(errs)
	case len(pending) == 1 && errs == nil:
		return pending[0]
	}
	out, finish := newHandle()
	go func() {
		err := errs
		for _, h := range pending {
			err = multierr.Append(err, h.Complete())
		}
		finish(err)
	}()
	return out
}
