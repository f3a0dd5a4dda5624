// Package signal provides a single-assignment completion cell for reporting
// the outcome of an asynchronous operation.
//
// A [Signal] starts pending and settles exactly once, either successfully or
// with an error. Consumers can poll its state, block on it with a timeout,
// or attach continuations that run once it settles.
package signal

import (
	"errors"
	"sync"
	"time"
)

// ErrWaitTimeout is returned by [Signal.Wait] when the timeout elapses before
// the signal settles.
var ErrWaitTimeout = errors.New("signal: wait timed out")

// State describes the settlement state of a [Signal].
type State int

const (
	// StatePending means the signal has not settled yet.
	StatePending State = iota
	// StateSucceeded means the signal settled without error.
	StateSucceeded
	// StateFailed means the signal settled with an error.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Signal is a single-assignment completion cell.
//
// The zero value is not usable; create signals with [New], [Succeeded]
// or [Failed]. Signal is safe for concurrent use.
type Signal struct {
	mu        sync.Mutex
	state     State
	err       error
	done      chan struct{}
	callbacks []func(error)
}

// New returns a pending signal that settles later via [Signal.Succeed]
// or [Signal.Fail].
func New() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Succeeded returns a signal that is already settled successfully.
func Succeeded() *Signal {
	s := &Signal{state: StateSucceeded, done: make(chan struct{})}
	close(s.done)
	return s
}

// Failed returns a signal that is already settled with err.
// Failed panics if err is nil.
func Failed(err error) *Signal {
	if err == nil {
		panic("signal: failure requires a non-nil error")
	}
	s := &Signal{state: StateFailed, err: err, done: make(chan struct{})}
	close(s.done)
	return s
}

// Succeed settles the signal successfully.
// It panics if the signal has already settled.
func (s *Signal) Succeed() {
	s.settle(nil)
}

// Fail settles the signal with err.
// It panics if err is nil or if the signal has already settled.
func (s *Signal) Fail(err error) {
	if err == nil {
		panic("signal: failure requires a non-nil error")
	}
	s.settle(err)
}

func (s *Signal) settle(err error) {
	s.mu.Lock()
	if s.state != StatePending {
		s.mu.Unlock()
		panic("signal: already settled")
	}
	if err != nil {
		s.state = StateFailed
		s.err = err
	} else {
		s.state = StateSucceeded
	}
	callbacks := s.callbacks
	s.callbacks = nil
	close(s.done)
	s.mu.Unlock()

	// Continuations run outside the lock, in the settling goroutine,
	// in attachment order.
	for _, fn := range callbacks {
		fn(err)
	}
}

// OnSettled registers fn to run exactly once, after the signal settles.
// fn receives nil on success or the settlement error on failure.
// If the signal has already settled, fn runs immediately in the calling
// goroutine; otherwise it runs in the goroutine that settles the signal.
func (s *Signal) OnSettled(fn func(err error)) {
	s.mu.Lock()
	if s.state == StatePending {
		s.callbacks = append(s.callbacks, fn)
		s.mu.Unlock()
		return
	}
	err := s.err
	s.mu.Unlock()
	fn(err)
}

// State reports the current settlement state without blocking.
func (s *Signal) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the settlement error. It is nil while the signal is pending
// and after a successful settlement.
func (s *Signal) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done returns a channel that is closed when the signal settles.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the signal settles or the timeout elapses.
// It returns the settlement error (nil on success), or [ErrWaitTimeout]
// if the timeout elapsed first. A timed-out Wait does not affect the
// signal; it may still settle later.
func (s *Signal) Wait(timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-s.done:
		return s.Err()
	case <-t.C:
		return ErrWaitTimeout
	}
}
