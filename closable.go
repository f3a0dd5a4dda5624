// Package closable provides deadline-based combinators for releasing
// resources.
//
// A [Closable] is an immutable capability: asking it to close by a deadline
// yields a completion signal that settles once the underlying resource has
// been released (or has failed to release). Closables compose: [All] closes
// members concurrently and joins their outcomes, [Sequence] closes them one
// after another while tolerating failures along the way. Both combinators
// trigger their members eagerly, inside the call to Close itself.
//
// The [Manager] builds on the combinators to provide a graceful shutdown
// orchestrator in the style of signal-driven service teardown.
package closable

import (
	"context"
	"fmt"
	"time"

	"github.com/krus210/closable/clock"
	"github.com/krus210/closable/signal"
)

// Closable is the interface for anything that can release a resource.
//
// Close attempts to release the resource by the given deadline. The deadline
// is advisory: implementations should try to finish by it, but it is not a
// hard real-time bound, and the combinators in this package do not enforce
// it. Callers that need a bound wait on the returned signal with a timeout.
//
// Close must not block on the release itself; long-running work settles the
// returned signal asynchronously. Closables built with [Make], [FromContext]
// or the combinators never panic from Close.
type Closable interface {
	Close(deadline time.Time) *signal.Signal
}

// CloseFunc is an adapter that allows ordinary functions to be used as
// [Closable]. It follows the same pattern as [net/http.HandlerFunc].
type CloseFunc func(deadline time.Time) *signal.Signal

// Close calls f(deadline).
func (f CloseFunc) Close(deadline time.Time) *signal.Signal {
	return f(deadline)
}

// Nop is a Closable that has nothing to release: its Close ignores the
// deadline and returns an already-succeeded signal. Useful as a neutral
// member for the combinators.
var Nop Closable = CloseFunc(func(time.Time) *signal.Signal {
	return signal.Succeeded()
})

// Make wraps fn as a [Closable]. If fn panics, the panic is recovered and
// converted into an already-failed signal carrying the panic error, so Close
// never panics for the caller. Panic values that are not errors are wrapped.
func Make(fn func(deadline time.Time) *signal.Signal) Closable {
	return CloseFunc(func(deadline time.Time) *signal.Signal {
		return invoke(CloseFunc(fn), deadline)
	})
}

// FromContext adapts a context-based close function, the common Go shutdown
// signature (for example [net/http.Server.Shutdown]), into a [Closable].
// Close derives a context whose deadline is the close deadline, runs fn on
// its own goroutine, and settles the returned signal with fn's result.
func FromContext(fn func(ctx context.Context) error) Closable {
	return CloseFunc(func(deadline time.Time) *signal.Signal {
		s := signal.New()
		go func() {
			ctx, cancel := context.WithDeadline(context.Background(), deadline)
			defer cancel()
			if err := run(ctx, fn); err != nil {
				s.Fail(err)
			} else {
				s.Succeed()
			}
		}()
		return s
	})
}

// defaultClock is the clock used by CloseIn; tests swap in a frozen clock.
var defaultClock clock.Clock = clock.System{}

// CloseIn closes c with a deadline the given duration from now.
func CloseIn(c Closable, d time.Duration) *signal.Signal {
	return c.Close(defaultClock.Now().Add(d))
}

// invoke calls c.Close, converting a panic into an already-failed signal.
// Every member invocation inside the combinators goes through invoke, so a
// member that panics cannot prevent the remaining members from being closed.
func invoke(c Closable, deadline time.Time) (s *signal.Signal) {
	defer func() {
		if r := recover(); r != nil {
			s = signal.Failed(panicError(r))
		}
	}()
	s = c.Close(deadline)
	if s == nil {
		// A closable with nothing to wait for.
		s = signal.Succeeded()
	}
	return s
}

// run calls fn(ctx), converting a panic into an error.
func run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return fn(ctx)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("close panicked: %v", r)
}
