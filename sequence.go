package closable

import (
	"time"

	"github.com/krus210/closable/signal"
)

// Sequence returns a [Closable] that closes its members strictly in order.
//
// Close triggers the first member before it returns. Each subsequent member
// is triggered only once the previous member's signal has settled, success
// or failure; a failing member never stops the chain, so every member is
// closed exactly once. The aggregate signal settles only after the last
// member has settled. If any member failed, the aggregate fails with the
// first (earliest-in-order) failure; otherwise it succeeds.
func Sequence(members ...Closable) Closable {
	return CloseFunc(func(deadline time.Time) *signal.Signal {
		agg := signal.New()

		// firstErr is written by at most one continuation at a time; the
		// settlement handoff between members orders the accesses.
		var firstErr error

		var next func(i int)
		next = func(i int) {
			if i == len(members) {
				if firstErr != nil {
					agg.Fail(firstErr)
				} else {
					agg.Succeed()
				}
				return
			}
			invoke(members[i], deadline).OnSettled(func(err error) {
				if err != nil && firstErr == nil {
					firstErr = err
				}
				next(i + 1)
			})
		}
		next(0)

		return agg
	})
}
