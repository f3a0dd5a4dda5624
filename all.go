package closable

import (
	"sync/atomic"
	"time"

	"github.com/krus210/closable/signal"
)

// All returns a [Closable] that closes every member concurrently.
//
// Close triggers every member's Close before it returns, unconditionally:
// a member's failure never prevents the others from being triggered. The
// aggregate signal settles only once every member signal has settled. It
// succeeds if all members succeeded; otherwise it fails with the first
// failure in member order, matching [Sequence]'s precedence rule.
//
// All makes no ordering guarantee among member invocations beyond "all
// triggered before Close returns"; members settle in whatever order and on
// whatever goroutines their own close logic dictates.
func All(members ...Closable) Closable {
	return CloseFunc(func(deadline time.Time) *signal.Signal {
		if len(members) == 0 {
			return signal.Succeeded()
		}

		// Trigger every member before waiting on any of them.
		signals := make([]*signal.Signal, len(members))
		for i, m := range members {
			signals[i] = invoke(m, deadline)
		}

		agg := signal.New()
		var pending atomic.Int64
		pending.Store(int64(len(members)))

		for _, s := range signals {
			s.OnSettled(func(error) {
				if pending.Add(-1) != 0 {
					return
				}
				// Every member has settled; surface the first failure
				// in member order, if any.
				for _, ms := range signals {
					if err := ms.Err(); err != nil {
						agg.Fail(err)
						return
					}
				}
				agg.Succeed()
			})
		}
		return agg
	})
}
