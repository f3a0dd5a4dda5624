package closable

import "errors"

// ErrDeadlineExceeded is reported by [Manager.Shutdown] when the global
// timeout elapses before every component's close has settled.
var ErrDeadlineExceeded = errors.New("closable: shutdown deadline exceeded")

// joinErrors aggregates multiple errors into one using [errors.Join].
// Nil errors are filtered out. Returns nil if no non-nil errors remain.
func joinErrors(errs ...error) error {
	return errors.Join(errs...)
}
