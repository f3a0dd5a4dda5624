package closable

import (
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/krus210/closable/clock"
)

const (
	// defaultTimeout is the default global shutdown timeout.
	// Matches the default Kubernetes terminationGracePeriodSeconds.
	defaultTimeout = 30 * time.Second
)

var defaultSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// managerConfig holds resolved configuration for the [Manager].
type managerConfig struct {
	timeout time.Duration
	signals []os.Signal
	logger  *slog.Logger
	onError func(name string, err error)
	clock   clock.Clock
}

func defaultManagerConfig() managerConfig {
	return managerConfig{
		timeout: defaultTimeout,
		signals: defaultSignals,
		logger:  slog.Default(),
		clock:   clock.System{},
	}
}

// Option configures the [Manager].
type Option func(*managerConfig)

// WithTimeout sets the global shutdown timeout. The default is 30 seconds.
// [Manager.Shutdown] turns the timeout into an absolute deadline, passes the
// deadline to every component's close, and bounds its own wait with it.
func WithTimeout(d time.Duration) Option {
	return func(c *managerConfig) {
		c.timeout = d
	}
}

// WithSignals sets the OS signals that trigger graceful shutdown.
// The default signals are SIGINT and SIGTERM.
func WithSignals(signals ...os.Signal) Option {
	return func(c *managerConfig) {
		c.signals = signals
	}
}

// WithLogger sets a custom [*slog.Logger] for structured shutdown logging.
// The default is [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(c *managerConfig) {
		c.logger = logger
	}
}

// WithOnError sets a callback that is invoked when a component fails to close.
// The callback receives the component name and the error.
func WithOnError(fn func(name string, err error)) Option {
	return func(c *managerConfig) {
		c.onError = fn
	}
}

// WithClock sets the clock used for deadline arithmetic. The default is the
// system clock; tests use [clock.NewFake] to assert exact deadlines.
func WithClock(clk clock.Clock) Option {
	return func(c *managerConfig) {
		c.clock = clk
	}
}

// componentConfig holds resolved configuration for a single component.
type componentConfig struct {
	timeout  time.Duration // 0 means inherit the global deadline.
	priority int
	explicit bool // whether priority was explicitly set.
}

// ComponentOption configures a single registered component.
type ComponentOption func(*componentConfig)

// WithComponentTimeout tightens the deadline for this component. The
// component's close receives the earlier of the global deadline and
// now + d; a component timeout can never extend the global deadline.
func WithComponentTimeout(d time.Duration) ComponentOption {
	return func(c *componentConfig) {
		c.timeout = d
	}
}

// WithPriority sets the close priority for a component.
// Lower numbers close first. Components with the same priority close in
// parallel. The default priority is assigned based on registration order
// (first registered = lowest priority = closes first).
func WithPriority(p int) ComponentOption {
	return func(c *componentConfig) {
		c.priority = p
		c.explicit = true
	}
}
