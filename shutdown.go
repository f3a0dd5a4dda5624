package closable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	ossignal "os/signal"
	"sort"
	"sync"
	"time"

	"github.com/krus210/closable/signal"
)

// component represents a single registered closable.
type component struct {
	name     string
	closable Closable
	config   componentConfig
}

// Manager orchestrates graceful shutdown of all registered components.
//
// Components are closed in priority order: lower priority numbers close
// first. Components with the same priority close in parallel, via [All];
// the priority groups themselves are chained with [Sequence], so a failing
// group never prevents later groups from closing. If no priority is set,
// components close in registration order.
//
// Manager is safe for concurrent use.
type Manager struct {
	cfg        managerConfig
	mu         sync.Mutex
	components []component
	nextPrio   int
	once       sync.Once
	done       chan struct{}
	err        error
}

// New creates a new shutdown [Manager] with the given options.
func New(opts ...Option) *Manager {
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager{
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Register adds a component to the shutdown manager.
// Components are closed in registration order by default,
// or by explicit priority (lower number = closes first).
//
// Register returns the Manager to allow method chaining.
//
// Register panics if c is nil.
func (m *Manager) Register(name string, c Closable, opts ...ComponentOption) *Manager {
	if c == nil {
		panic("closable: closable must not be nil")
	}

	var cc componentConfig
	for _, opt := range opts {
		opt(&cc)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !cc.explicit {
		cc.priority = m.nextPrio
	}
	m.nextPrio++

	m.components = append(m.components, component{
		name:     name,
		closable: c,
		config:   cc,
	})

	return m
}

// RegisterFunc is a convenience method that registers a deadline-accepting
// close function. It wraps fn with [Make] and delegates to [Manager.Register].
func (m *Manager) RegisterFunc(name string, fn func(deadline time.Time) *signal.Signal, opts ...ComponentOption) *Manager {
	return m.Register(name, Make(fn), opts...)
}

// RegisterContext registers a context-based close function, the common Go
// shutdown signature. It wraps fn with [FromContext] and delegates to
// [Manager.Register].
func (m *Manager) RegisterContext(name string, fn func(ctx context.Context) error, opts ...ComponentOption) *Manager {
	return m.Register(name, FromContext(fn), opts...)
}

// Listen blocks until an OS signal is received (SIGINT and SIGTERM by default),
// then initiates graceful shutdown. A second signal forces immediate exit via [os.Exit](1).
//
// Listen also triggers shutdown if the provided context is cancelled.
//
// Returns an aggregated error if any component failed to close.
func (m *Manager) Listen(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, m.cfg.signals...)
	defer ossignal.Stop(sigChan)

	m.cfg.logger.Info("shutdown listener started",
		slog.Any("signals", m.cfg.signals),
	)

	select {
	case sig := <-sigChan:
		m.cfg.logger.Info("received signal, initiating shutdown",
			slog.String("signal", sig.String()),
		)

		// Second signal forces immediate exit.
		go func() {
			<-sigChan
			m.cfg.logger.Error("received second signal, forcing exit")
			os.Exit(1)
		}()

		return m.Shutdown()

	case <-ctx.Done():
		m.cfg.logger.Info("context cancelled, initiating shutdown")
		return m.Shutdown()
	}
}

// Shutdown initiates graceful shutdown of all registered components.
// Components are closed according to their priority: lower priority numbers
// first. Components with the same priority are closed in parallel. Every
// component is closed exactly once regardless of earlier failures.
//
// Shutdown is idempotent — calling it multiple times is safe.
// Subsequent calls block until the first invocation completes and return the same error.
func (m *Manager) Shutdown() error {
	m.once.Do(func() {
		m.err = m.doShutdown()
		close(m.done)
	})

	<-m.done
	return m.err
}

func (m *Manager) doShutdown() error {
	start := time.Now()

	m.cfg.logger.Info("shutdown started",
		slog.Duration("timeout", m.cfg.timeout),
	)

	deadline := m.cfg.clock.Now().Add(m.cfg.timeout)

	// Snapshot components under lock.
	m.mu.Lock()
	components := make([]component, len(m.components))
	copy(components, m.components)
	m.mu.Unlock()

	var (
		errMu sync.Mutex
		errs  []error
	)
	record := func(err error) {
		errMu.Lock()
		errs = append(errs, err)
		errMu.Unlock()
	}

	// Each priority group closes in parallel; the groups close in order.
	groups := groupByPriority(components)
	stages := make([]Closable, len(groups))
	for i, group := range groups {
		members := make([]Closable, len(group))
		for j, comp := range group {
			members[j] = m.instrument(comp, record)
		}
		stages[i] = All(members...)
	}

	agg := Sequence(stages...).Close(deadline)

	if err := agg.Wait(m.cfg.timeout); errors.Is(err, signal.ErrWaitTimeout) {
		m.cfg.logger.Error("global timeout exceeded before all components closed")
		record(fmt.Errorf("%w after %v", ErrDeadlineExceeded, m.cfg.timeout))
	}

	errMu.Lock()
	result := joinErrors(errs...)
	errMu.Unlock()

	if result != nil {
		m.cfg.logger.Error("shutdown completed with errors",
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", result.Error()),
		)
	} else {
		m.cfg.logger.Info("shutdown completed successfully",
			slog.Duration("elapsed", time.Since(start)),
		)
	}

	return result
}

// instrument wraps a component's closable with logging, error recording and
// the component deadline override.
func (m *Manager) instrument(comp component, record func(error)) Closable {
	return CloseFunc(func(deadline time.Time) *signal.Signal {
		if comp.config.timeout > 0 {
			if d := m.cfg.clock.Now().Add(comp.config.timeout); d.Before(deadline) {
				deadline = d
			}
		}

		start := time.Now()
		m.cfg.logger.Info("closing component",
			slog.String("name", comp.name),
			slog.Int("priority", comp.config.priority),
		)

		s := invoke(comp.closable, deadline)
		s.OnSettled(func(err error) {
			elapsed := time.Since(start)
			if err != nil {
				m.cfg.logger.Error("component close failed",
					slog.String("name", comp.name),
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()),
				)
				if m.cfg.onError != nil {
					m.cfg.onError(comp.name, err)
				}
				record(err)
			} else {
				m.cfg.logger.Info("component closed",
					slog.String("name", comp.name),
					slog.Duration("elapsed", elapsed),
				)
			}
		})
		return s
	})
}

// groupByPriority sorts components by priority (stable) and groups them.
// Returns a slice of groups ordered by ascending priority.
func groupByPriority(components []component) [][]component {
	if len(components) == 0 {
		return nil
	}

	sort.SliceStable(components, func(i, j int) bool {
		return components[i].config.priority < components[j].config.priority
	})

	var groups [][]component
	currentPrio := components[0].config.priority
	currentGroup := []component{components[0]}

	for i := 1; i < len(components); i++ {
		if components[i].config.priority == currentPrio {
			currentGroup = append(currentGroup, components[i])
		} else {
			groups = append(groups, currentGroup)
			currentPrio = components[i].config.priority
			currentGroup = []component{components[i]}
		}
	}
	groups = append(groups, currentGroup)

	return groups
}
