package component

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/streampref/streampref/errors"
)

// Manager owns a set of components and drives their lifecycle in
// registration order, stopping in reverse.
type Manager struct {
	components []LifecycleComponent
	states     map[string]State
	logger     *slog.Logger
}

// NewManager creates an empty manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		states: map[string]State{},
		logger: logger.With("component", "manager"),
	}
}

// Register adds a component. Registration order is start order.
func (m *Manager) Register(c LifecycleComponent) {
	m.components = append(m.components, c)
	m.states[c.Name()] = StateCreated
}

// State returns the tracked lifecycle state of a named component
func (m *Manager) State(name string) State {
	return m.states[name]
}

// StartAll initializes and starts every component in order. On failure
// the already started components are stopped in reverse before the
// error is returned.
func (m *Manager) StartAll(ctx context.Context, stopTimeout time.Duration) error {
	started := []LifecycleComponent{}
	for _, c := range m.components {
		if err := c.Initialize(); err != nil {
			m.states[c.Name()] = StateFailed
			m.stopAll(started, stopTimeout)
			return errors.Wrap(err, "Manager", "StartAll", "initializing "+c.Name())
		}
		m.states[c.Name()] = StateInitialized

		if err := c.Start(ctx); err != nil {
			m.states[c.Name()] = StateFailed
			m.stopAll(started, stopTimeout)
			return errors.Wrap(err, "Manager", "StartAll", "starting "+c.Name())
		}
		m.states[c.Name()] = StateStarted
		m.logger.Info("component started", "name", c.Name())
		started = append(started, c)
	}
	return nil
}

// StopAll stops every started component in reverse order, collecting
// the failures
func (m *Manager) StopAll(timeout time.Duration) error {
	return m.stopAll(m.components, timeout)
}

func (m *Manager) stopAll(components []LifecycleComponent, timeout time.Duration) error {
	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if m.states[c.Name()] != StateStarted {
			continue
		}
		if err := c.Stop(timeout); err != nil {
			m.states[c.Name()] = StateFailed
			errs = append(errs, errors.Wrap(err, "Manager", "StopAll", "stopping "+c.Name()))
			continue
		}
		m.states[c.Name()] = StateStopped
		m.logger.Info("component stopped", "name", c.Name())
	}
	return stderrors.Join(errs...)
}
