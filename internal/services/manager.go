package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"conduct/pkg/logging"
)

// Listener receives aggregate lifecycle events from a Manager. Exactly one
// listener is attached per run, before StartAll.
type Listener interface {
	// Healthy is called once, the first time every service in the set
	// simultaneously holds StateRunning.
	Healthy()

	// Stopped is called once, when every service has reached a terminal
	// state.
	Stopped()

	// Failure is called for each service that transitions to StateFailed,
	// synchronously in the goroutine that observed the failure and without
	// any cross-service lock held.
	Failure(svc *Service)
}

// Manager owns a fixed set of services and drives them through their
// lifecycle concurrently. It enforces no start ordering between services:
// all run loops launch concurrently, and any ordering a service needs it
// must arrange itself through its dependency's own readiness signals.
type Manager struct {
	services []*Service
	byName   map[string]*Service

	mu            sync.Mutex
	listener      Listener
	started       bool
	stopRequested bool
	cancel        context.CancelFunc
	runningCount  int
	terminalCount int
	healthyFired  bool
	stoppedFired  bool
	stoppedCh     chan struct{}
}

// NewManager builds a Manager over the given services. All services must
// be Idle and have unique, non-empty names.
func NewManager(svcs ...*Service) (*Manager, error) {
	if len(svcs) == 0 {
		return nil, errors.New("no services provided")
	}

	m := &Manager{
		services:  svcs,
		byName:    make(map[string]*Service, len(svcs)),
		stoppedCh: make(chan struct{}),
	}

	for _, svc := range svcs {
		if svc == nil {
			return nil, errors.New("nil service provided")
		}
		if svc.Name() == "" {
			return nil, errors.New("service has empty name")
		}
		if _, exists := m.byName[svc.Name()]; exists {
			return nil, fmt.Errorf("duplicate service %s", svc.Name())
		}
		if state := svc.State(); state != StateIdle {
			return nil, fmt.Errorf("service %s is %s, expected %s", svc.Name(), state, StateIdle)
		}
		m.byName[svc.Name()] = svc
		svc.setStateChangeCallback(m.serviceStateChanged)
	}

	return m, nil
}

// AddListener attaches the lifecycle listener. Must be called before
// StartAll.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// StartAll launches one goroutine per service and returns as soon as all
// of them have been launched. It does not wait for any service to reach
// StateRunning; despite the name, the call itself never blocks. A single
// cancellation context derived from ctx is shared by every run loop and
// is the sole stop signal they receive.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("services already started")
	}
	m.started = true
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	stopRequested := m.stopRequested
	m.mu.Unlock()

	// A stop that raced in before the start wins: services still launch,
	// observe the canceled context and terminate immediately.
	if stopRequested {
		cancel()
	}

	for _, svc := range m.services {
		go m.runService(runCtx, svc)
	}
	return nil
}

// StopAll broadcasts a stop signal to every service that is not already
// terminal. It is idempotent and non-blocking; use AwaitAllStopped to wait
// for the services to actually stop.
func (m *Manager) StopAll() {
	m.mu.Lock()
	m.stopRequested = true
	cancel := m.cancel
	m.mu.Unlock()

	for _, svc := range m.services {
		svc.markStopping()
	}
	if cancel != nil {
		cancel()
	}
}

// AwaitAllStopped blocks until every service has reached a terminal state,
// or until ctx is canceled. A ctx error means "shutdown did not complete
// in time": the services keep running in the background and will still be
// stopped by the already-broadcast signal.
func (m *Manager) AwaitAllStopped(ctx context.Context) error {
	select {
	case <-m.stoppedCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to stop all services: %w", ctx.Err())
	}
}

// ServicesInState returns a snapshot of the services currently in the
// given state. Safe for concurrent use; the snapshot may be stale by the
// time the caller inspects it unless all services are already terminal.
func (m *Manager) ServicesInState(state State) []*Service {
	var result []*Service
	for _, svc := range m.services {
		if svc.State() == state {
			result = append(result, svc)
		}
	}
	return result
}

// runService drives a single service through its lifecycle. The run
// function's return value classifies the terminal state: nil or the run
// context's own error counts as a clean stop, everything else is a
// failure. Both cancellation errors are clean because the shared run
// context may carry a deadline from the caller, and a service returning
// ctx.Err() did exactly what it was told.
func (m *Manager) runService(ctx context.Context, svc *Service) {
	svc.transition(StateStarting, nil)
	svc.transition(StateRunning, nil)

	logging.Debug("Services", "Service %s running", svc.Name())
	err := svc.invokeRun(ctx)

	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		svc.transition(StateTerminated, nil)
		return
	}
	svc.transition(StateFailed, err)
}

// serviceStateChanged maintains the aggregate counters and decides which
// listener callbacks to fire. It runs under the service's own lock (see
// stateChangeCallback), so one service's counter updates are applied in
// the order its transitions happened even when the transitions come from
// different goroutines; without that, a Stopping update overtaken by the
// same service's Terminated update could briefly overcount Running and
// report a healthy set that never was. The returned notification runs
// outside both locks, so a listener may call back into the manager (e.g.
// StopAll) freely. The stopped channel is closed before any callback
// fires, which lets a Failure callback wait for full shutdown without
// deadlocking when the failing service happens to be the last one
// standing.
func (m *Manager) serviceStateChanged(svc *Service, oldState, newState State) func() {
	m.mu.Lock()

	if oldState == StateRunning {
		m.runningCount--
	}
	if newState == StateRunning {
		m.runningCount++
	}
	if newState.Terminal() {
		m.terminalCount++
	}

	fireHealthy := false
	if m.runningCount == len(m.services) && !m.healthyFired {
		m.healthyFired = true
		fireHealthy = true
	}

	fireStopped := false
	if m.terminalCount == len(m.services) && !m.stoppedFired {
		m.stoppedFired = true
		fireStopped = true
		close(m.stoppedCh)
	}

	listener := m.listener
	m.mu.Unlock()

	if listener == nil || (!fireHealthy && !fireStopped && newState != StateFailed) {
		return nil
	}
	return func() {
		if fireHealthy {
			listener.Healthy()
		}
		if newState == StateFailed {
			listener.Failure(svc)
		}
		if fireStopped {
			listener.Stopped()
		}
	}
}
