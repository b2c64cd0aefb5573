package services

import (
	"context"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a service.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateTerminated
	StateFailed
)

// String makes State satisfy the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateTerminated:
		return "Terminated"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the state is final. A service in a terminal
// state never transitions again.
func (s State) Terminal() bool {
	return s == StateTerminated || s == StateFailed
}

// RunFunc is the run behavior a module contributes. It must block until
// ctx is canceled (returning nil or ctx.Err()) or until an unrecoverable
// internal fault occurs (returning a descriptive error).
type RunFunc func(ctx context.Context) error

// stateChangeCallback is invoked for every service transition, while the
// service lock is still held, so an observer sees transitions of one
// service in the exact order they happened. It returns the notification
// work to run after the lock is released (nil for none); deferring that
// work keeps observer callbacks free to call back into the service.
type stateChangeCallback func(svc *Service, oldState, newState State) func()

// Service is the runtime unit produced for a module. Its state is mutated
// only by the Manager that owns it and by its own run goroutine; everyone
// else observes it through State and FailureCause.
type Service struct {
	name string
	run  RunFunc

	mu       sync.Mutex
	state    State
	failure  error
	onChange stateChangeCallback
}

// NewService wraps a run function into a Service in the Idle state.
func NewService(name string, run RunFunc) *Service {
	return &Service{
		name:  name,
		run:   run,
		state: StateIdle,
	}
}

// Name returns the service name.
func (s *Service) Name() string {
	return s.name
}

// State returns the current lifecycle state. Safe for concurrent use.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FailureCause returns the error that moved the service to StateFailed,
// or nil if the service has not failed.
func (s *Service) FailureCause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// setStateChangeCallback installs the manager's transition observer.
// Must be called before the service is started.
func (s *Service) setStateChangeCallback(cb stateChangeCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = cb
}

// transition moves the service to newState and notifies the observer.
// Transitions out of a terminal state are ignored, as is Running when the
// service is no longer Starting (a stop may have raced in between). The
// observer is called under the lock; the notification work it returns
// runs after the lock is released.
func (s *Service) transition(newState State, cause error) {
	s.mu.Lock()
	oldState := s.state
	if oldState.Terminal() || (newState == StateRunning && oldState != StateStarting) {
		s.mu.Unlock()
		return
	}
	s.state = newState
	if newState == StateFailed {
		s.failure = cause
	}
	var notify func()
	if s.onChange != nil && oldState != newState {
		notify = s.onChange(s, oldState, newState)
	}
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// markStopping transitions a Starting or Running service to Stopping.
func (s *Service) markStopping() {
	s.mu.Lock()
	if s.state != StateStarting && s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	oldState := s.state
	s.state = StateStopping
	var notify func()
	if s.onChange != nil {
		notify = s.onChange(s, oldState, StateStopping)
	}
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// invokeRun executes the service's run function, converting a panic into
// an error so a misbehaving module cannot crash the process.
func (s *Service) invokeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("service %s panicked: %v", s.name, r)
		}
	}()
	return s.run(ctx)
}
