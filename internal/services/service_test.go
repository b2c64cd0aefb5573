package services

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "Idle"},
		{StateStarting, "Starting"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{StateTerminated, "Terminated"},
		{StateFailed, "Failed"},
		{State(42), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %s, expected %s", tt.state, got, tt.expected)
		}
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{StateIdle, StateStarting, StateRunning, StateStopping} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []State{StateTerminated, StateFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestNewServiceStartsIdle(t *testing.T) {
	svc := NewService("test", func(ctx context.Context) error { return nil })
	if svc.Name() != "test" {
		t.Errorf("Name() = %s, expected test", svc.Name())
	}
	if svc.State() != StateIdle {
		t.Errorf("State() = %s, expected Idle", svc.State())
	}
	if svc.FailureCause() != nil {
		t.Errorf("FailureCause() = %v, expected nil", svc.FailureCause())
	}
}

func TestTransitionIgnoredAfterTerminal(t *testing.T) {
	svc := NewService("test", func(ctx context.Context) error { return nil })
	svc.transition(StateStarting, nil)
	svc.transition(StateRunning, nil)
	svc.transition(StateFailed, errors.New("boom"))

	svc.transition(StateRunning, nil)
	if svc.State() != StateFailed {
		t.Errorf("terminal state was overwritten: %s", svc.State())
	}

	svc.transition(StateTerminated, nil)
	if svc.State() != StateFailed {
		t.Errorf("terminal state was overwritten: %s", svc.State())
	}
}

func TestRunningRequiresStarting(t *testing.T) {
	// A stop can race in between launch and the Running transition; the
	// late Running transition must lose.
	svc := NewService("test", func(ctx context.Context) error { return nil })
	svc.transition(StateStarting, nil)
	svc.markStopping()
	svc.transition(StateRunning, nil)

	if svc.State() != StateStopping {
		t.Errorf("State() = %s, expected Stopping", svc.State())
	}
}

func TestMarkStoppingOnlyFromActiveStates(t *testing.T) {
	idle := NewService("idle", func(ctx context.Context) error { return nil })
	idle.markStopping()
	if idle.State() != StateIdle {
		t.Errorf("idle service moved to %s on markStopping", idle.State())
	}

	done := NewService("done", func(ctx context.Context) error { return nil })
	done.transition(StateStarting, nil)
	done.transition(StateRunning, nil)
	done.transition(StateTerminated, nil)
	done.markStopping()
	if done.State() != StateTerminated {
		t.Errorf("terminated service moved to %s on markStopping", done.State())
	}
}

func TestCallbackSeesTransitions(t *testing.T) {
	svc := NewService("test", func(ctx context.Context) error { return nil })

	type change struct{ old, new State }
	var changes []change
	svc.setStateChangeCallback(func(s *Service, oldState, newState State) func() {
		changes = append(changes, change{oldState, newState})
		return nil
	})

	svc.transition(StateStarting, nil)
	svc.transition(StateRunning, nil)
	svc.transition(StateTerminated, nil)

	expected := []change{
		{StateIdle, StateStarting},
		{StateStarting, StateRunning},
		{StateRunning, StateTerminated},
	}
	if len(changes) != len(expected) {
		t.Fatalf("got %d transitions, expected %d", len(changes), len(expected))
	}
	for i, c := range changes {
		if c != expected[i] {
			t.Errorf("transition %d = %v, expected %v", i, c, expected[i])
		}
	}
}

func TestCallbackOrderMatchesTransitionsUnderConcurrency(t *testing.T) {
	// A stop broadcast and the run goroutine's terminal transition race on
	// the same service. The observer must see the transitions in the order
	// the state actually changed, never Terminated before Stopping.
	type change struct{ old, new State }

	for i := 0; i < 200; i++ {
		svc := NewService("test", func(ctx context.Context) error { return nil })

		var mu sync.Mutex
		var changes []change
		svc.setStateChangeCallback(func(s *Service, oldState, newState State) func() {
			mu.Lock()
			changes = append(changes, change{oldState, newState})
			mu.Unlock()
			return nil
		})

		svc.transition(StateStarting, nil)
		svc.transition(StateRunning, nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			svc.markStopping()
		}()
		go func() {
			defer wg.Done()
			svc.transition(StateTerminated, nil)
		}()
		wg.Wait()

		mu.Lock()
		for i := 1; i < len(changes); i++ {
			if changes[i].old != changes[i-1].new {
				t.Fatalf("observer saw %v after %v; transitions were reordered",
					changes[i], changes[i-1])
			}
		}
		last := changes[len(changes)-1]
		mu.Unlock()
		if last.new != StateTerminated {
			t.Fatalf("final observed transition = %v, expected Terminated", last)
		}
	}
}
