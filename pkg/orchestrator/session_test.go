package orchestrator

import (
	"testing"

	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/logger"
)

func TestSessionStateTerminal(t *testing.T) {
	terminal := map[SessionState]bool{
		StateCreated:   false,
		StateAnalyzing: false,
		StateRouting:   false,
		StateBudgeted:  false,
		StateExecuting: false,
		StateCompleted: true,
		StateFailed:    true,
		StateCancelled: true,
	}
	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", state, got, want)
		}
	}
}

func TestActiveSessionTerminalStateSticks(t *testing.T) {
	cancelled := false
	s := newActiveSession("sess-1", "user-1", func() { cancelled = true }, logger.For("test"))

	s.transition(StateAnalyzing)
	s.transition(StateRouting)
	s.setRoute(complexity.StrategyChainOfThought, "fast-model")

	s.abort()
	if !cancelled {
		t.Fatal("abort() did not cancel the context")
	}

	// A pipeline stage finishing after the abort must not resurrect the
	// session.
	s.transition(StateCompleted)
	s.transition(StateFailed)

	snap := s.snapshot()
	if snap.State != StateCancelled {
		t.Errorf("state = %v after post-abort transitions, want cancelled", snap.State)
	}
	if snap.Strategy != complexity.StrategyChainOfThought || snap.Model != "fast-model" {
		t.Errorf("snapshot route = %v/%q, want recorded route", snap.Strategy, snap.Model)
	}
	if snap.ID != "sess-1" || snap.UserID != "user-1" {
		t.Errorf("snapshot identity = %q/%q", snap.ID, snap.UserID)
	}
}
