package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cogito-ai/cogito/pkg/complexity"
)

// SessionState tracks one request through its lifecycle. The pipeline
// stages move a session forward in order; the terminal states are
// completed, failed, and cancelled, and cancelled is reachable from any
// non-terminal state.
type SessionState string

const (
	StateCreated   SessionState = "created"
	StateAnalyzing SessionState = "analyzing"
	StateRouting   SessionState = "routing"
	StateBudgeted  SessionState = "budgeted"
	StateExecuting SessionState = "executing"
	StateCompleted SessionState = "completed"
	StateFailed    SessionState = "failed"
	StateCancelled SessionState = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s SessionState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// SessionInfo is a read-only snapshot of one in-flight request.
type SessionInfo struct {
	ID     string       `json:"id"`
	UserID string       `json:"user_id"`
	State  SessionState `json:"state"`

	// Strategy and Model are empty until routing has run.
	Strategy complexity.Strategy `json:"strategy,omitempty"`
	Model    string              `json:"model,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// activeSession is the orchestrator's live handle on one request: its
// lifecycle state plus the cancel function that aborts it. State moves
// only forward; once terminal it never changes again, so a cancellation
// that races the pipeline's own conclusion keeps whichever verdict
// landed first.
type activeSession struct {
	id        string
	userID    string
	createdAt time.Time
	cancel    context.CancelFunc
	log       *slog.Logger

	mu       sync.Mutex
	state    SessionState
	strategy complexity.Strategy
	model    string
}

func newActiveSession(id, userID string, cancel context.CancelFunc, log *slog.Logger) *activeSession {
	return &activeSession{
		id:        id,
		userID:    userID,
		createdAt: time.Now(),
		cancel:    cancel,
		log:       log,
		state:     StateCreated,
	}
}

// transition advances the lifecycle state. Transitions out of a terminal
// state are ignored.
func (s *activeSession) transition(to SessionState) {
	s.mu.Lock()
	from := s.state
	if from.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()

	s.log.Debug("session state changed", "session_id", s.id, "from", from, "to", to)
}

// setRoute records the routing outcome on the session.
func (s *activeSession) setRoute(strategy complexity.Strategy, model string) {
	s.mu.Lock()
	s.strategy = strategy
	s.model = model
	s.mu.Unlock()
}

// abort cancels the session's context and marks it cancelled.
func (s *activeSession) abort() {
	s.transition(StateCancelled)
	s.cancel()
}

func (s *activeSession) snapshot() *SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &SessionInfo{
		ID:        s.id,
		UserID:    s.userID,
		State:     s.state,
		Strategy:  s.strategy,
		Model:     s.model,
		CreatedAt: s.createdAt,
	}
}

func (s *activeSession) currentStrategy() complexity.Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.strategy
}
