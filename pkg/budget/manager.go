package budget

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/llms"
	"github.com/cogito-ai/cogito/pkg/logger"
)

// ErrSessionNotFound is returned for operations on an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionClosed is returned when usage is recorded against a session
// that already reached a terminal status.
var ErrSessionClosed = errors.New("session closed")

// Per-step derivation: a session nominally spans about ten steps, and no
// single step may spend more than a quarter of the total.
const (
	perStepDivisor     = 10
	stepCeilingDivisor = 4
)

// Manager owns all budget sessions. All methods are safe for concurrent
// use; parallel agents record usage against the same session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rates    map[string]float64
	log      *slog.Logger
}

func NewManager(cfg config.BudgetConfig) *Manager {
	cfg.SetDefaults()
	return &Manager{
		sessions: make(map[string]*Session),
		rates:    cfg.TierRates,
		log:      logger.For("budget"),
	}
}

// CreateSession allocates a fresh thinking budget for a reasoning request.
// Session ids must be unique; no two requests share a session.
func (m *Manager) CreateSession(id, userID, tier string, maxBudget int) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if maxBudget < 0 {
		return nil, fmt.Errorf("max budget must be non-negative, got %d", maxBudget)
	}

	perStep := maxBudget / perStepDivisor
	if perStep < 1 {
		perStep = 1
	}
	ceiling := maxBudget / stepCeilingDivisor
	if ceiling < perStep {
		ceiling = perStep
	}

	s := &Session{
		ID:        id,
		UserID:    userID,
		Tier:      tier,
		CreatedAt: time.Now(),
		Status:    StatusActive,
		Steps:     make(map[string]llms.TokenUsage),
		Budget: ThinkingBudget{
			Total:       maxBudget,
			Remaining:   maxBudget,
			PerStep:     perStep,
			StepCeiling: ceiling,
		},
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("session %q already exists", id)
	}
	m.sessions[id] = s

	m.log.Debug("budget session created",
		"session", id, "user", userID, "tier", tier, "budget", maxBudget)
	return s.clone(), nil
}

// RecordUsage charges a step's token usage against the session. It is
// additive and safe to call concurrently from parallel agents. Remaining
// clamps at zero; the overshoot is still recorded in Used. Usage against
// a closed session is rejected with ErrSessionClosed and leaves the final
// snapshot untouched.
func (m *Manager) RecordUsage(id, stepLabel string, usage llms.TokenUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[id]
	if !exists {
		return fmt.Errorf("record usage for %q: %w", id, ErrSessionNotFound)
	}
	if s.Closed() {
		return fmt.Errorf("record usage for %q: %w", id, ErrSessionClosed)
	}

	charged := usage.TotalTokens
	if charged == 0 {
		charged = usage.PromptTokens + usage.CompletionTokens + usage.ThinkingTokens
	}

	s.Budget.Used += charged
	s.Budget.Remaining = s.Budget.Total - s.Budget.Used
	if s.Budget.Remaining < 0 {
		s.Budget.Remaining = 0
	}
	s.Budget.EstimatedCost = float64(s.Budget.Used) / 1000 * m.rates[s.Tier]
	s.Steps[stepLabel] = s.Steps[stepLabel].Add(usage)

	return nil
}

// CompleteSession marks a session successful. Terminal transitions are
// idempotent, and the first terminal status wins: completing an already
// cancelled session is a no-op, not an error.
func (m *Manager) CompleteSession(id string) error {
	return m.close(id, StatusCompleted)
}

// CancelSession marks a session cancelled. Same transition rules as
// CompleteSession.
func (m *Manager) CancelSession(id string) error {
	return m.close(id, StatusCancelled)
}

func (m *Manager) close(id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[id]
	if !exists {
		return fmt.Errorf("close %q: %w", id, ErrSessionNotFound)
	}
	if s.Closed() {
		return nil
	}

	s.Status = status
	s.ClosedAt = time.Now()

	m.log.Debug("budget session closed",
		"session", id,
		"status", status,
		"used", s.Budget.Used,
		"remaining", s.Budget.Remaining,
		"cost", s.Budget.EstimatedCost)
	return nil
}

// GetSession returns a snapshot of the session.
func (m *Manager) GetSession(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("get %q: %w", id, ErrSessionNotFound)
	}
	return s.clone(), nil
}

// SessionsForUser returns snapshots of the user's sessions, oldest first.
func (m *Manager) SessionsForUser(userID string) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of tracked sessions, active and closed.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// PruneClosed drops terminal sessions that closed more than maxAge ago and
// returns how many were removed. Active sessions are never pruned.
func (m *Manager) PruneClosed(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, s := range m.sessions {
		if s.Closed() && s.ClosedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.log.Debug("pruned closed budget sessions", "removed", removed)
	}
	return removed
}
