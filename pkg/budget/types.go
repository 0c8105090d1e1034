// Package budget tracks thinking-token allotments per reasoning request.
// A session is created when a request starts, charged as strategies record
// usage, and closed exactly once. The budget state is owned by the Manager
// and mutated only through its API; everything else sees snapshots.
package budget

import (
	"time"

	"github.com/cogito-ai/cogito/pkg/llms"
)

// Status of a budget session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ThinkingBudget tracks the token allotment for one session.
type ThinkingBudget struct {
	// Total is the allotment granted at session creation.
	Total int `json:"total"`

	// Used is the sum of tokens recorded so far. It may exceed Total,
	// since a step's overshoot is still recorded.
	Used int `json:"used"`

	// Remaining is Total minus Used, clamped at zero.
	Remaining int `json:"remaining"`

	// PerStep is the nominal allotment for a single reasoning step.
	PerStep int `json:"per_step"`

	// StepCeiling bounds what any single step may spend.
	StepCeiling int `json:"step_ceiling"`

	// EstimatedCost is the credit estimate for Used tokens at the
	// session tier's rate.
	EstimatedCost float64 `json:"estimated_cost"`
}

// NextStepAllowance returns the thinking tokens the next step may spend:
// the nominal per-step allotment bounded by the ceiling and by what
// remains. Zero means the budget is exhausted.
func (b ThinkingBudget) NextStepAllowance() int {
	allowed := b.PerStep
	if allowed > b.StepCeiling {
		allowed = b.StepCeiling
	}
	if allowed > b.Remaining {
		allowed = b.Remaining
	}
	if allowed < 0 {
		return 0
	}
	return allowed
}

// Exhausted reports whether nothing remains to spend.
func (b ThinkingBudget) Exhausted() bool {
	return b.Remaining <= 0
}

// Session is the budget state of one in-flight reasoning request. Values
// handed out by the Manager are snapshots; mutating them has no effect on
// the tracked session.
type Session struct {
	// ID uniquely identifies the reasoning request.
	ID string `json:"id"`

	// UserID is the owning caller.
	UserID string `json:"user_id"`

	// Tier is the capability tier the request was routed to.
	Tier string `json:"tier"`

	// CreatedAt is the session start time.
	CreatedAt time.Time `json:"created_at"`

	// ClosedAt is the terminal transition time, zero while active.
	ClosedAt time.Time `json:"closed_at,omitempty"`

	// Budget is the current token accounting.
	Budget ThinkingBudget `json:"budget"`

	// Status is active until the session completes or is cancelled.
	Status Status `json:"status"`

	// Steps aggregates recorded usage by step label.
	Steps map[string]llms.TokenUsage `json:"steps,omitempty"`
}

// Closed reports whether the session reached a terminal status.
func (s *Session) Closed() bool {
	return s.Status != StatusActive
}

func (s *Session) clone() *Session {
	out := *s
	out.Steps = make(map[string]llms.TokenUsage, len(s.Steps))
	for label, usage := range s.Steps {
		out.Steps[label] = usage
	}
	return &out
}
