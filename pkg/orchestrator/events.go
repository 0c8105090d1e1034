package orchestrator

import (
	"time"

	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/reasoning"
)

// EventKind discriminates thinkStream event types.
type EventKind string

const (
	// EventThinkingStart opens every stream once the request is routed
	// and budgeted, immediately before execution.
	EventThinkingStart EventKind = "thinking-start"

	// EventThinkingStep reports deliberation: a completed reasoning step,
	// or an increment of the thinking trace on strategies that stream at
	// the provider level.
	EventThinkingStep EventKind = "thinking-step"

	// EventTokenDelta carries an increment of answer text on strategies
	// that stream at the provider level.
	EventTokenDelta EventKind = "token-delta"

	// EventThinkingComplete terminates a successful stream and carries
	// the final result.
	EventThinkingComplete EventKind = "thinking-complete"

	// EventError terminates a failed stream and carries the failure.
	EventError EventKind = "error"
)

// EventMeta is the measured state attached to an event.
type EventMeta struct {
	SessionID string              `json:"session_id,omitempty"`
	Strategy  complexity.Strategy `json:"strategy,omitempty"`
	Model     string              `json:"model,omitempty"`

	// Progress estimates completion in [0, 1] as the fraction of the
	// session's thinking budget consumed, clamped at 1. Terminal events
	// report 1.
	Progress float64 `json:"progress"`

	// Tokens is the cumulative token count charged to the session at
	// emission time.
	Tokens int `json:"tokens,omitempty"`

	// Confidence is set on thinking-complete only.
	Confidence float64 `json:"confidence,omitempty"`
}

// StreamEvent is one item on a thinkStream channel. Events arrive in
// production order; exactly one terminal event ends every stream, either
// thinking-complete carrying Result or error carrying Err.
type StreamEvent struct {
	Kind    EventKind `json:"kind"`
	Content string    `json:"content,omitempty"`

	// Result is the final reasoning result. Set on thinking-complete.
	Result *reasoning.Result `json:"result,omitempty"`

	// Err is the request failure. Set on error events.
	Err error `json:"-"`

	Meta      EventMeta `json:"meta"`
	Timestamp time.Time `json:"timestamp"`
}

// Inspector examines stream events after production and before delivery.
// Inspectors see events in order on the producer goroutine and may
// annotate the event in place; they cannot drop or reorder the stream.
type Inspector interface {
	Inspect(ev *StreamEvent)
}
