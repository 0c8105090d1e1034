// Package reasoning implements the strategy engines that turn a routed
// request into an answer: chain-of-thought, tree-of-thought beam search,
// multi-agent swarm, and the hybrid pipeline. Every engine satisfies the
// same closed interface; the orchestrator owns the single dispatch point
// that selects between them.
package reasoning

import (
	"context"

	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/routing"
)

// Engine executes one reasoning strategy from start to finish. Engines
// are stateless between calls; all per-request state lives in the Task
// and in the budget session it references.
type Engine interface {
	// Name returns the strategy this engine implements.
	Name() complexity.Strategy

	// Execute runs the strategy to completion. A nil error means the
	// Result is usable even if parts of the run degraded; degradations
	// are reported through the result metadata.
	Execute(ctx context.Context, task *Task) (*Result, error)
}

// Task is one reasoning request as the engines see it: the prompt plus
// the routing decision and the budget session that meters it.
type Task struct {
	// SessionID names the budget session all provider calls charge to.
	SessionID string

	// Prompt is the user's task.
	Prompt string

	// Context is optional caller-supplied background material.
	Context string

	// Hints are optional caller directives folded into the system prompt.
	Hints []string

	// OutputFormat is an optional directive for the final answer's shape,
	// for example "markdown" or "json".
	OutputFormat string

	// Decision is the routing outcome: the model to call and the total
	// thinking budget for the request.
	Decision *routing.Decision

	// OnStep, when set, is invoked for every step the run records, in
	// completion order. Concurrent strategies call it from multiple
	// goroutines; the callback must be safe for that. Nil disables
	// observation.
	OnStep func(*Step)
}
