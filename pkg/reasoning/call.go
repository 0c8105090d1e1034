package reasoning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cogito-ai/cogito/pkg/budget"
	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/llms"
)

// caller executes provider calls on behalf of a strategy and turns each
// one into a Step. Every successful call is charged to the budget
// session before the step is handed back; a charge rejected because the
// session closed discards the step, which is how cancellation stops a
// strategy mid-run.
type caller struct {
	providers *llms.ProviderRegistry
	budget    *budget.Manager
}

// callSpec describes one provider call.
type callSpec struct {
	SessionID string

	// Label is the budget step label usage is recorded under.
	Label string

	// Provider is the registry key of the provider to call.
	Provider string

	// Model names the model, overriding the provider default.
	Model string

	Prompt string
	System string

	// Temperature is passed through when non-nil.
	Temperature *float64

	// MaxTokens caps response length. Zero means provider default.
	MaxTokens int

	// Thinking is the extended thinking allowance for this call. Zero
	// disables thinking.
	Thinking int

	// Structured requests schema-constrained output.
	Structured *llms.StructuredOutputConfig

	// ParentID and Depth place the resulting step in the run's tree.
	ParentID string
	Depth    int

	// Metadata seeds the step's metadata map.
	Metadata map[string]interface{}
}

// reason executes the provider call and charges the session, without
// materializing a step. Judge calls use it directly; their usage folds
// into the step they score.
func (c *caller) reason(ctx context.Context, spec callSpec) (*llms.Response, time.Duration, error) {
	provider, ok := c.providers.Get(spec.Provider)
	if !ok {
		return nil, 0, fmt.Errorf("provider %q not registered", spec.Provider)
	}

	req := &llms.Request{
		Prompt:         spec.Prompt,
		SystemPrompt:   spec.System,
		Model:          spec.Model,
		Temperature:    spec.Temperature,
		MaxTokens:      spec.MaxTokens,
		ThinkingBudget: spec.Thinking,
		Structured:     spec.Structured,
	}

	start := time.Now()
	resp, err := provider.Reason(ctx, req)
	latency := time.Since(start)
	if err != nil {
		return nil, latency, asProviderError(spec.Provider, spec.Model, err)
	}

	// Charge before handing the response back. A closed session rejects
	// the charge and the result is discarded with it.
	if err := c.budget.RecordUsage(spec.SessionID, spec.Label, resp.Usage); err != nil {
		return nil, latency, fmt.Errorf("step %s discarded: %w", spec.Label, err)
	}

	return resp, latency, nil
}

// do executes the call and materializes the response as a step.
func (c *caller) do(ctx context.Context, spec callSpec) (*Step, error) {
	resp, latency, err := c.reason(ctx, spec)
	if err != nil {
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = spec.Model
	}

	return &Step{
		ID:        uuid.NewString(),
		ParentID:  spec.ParentID,
		Depth:     spec.Depth,
		Thought:   resp.Text,
		Thinking:  resp.Thinking,
		Model:     model,
		Provider:  spec.Provider,
		Usage:     resp.Usage,
		Latency:   latency,
		CreatedAt: time.Now(),
		Metadata:  spec.Metadata,
	}, nil
}

// asProviderError ensures a failure carries provider identity. SDK and
// transport errors that never reached the adapter's response handling
// get wrapped here; adapter-built ProviderErrors pass through.
func asProviderError(provider, model string, err error) error {
	var provErr *llms.ProviderError
	if errors.As(err, &provErr) {
		return err
	}
	return &llms.ProviderError{Provider: provider, Model: model, Err: err}
}

// sessionBudget returns the current budget snapshot, or the zero value
// when the session is unknown.
func (c *caller) sessionBudget(sessionID string) budget.ThinkingBudget {
	session, err := c.budget.GetSession(sessionID)
	if err != nil {
		return budget.ThinkingBudget{}
	}
	return session.Budget
}

// allowance returns the thinking tokens the next step may spend.
func (c *caller) allowance(sessionID string) int {
	return c.sessionBudget(sessionID).NextStepAllowance()
}

// buildResult assembles the strategy-independent part of a Result from
// the run's arena. Engines fill in answer, success, confidence, and
// strategy-specific metadata afterwards.
func buildResult(strategy complexity.Strategy, ar *arena, startedAt time.Time) *Result {
	now := time.Now()
	return &Result{
		Strategy:   strategy,
		Steps:      ar.ordered(),
		Usage:      ar.usageTotal(),
		Latency:    now.Sub(startedAt),
		ModelsUsed: ar.modelsUsed(),
		Meta: ResultMeta{
			StartedAt:      startedAt,
			CompletedAt:    now,
			StepsCompleted: ar.len(),
			StepsEvaluated: ar.evaluatedCount(),
		},
	}
}
