package reasoning

import (
	"context"
	"sync"
	"testing"

	"github.com/cogito-ai/cogito/pkg/budget"
	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/llms"
	"github.com/cogito-ai/cogito/pkg/routing"
)

// stubProvider answers provider calls from a respond function so tests
// can script outcomes per request shape. Calls are captured for
// inspection.
type stubProvider struct {
	name    string
	respond func(req *llms.Request) (*llms.Response, error)

	mu    sync.Mutex
	calls []*llms.Request
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Reason(_ context.Context, req *llms.Request) (*llms.Response, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if p.respond != nil {
		return p.respond(req)
	}
	return &llms.Response{
		Text:         "ok",
		Model:        req.Model,
		FinishReason: llms.FinishReasonStop,
		Usage:        llms.TokenUsage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}, nil
}

func (p *stubProvider) ReasonStream(ctx context.Context, req *llms.Request) (<-chan llms.StreamChunk, error) {
	resp, err := p.Reason(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan llms.StreamChunk, 2)
	ch <- llms.StreamChunk{Kind: llms.ChunkText, Text: resp.Text}
	ch <- llms.StreamChunk{Kind: llms.ChunkDone, Usage: &resp.Usage}
	close(ch)
	return ch, nil
}

func (p *stubProvider) Healthy(context.Context) bool { return true }

func (p *stubProvider) Close() error { return nil }

func (p *stubProvider) requests() []*llms.Request {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*llms.Request, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.calls)
}

// okUsage is the usage every default stub response reports.
var okUsage = llms.TokenUsage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}

func textResponse(text string) (*llms.Response, error) {
	return &llms.Response{
		Text:         text,
		Model:        "test-model",
		FinishReason: llms.FinishReasonStop,
		Usage:        okUsage,
	}, nil
}

// fixture wires a stub provider, a live budget manager with one open
// session, and a task routed at that session.
type fixture struct {
	providers *llms.ProviderRegistry
	stub      *stubProvider
	budget    *budget.Manager
	task      *Task
}

func newFixture(t *testing.T, totalBudget int, respond func(req *llms.Request) (*llms.Response, error)) *fixture {
	t.Helper()

	stub := &stubProvider{name: "anthropic", respond: respond}
	providers := llms.NewProviderRegistry()
	if err := providers.Register("anthropic", stub); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	mgr := budget.NewManager(config.BudgetConfig{})
	if _, err := mgr.CreateSession("sess-1", "user-1", config.TierStandard, totalBudget); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	return &fixture{
		providers: providers,
		stub:      stub,
		budget:    mgr,
		task: &Task{
			SessionID: "sess-1",
			Prompt:    "Why is the sky blue?",
			Decision: &routing.Decision{
				Model: config.ModelConfig{
					Name:     "test-model",
					Provider: "anthropic",
					Tier:     config.TierStandard,
				},
				Budget: totalBudget,
			},
		},
	}
}

func (f *fixture) session(t *testing.T) *budget.Session {
	t.Helper()

	s, err := f.budget.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	return s
}

// stepUsageSum totals the per-step usage of a result for comparison
// against the aggregate.
func stepUsageSum(result *Result) llms.TokenUsage {
	var total llms.TokenUsage
	for _, step := range result.Steps {
		total = total.Add(step.Usage)
	}
	return total
}
