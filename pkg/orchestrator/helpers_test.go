package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cogito-ai/cogito/pkg/budget"
	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/llms"
	"github.com/cogito-ai/cogito/pkg/routing"
)

// stubProvider answers provider calls from a respond function. A delay
// simulates a slow backend and honors context cancellation; scripted
// chunks replace the streaming surface when set, and a gate callback
// blocks the streaming call until the test releases it.
type stubProvider struct {
	name    string
	down    bool
	delay   time.Duration
	chunks  []llms.StreamChunk
	gate    func()
	respond func(req *llms.Request) (*llms.Response, error)

	mu    sync.Mutex
	calls []*llms.Request
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Reason(ctx context.Context, req *llms.Request) (*llms.Response, error) {
	p.record(req)

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.respond != nil {
		return p.respond(req)
	}
	return &llms.Response{
		Text:         "ok",
		Model:        req.Model,
		FinishReason: llms.FinishReasonStop,
		Usage:        okUsage,
	}, nil
}

func (p *stubProvider) ReasonStream(ctx context.Context, req *llms.Request) (<-chan llms.StreamChunk, error) {
	if p.chunks == nil {
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

	p.record(req)
	if p.gate != nil {
		p.gate()
	}
	ch := make(chan llms.StreamChunk, len(p.chunks)+1)
	for _, chunk := range p.chunks {
		ch <- chunk
	}
	usage := okUsage
	ch <- llms.StreamChunk{Kind: llms.ChunkDone, Usage: &usage}
	close(ch)
	return ch, nil
}

func (p *stubProvider) Healthy(context.Context) bool { return !p.down }

func (p *stubProvider) Close() error { return nil }

func (p *stubProvider) record(req *llms.Request) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.calls)
}

// okUsage is the usage every default stub response reports.
var okUsage = llms.TokenUsage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}

func textResponse(req *llms.Request, text string) (*llms.Response, error) {
	return &llms.Response{
		Text:         text,
		Model:        req.Model,
		FinishReason: llms.FinishReasonStop,
		Usage:        okUsage,
	}, nil
}

// fixture wires a full orchestrator over one stub provider and a
// three-tier catalog.
type fixture struct {
	orch      *Orchestrator
	stub      *stubProvider
	providers *llms.ProviderRegistry
	budgets   *budget.Manager
}

func newFixture(t *testing.T, respond func(req *llms.Request) (*llms.Response, error)) *fixture {
	t.Helper()

	stub := &stubProvider{name: "anthropic", respond: respond}
	providers := llms.NewProviderRegistry()
	if err := providers.Register("anthropic", stub); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	catalog := routing.NewCatalog()
	for _, m := range []config.ModelConfig{
		{Name: "fast-model", Provider: "anthropic", Tier: config.TierFast},
		{Name: "standard-model", Provider: "anthropic", Tier: config.TierStandard},
		{Name: "deep-model", Provider: "anthropic", Tier: config.TierDeep},
	} {
		if err := catalog.Register(m); err != nil {
			t.Fatalf("catalog Register() error = %v", err)
		}
	}

	budgets := budget.NewManager(config.BudgetConfig{})
	analyzer := complexity.NewAnalyzer(config.AnalyzerConfig{}, nil)
	router := routing.NewRouter(catalog, config.RoutingConfig{})

	orch, err := New(config.OrchestratorConfig{}, config.StrategiesConfig{}, Deps{
		Analyzer:  analyzer,
		Router:    router,
		Catalog:   catalog,
		Budgets:   budgets,
		Providers: providers,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &fixture{
		orch:      orch,
		stub:      stub,
		providers: providers,
		budgets:   budgets,
	}
}

// trivialInput is a prompt the heuristic analyzer scores as trivial,
// which routes to chain of thought on the fast tier.
func trivialInput(userID string) *Input {
	return &Input{Prompt: "What is 2+2?", UserID: userID}
}
