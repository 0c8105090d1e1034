package complexity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/llms"
)

type stubProvider struct {
	reply   string
	err     error
	panics  bool
	lastReq *llms.Request
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Reason(ctx context.Context, req *llms.Request) (*llms.Response, error) {
	s.lastReq = req
	if s.panics {
		panic("stub provider exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llms.Response{
		Text:         s.reply,
		Model:        "stub-model",
		FinishReason: llms.FinishReasonStop,
	}, nil
}

func (s *stubProvider) ReasonStream(ctx context.Context, req *llms.Request) (<-chan llms.StreamChunk, error) {
	return nil, fmt.Errorf("streaming not supported")
}

func (s *stubProvider) Healthy(ctx context.Context) bool { return true }

func (s *stubProvider) Close() error { return nil }

// hardPrompt exercises every heuristic signal: saturated length, reasoning
// keywords, a numbered plan, constraint language, and a code fence.
func hardPrompt() string {
	var sb strings.Builder
	sb.WriteString("Design a distributed rate limiter and compare the trade-offs of token bucket and sliding window approaches. ")
	sb.WriteString("Optimize for tail latency, then evaluate and analyze the failure modes.\n\n")
	sb.WriteString("First, the requirements. The design must handle exactly 100k requests per second, ")
	sb.WriteString("respond within 5ms at least 99% of the time, and degrade gracefully without using more than 1GB of memory.\n")
	sb.WriteString("1. Propose the schema for the shared counter state.\n")
	sb.WriteString("2. Give the json wire format and the sql fallback store.\n")
	sb.WriteString("3. Sketch the core algorithm.\n")
	sb.WriteString("Then walk through one request end to end, and finally summarize the open risks.\n\n")
	sb.WriteString("```sql\nSELECT bucket, used FROM limits WHERE key = ?;\n```\n\n")
	for i := 0; i < 40; i++ {
		sb.WriteString("The system must remain correct under concurrent access from many nodes across regions. ")
	}
	return sb.String()
}

func TestAnalyze_TrivialPrompt(t *testing.T) {
	a := NewAnalyzer(config.AnalyzerConfig{}, nil)

	got := a.Analyze(context.Background(), "What is 2+2?", "")

	if got.Level != LevelTrivial {
		t.Errorf("level = %v, want %v", got.Level, LevelTrivial)
	}
	if got.Strategy != StrategyChainOfThought {
		t.Errorf("strategy = %v, want %v", got.Strategy, StrategyChainOfThought)
	}
	if got.Score >= 0.2 {
		t.Errorf("score = %v, want < 0.2", got.Score)
	}
	if got.Degraded {
		t.Error("heuristic analysis should not be degraded")
	}
	for _, signal := range []string{"length", "reasoning", "structure", "technical", "constraints", "context"} {
		if _, ok := got.Signals[signal]; !ok {
			t.Errorf("missing signal %q", signal)
		}
	}
}

func TestAnalyze_HardPromptIsExtreme(t *testing.T) {
	a := NewAnalyzer(config.AnalyzerConfig{}, nil)

	got := a.Analyze(context.Background(), hardPrompt(), "")

	if got.Level != LevelExtreme {
		t.Errorf("level = %v (score %v), want %v", got.Level, got.Score, LevelExtreme)
	}
	if got.Strategy != StrategyHybrid {
		t.Errorf("strategy = %v, want %v", got.Strategy, StrategyHybrid)
	}
}

func TestAnalyze_ScoreOrdering(t *testing.T) {
	a := NewAnalyzer(config.AnalyzerConfig{}, nil)
	ctx := context.Background()

	trivial := a.Analyze(ctx, "What is the capital of France?", "")
	medium := a.Analyze(ctx, "Explain why quicksort outperforms bubble sort on large inputs, then compare their memory behavior. Must stay under 200 words.", "")
	hard := a.Analyze(ctx, hardPrompt(), "")

	if !(trivial.Score < medium.Score && medium.Score < hard.Score) {
		t.Errorf("scores not ordered: trivial=%v medium=%v hard=%v",
			trivial.Score, medium.Score, hard.Score)
	}
	if trivial.Level.Rank() > medium.Level.Rank() || medium.Level.Rank() > hard.Level.Rank() {
		t.Errorf("levels not ordered: %v, %v, %v", trivial.Level, medium.Level, hard.Level)
	}
}

func TestAnalyze_ContextRaisesScore(t *testing.T) {
	a := NewAnalyzer(config.AnalyzerConfig{}, nil)
	ctx := context.Background()
	prompt := "Summarize the decision we reached."

	bare := a.Analyze(ctx, prompt, "")
	loaded := a.Analyze(ctx, prompt, strings.Repeat("Earlier discussion of the migration plan and its rollback steps. ", 200))

	if loaded.Score <= bare.Score {
		t.Errorf("context did not raise score: bare=%v loaded=%v", bare.Score, loaded.Score)
	}
}

func TestAnalyze_EmptyPrompt(t *testing.T) {
	a := NewAnalyzer(config.AnalyzerConfig{}, nil)

	got := a.Analyze(context.Background(), "", "")

	if got.Level != LevelTrivial {
		t.Errorf("level = %v, want %v", got.Level, LevelTrivial)
	}
	if got.Score != 0 {
		t.Errorf("score = %v, want 0", got.Score)
	}
}

func TestAnalyze_LLMRefinesVerdict(t *testing.T) {
	stub := &stubProvider{reply: `{"level": "complex", "score": 0.72, "strategy": "multi_agent", "rationale": "several interacting subsystems"}`}
	a := NewAnalyzer(config.AnalyzerConfig{UseLLM: true, Model: "classifier-model"}, stub)

	got := a.Analyze(context.Background(), "Short prompt.", "")

	if got.Level != LevelComplex {
		t.Errorf("level = %v, want %v", got.Level, LevelComplex)
	}
	if got.Score != 0.72 {
		t.Errorf("score = %v, want 0.72", got.Score)
	}
	if got.Strategy != StrategyMultiAgent {
		t.Errorf("strategy = %v, want %v", got.Strategy, StrategyMultiAgent)
	}
	if got.Rationale == "" {
		t.Error("expected rationale from classifier")
	}
	if got.Degraded {
		t.Error("successful classification should not be degraded")
	}
	if _, ok := got.Signals["length"]; !ok {
		t.Error("heuristic signals should survive LLM refinement")
	}

	req := stub.lastReq
	if req == nil {
		t.Fatal("provider was not called")
	}
	if req.Model != "classifier-model" {
		t.Errorf("request model = %q, want classifier-model", req.Model)
	}
	if req.Structured == nil || req.Structured.Format != "json" {
		t.Fatal("expected structured JSON request")
	}
	if req.Structured.Prefill != "{" {
		t.Errorf("prefill = %q, want {", req.Structured.Prefill)
	}
	if req.Temperature == nil || *req.Temperature != 0.1 {
		t.Errorf("temperature = %v, want 0.1", req.Temperature)
	}
	if !strings.Contains(req.Prompt, "Short prompt.") {
		t.Error("classification prompt should embed the task text")
	}
}

func TestAnalyze_LLMFailureKeepsHeuristic(t *testing.T) {
	stub := &stubProvider{err: errors.New("rate limited")}
	a := NewAnalyzer(config.AnalyzerConfig{UseLLM: true}, stub)

	got := a.Analyze(context.Background(), "What is 2+2?", "")

	if !got.Degraded {
		t.Error("expected degraded analysis after classifier failure")
	}
	if got.Level != LevelTrivial {
		t.Errorf("level = %v, want heuristic %v", got.Level, LevelTrivial)
	}
	if got.Strategy != StrategyChainOfThought {
		t.Errorf("strategy = %v, want %v", got.Strategy, StrategyChainOfThought)
	}
}

func TestAnalyze_LLMGarbageKeepsHeuristic(t *testing.T) {
	stub := &stubProvider{reply: "This task is quite hard, I think."}
	a := NewAnalyzer(config.AnalyzerConfig{UseLLM: true}, stub)

	got := a.Analyze(context.Background(), "What is 2+2?", "")

	if !got.Degraded {
		t.Error("expected degraded analysis for unparseable classifier output")
	}
	if got.Level != LevelTrivial {
		t.Errorf("level = %v, want heuristic %v", got.Level, LevelTrivial)
	}
}

func TestAnalyze_MissingProviderDegrades(t *testing.T) {
	a := NewAnalyzer(config.AnalyzerConfig{UseLLM: true}, nil)

	got := a.Analyze(context.Background(), "What is 2+2?", "")

	if !got.Degraded {
		t.Error("use_llm without a provider should degrade")
	}
	if got.Level != LevelTrivial {
		t.Errorf("level = %v, want heuristic %v", got.Level, LevelTrivial)
	}
}

func TestAnalyze_PanicUsesConservativeVerdict(t *testing.T) {
	stub := &stubProvider{panics: true}
	a := NewAnalyzer(config.AnalyzerConfig{UseLLM: true}, stub)

	got := a.Analyze(context.Background(), "Anything at all.", "")

	if got.Level != LevelSimple {
		t.Errorf("level = %v, want %v", got.Level, LevelSimple)
	}
	if got.Strategy != StrategyChainOfThought {
		t.Errorf("strategy = %v, want %v", got.Strategy, StrategyChainOfThought)
	}
	if !got.Degraded {
		t.Error("recovered analysis should be degraded")
	}
}

func TestAnalyze_HeuristicModeSkipsProvider(t *testing.T) {
	stub := &stubProvider{reply: `{"level": "extreme", "score": 0.9}`}
	a := NewAnalyzer(config.AnalyzerConfig{UseLLM: false}, stub)

	got := a.Analyze(context.Background(), "What is 2+2?", "")

	if stub.lastReq != nil {
		t.Error("provider should not be called without use_llm")
	}
	if got.Level != LevelTrivial {
		t.Errorf("level = %v, want %v", got.Level, LevelTrivial)
	}
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantLevel    Level
		wantScore    float64
		wantStrategy Strategy
		wantErr      bool
	}{
		{
			name:         "clean object",
			text:         `{"level":"moderate","score":0.5,"strategy":"tree_of_thought","rationale":"multi-step"}`,
			wantLevel:    LevelModerate,
			wantScore:    0.5,
			wantStrategy: StrategyTreeOfThought,
		},
		{
			name:         "markdown fenced",
			text:         "```json\n{\"level\":\"simple\",\"score\":0.25}\n```",
			wantLevel:    LevelSimple,
			wantScore:    0.25,
			wantStrategy: StrategyChainOfThought,
		},
		{
			name:         "prose wrapped",
			text:         `My verdict: {"level":"extreme","score":0.9,"strategy":"hybrid"} as requested.`,
			wantLevel:    LevelExtreme,
			wantScore:    0.9,
			wantStrategy: StrategyHybrid,
		},
		{
			name:         "score clamped high",
			text:         `{"level":"complex","score":1.7}`,
			wantLevel:    LevelComplex,
			wantScore:    1.0,
			wantStrategy: StrategyMultiAgent,
		},
		{
			name:         "score clamped low",
			text:         `{"level":"trivial","score":-0.3}`,
			wantLevel:    LevelTrivial,
			wantScore:    0,
			wantStrategy: StrategyChainOfThought,
		},
		{
			name:         "unknown strategy falls back to level default",
			text:         `{"level":"complex","score":0.7,"strategy":"divide_and_conquer"}`,
			wantLevel:    LevelComplex,
			wantScore:    0.7,
			wantStrategy: StrategyMultiAgent,
		},
		{
			name:    "unknown level",
			text:    `{"level":"impossible","score":0.5}`,
			wantErr: true,
		},
		{
			name:    "missing level",
			text:    `{"score":0.5}`,
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			text:    "cannot say",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClassification(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", got.Level, tt.wantLevel)
			}
			if got.Score != tt.wantScore {
				t.Errorf("score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Strategy != tt.wantStrategy {
				t.Errorf("strategy = %v, want %v", got.Strategy, tt.wantStrategy)
			}
		})
	}
}

func TestExcerpt(t *testing.T) {
	if got := excerpt("short", 100); got != "short" {
		t.Errorf("excerpt(short) = %q", got)
	}

	long := strings.Repeat("x", 200)
	got := excerpt(long, 50)
	if len(got) != 53 || !strings.HasSuffix(got, "...") {
		t.Errorf("excerpt length = %d, want 53 with ellipsis", len(got))
	}
}
