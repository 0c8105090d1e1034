package reasoning

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/llms"
)

func hybridRespond(req *llms.Request) (*llms.Response, error) {
	switch {
	case strings.Contains(req.SystemPrompt, "Break the task into 3 to 5 concrete subtasks"):
		return textResponse("1. part one\n2. part two")
	case strings.Contains(req.SystemPrompt, "Work through the listed subtasks in order"):
		return textResponse("exploration notes")
	case strings.Contains(req.SystemPrompt, "Consolidate the exploration"):
		return textResponse("final answer")
	default:
		return nil, errors.New("unexpected call")
	}
}

func TestHybrid_PhaseBudgetSplit(t *testing.T) {
	f := newFixture(t, 1000, hybridRespond)

	engine := NewHybrid(f.providers, f.budget)
	if engine.Name() != complexity.StrategyHybrid {
		t.Errorf("Name() = %v, want hybrid", engine.Name())
	}

	result, err := engine.Execute(context.Background(), f.task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	reqs := f.stub.requests()
	if len(reqs) != 3 {
		t.Fatalf("provider calls = %d, want 3 phases", len(reqs))
	}

	// 20/40/40 split of the 1000-token session.
	wantBudgets := []int{200, 400, 400}
	wantTemps := []float64{0.3, 0.9, 0.6}
	for i, req := range reqs {
		if req.ThinkingBudget != wantBudgets[i] {
			t.Errorf("phase %d ThinkingBudget = %d, want %d", i, req.ThinkingBudget, wantBudgets[i])
		}
		if req.Temperature == nil || *req.Temperature != wantTemps[i] {
			t.Errorf("phase %d Temperature = %v, want %v", i, req.Temperature, wantTemps[i])
		}
	}
	if reqs[0].MaxTokens != 400 {
		t.Errorf("decomposition MaxTokens = %d, want a short list", reqs[0].MaxTokens)
	}

	// Each phase feeds the next.
	if !strings.Contains(reqs[1].Prompt, "1. part one") {
		t.Errorf("exploration prompt missing subtasks:\n%s", reqs[1].Prompt)
	}
	if !strings.Contains(reqs[2].Prompt, "1. part one") || !strings.Contains(reqs[2].Prompt, "exploration notes") {
		t.Errorf("synthesis prompt missing earlier phases:\n%s", reqs[2].Prompt)
	}

	if len(result.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3", len(result.Steps))
	}
	decompose, explore, synthesize := result.Steps[0], result.Steps[1], result.Steps[2]
	if decompose.Depth != 0 || decompose.ParentID != "" {
		t.Errorf("decompose depth/parent = %d/%q", decompose.Depth, decompose.ParentID)
	}
	if explore.Depth != 1 || explore.ParentID != decompose.ID {
		t.Errorf("explore depth/parent = %d/%q", explore.Depth, explore.ParentID)
	}
	if synthesize.Depth != 2 || synthesize.ParentID != explore.ID {
		t.Errorf("synthesize depth/parent = %d/%q", synthesize.Depth, synthesize.ParentID)
	}
	if decompose.Metadata["phase"] != "decompose" || synthesize.Metadata["phase"] != "synthesize" {
		t.Errorf("phase metadata = %v/%v", decompose.Metadata["phase"], synthesize.Metadata["phase"])
	}

	if result.Answer != "final answer" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0 (engine has no opinion)", result.Confidence)
	}

	c := result.Meta.Counters
	if c["decompose_budget"] != 200 || c["explore_budget"] != 400 || c["synthesize_budget"] != 400 {
		t.Errorf("budget counters = %v", c)
	}

	if result.Usage.TotalTokens != 60 {
		t.Errorf("Usage.TotalTokens = %d, want 60", result.Usage.TotalTokens)
	}
	if used := f.session(t).Budget.Used; used != 60 {
		t.Errorf("session used = %d, want 60", used)
	}
	if _, ok := f.session(t).Steps["explore"]; !ok {
		t.Error("session missing explore step label")
	}
}

func TestHybrid_BudgetSharesFloor(t *testing.T) {
	f := newFixture(t, 999, hybridRespond)

	engine := NewHybrid(f.providers, f.budget)
	result, err := engine.Execute(context.Background(), f.task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	c := result.Meta.Counters
	if c["decompose_budget"] != 199 || c["explore_budget"] != 399 || c["synthesize_budget"] != 399 {
		t.Errorf("budget counters = %v, want floored shares", c)
	}
}

func TestHybrid_PhaseFailureAborts(t *testing.T) {
	f := newFixture(t, 1000, func(req *llms.Request) (*llms.Response, error) {
		if strings.Contains(req.SystemPrompt, "Work through the listed subtasks in order") {
			return nil, errors.New("model overloaded")
		}
		return hybridRespond(req)
	})

	engine := NewHybrid(f.providers, f.budget)
	result, err := engine.Execute(context.Background(), f.task)
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if err == nil || !strings.Contains(err.Error(), "exploration phase") {
		t.Fatalf("error = %v, want exploration phase failure", err)
	}

	var provErr *llms.ProviderError
	if !errors.As(err, &provErr) {
		t.Errorf("error = %T, want *ProviderError in chain", err)
	}

	// The completed decomposition stays charged.
	if used := f.session(t).Budget.Used; used != 20 {
		t.Errorf("session used = %d, want 20", used)
	}
}
