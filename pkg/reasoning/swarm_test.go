package reasoning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/llms"
	"github.com/cogito-ai/cogito/pkg/routing"
)

func isConclusion(req *llms.Request) bool {
	return req.Structured != nil && req.Structured.SchemaName == "agent_conclusion"
}

func isDebate(req *llms.Request) bool {
	return isConclusion(req) && strings.Contains(req.Prompt, "Conclusions from other agents")
}

func isSwarmSynthesis(req *llms.Request) bool {
	return strings.Contains(req.SystemPrompt, "analyzed the task independently")
}

func agentRoleOf(req *llms.Request) string {
	for _, role := range swarmRoles {
		if strings.Contains(req.SystemPrompt, "You are the "+role.name) {
			return role.name
		}
	}
	return ""
}

func conclusionJSON(conclusion string, confidence float64) (*llms.Response, error) {
	return textResponse(fmt.Sprintf(`{"conclusion": %q, "confidence": %g}`, conclusion, confidence))
}

func TestSwarm_OneAgentFailureTolerated(t *testing.T) {
	f := newFixture(t, 8000, func(req *llms.Request) (*llms.Response, error) {
		switch {
		case isConclusion(req) && agentRoleOf(req) == "skeptic":
			return nil, errors.New("model overloaded")
		case isConclusion(req):
			return conclusionJSON("The answer is 42.", 0.9)
		case isSwarmSynthesis(req):
			return textResponse("merged answer")
		default:
			return nil, fmt.Errorf("unexpected call: %q", req.Prompt)
		}
	})

	engine := NewSwarm(f.providers, nil, f.budget, config.SwarmConfig{
		Agents:           3,
		MaxStepsPerAgent: 1,
		Resolution:       config.ResolutionVote,
	}, 3)
	if engine.Name() != complexity.StrategyMultiAgent {
		t.Errorf("Name() = %v, want multi_agent", engine.Name())
	}

	result, err := engine.Execute(context.Background(), f.task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !result.Success || result.Answer != "merged answer" {
		t.Errorf("Success/Answer = %v/%q", result.Success, result.Answer)
	}
	if len(result.Meta.Contributors) != 2 {
		t.Fatalf("Contributors = %v, want the two surviving agents", result.Meta.Contributors)
	}
	if result.Meta.Contributors[0] != "analyst" || result.Meta.Contributors[1] != "explorer" {
		t.Errorf("Contributors = %v, want [analyst explorer]", result.Meta.Contributors)
	}

	if result.Meta.Counters["agents_failed"] != 1 {
		t.Errorf("agents_failed = %d, want 1", result.Meta.Counters["agents_failed"])
	}
	if result.Meta.Counters["conflicts_detected"] != 0 {
		t.Errorf("conflicts_detected = %d, want 0 for identical conclusions", result.Meta.Counters["conflicts_detected"])
	}
	if result.Meta.Resolution != "none" {
		t.Errorf("Resolution = %q, want none", result.Meta.Resolution)
	}
	if len(result.Meta.Degradations) != 1 || !strings.Contains(result.Meta.Degradations[0], "agent skeptic failed") {
		t.Errorf("Degradations = %v", result.Meta.Degradations)
	}

	// Two conclusions plus the synthesis call survive as steps.
	if len(result.Steps) != 3 {
		t.Errorf("len(Steps) = %d, want 3", len(result.Steps))
	}

	// Both survivors agree at 0.9 and form one cluster of the whole
	// swarm, so agreement does not dilute their confidence.
	if math.Abs(result.Confidence-0.9) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.9", result.Confidence)
	}

	if sum := stepUsageSum(result); sum != result.Usage {
		t.Errorf("step usage sum %+v != aggregate %+v", sum, result.Usage)
	}
	if used := f.session(t).Budget.Used; used != result.Usage.TotalTokens {
		t.Errorf("session used = %d, result usage = %d", used, result.Usage.TotalTokens)
	}
}

func TestSwarm_AllAgentsFailed(t *testing.T) {
	f := newFixture(t, 8000, func(req *llms.Request) (*llms.Response, error) {
		return nil, errors.New("model overloaded")
	})

	engine := NewSwarm(f.providers, nil, f.budget, config.SwarmConfig{
		Agents:           3,
		MaxStepsPerAgent: 1,
	}, 3)

	result, err := engine.Execute(context.Background(), f.task)
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if !errors.Is(err, ErrSwarmAllAgentsFailed) {
		t.Fatalf("error = %v, want ErrSwarmAllAgentsFailed", err)
	}
}

func TestSwarm_VoteSelectsMajorityCluster(t *testing.T) {
	f := newFixture(t, 8000, func(req *llms.Request) (*llms.Response, error) {
		switch {
		case isConclusion(req) && agentRoleOf(req) == "skeptic":
			return conclusionJSON("echo foxtrot golf hotel", 0.9)
		case isConclusion(req) && agentRoleOf(req) == "analyst":
			return conclusionJSON("alpha bravo charlie delta", 0.9)
		case isConclusion(req):
			return conclusionJSON("alpha bravo charlie delta", 0.8)
		case isSwarmSynthesis(req):
			return textResponse("merged answer")
		default:
			return nil, fmt.Errorf("unexpected call: %q", req.Prompt)
		}
	})

	engine := NewSwarm(f.providers, nil, f.budget, config.SwarmConfig{
		Agents:           3,
		MaxStepsPerAgent: 1,
		Resolution:       config.ResolutionVote,
	}, 3)

	result, err := engine.Execute(context.Background(), f.task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.Meta.Resolution != "vote" {
		t.Errorf("Resolution = %q, want vote", result.Meta.Resolution)
	}
	if result.Meta.Counters["conflicts_detected"] != 3 {
		t.Errorf("conflicts_detected = %d, want all three agents", result.Meta.Counters["conflicts_detected"])
	}
	if result.Meta.Counters["vote_clusters"] != 2 || result.Meta.Counters["vote_majority"] != 2 {
		t.Errorf("vote counters = %v, want 2 clusters with majority 2", result.Meta.Counters)
	}

	// Synthesis sees only the majority cluster.
	var synthReq *llms.Request
	for _, req := range f.stub.requests() {
		if isSwarmSynthesis(req) {
			synthReq = req
		}
	}
	if synthReq == nil {
		t.Fatal("no synthesis call made")
	}
	if !strings.Contains(synthReq.Prompt, "[analyst]") || !strings.Contains(synthReq.Prompt, "[explorer]") {
		t.Errorf("synthesis prompt missing majority conclusions:\n%s", synthReq.Prompt)
	}
	if strings.Contains(synthReq.Prompt, "[skeptic]") {
		t.Errorf("synthesis prompt includes outvoted agent:\n%s", synthReq.Prompt)
	}

	want := ((0.9 + 0.8) / 2) * (0.6 + 0.4*2.0/3.0)
	if math.Abs(result.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", result.Confidence, want)
	}
	if result.Answer != "merged answer" {
		t.Errorf("Answer = %q", result.Answer)
	}
}

func TestSwarm_DebateSettlesConflict(t *testing.T) {
	f := newFixture(t, 8000, func(req *llms.Request) (*llms.Response, error) {
		switch {
		case isDebate(req):
			return conclusionJSON("alpha bravo charlie delta", 0.85)
		case isConclusion(req) && agentRoleOf(req) == "analyst":
			return conclusionJSON("alpha bravo charlie delta", 0.9)
		case isConclusion(req):
			return conclusionJSON("echo foxtrot golf hotel", 0.7)
		case isSwarmSynthesis(req):
			return textResponse("merged answer")
		default:
			return nil, fmt.Errorf("unexpected call: %q", req.Prompt)
		}
	})

	engine := NewSwarm(f.providers, nil, f.budget, config.SwarmConfig{
		Agents:           2,
		MaxStepsPerAgent: 1,
		Resolution:       config.ResolutionDebate,
		DebateRounds:     2,
	}, 2)

	result, err := engine.Execute(context.Background(), f.task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.Meta.Resolution != "debate" {
		t.Errorf("Resolution = %q, want debate", result.Meta.Resolution)
	}
	if result.Meta.Counters["debate_rounds"] != 1 {
		t.Errorf("debate_rounds = %d, want 1 (second round finds no conflict)", result.Meta.Counters["debate_rounds"])
	}

	// Each debater saw the other's position.
	var debates []*llms.Request
	for _, req := range f.stub.requests() {
		if isDebate(req) {
			debates = append(debates, req)
		}
	}
	if len(debates) != 2 {
		t.Fatalf("debate calls = %d, want 2", len(debates))
	}
	for _, req := range debates {
		if agentRoleOf(req) == "analyst" && !strings.Contains(req.Prompt, "[skeptic]\necho foxtrot golf hotel") {
			t.Errorf("analyst debate prompt missing skeptic position:\n%s", req.Prompt)
		}
	}

	// Conclusions, restatements, synthesis.
	if len(result.Steps) != 5 {
		t.Errorf("len(Steps) = %d, want 5", len(result.Steps))
	}
	for _, step := range result.Steps {
		if step.Metadata["phase"] == "debate_1" && step.Thought != "alpha bravo charlie delta" {
			t.Errorf("debate step thought = %q", step.Thought)
		}
	}
	if result.Answer != "merged answer" {
		t.Errorf("Answer = %q", result.Answer)
	}
}

func TestSwarm_HybridEscalatesToVote(t *testing.T) {
	f := newFixture(t, 8000, func(req *llms.Request) (*llms.Response, error) {
		switch {
		case isConclusion(req) && agentRoleOf(req) == "analyst":
			return conclusionJSON("alpha bravo charlie delta", 0.9)
		case isConclusion(req):
			return conclusionJSON("echo foxtrot golf hotel", 0.8)
		case isSwarmSynthesis(req):
			return textResponse("merged answer")
		default:
			return nil, fmt.Errorf("unexpected call: %q", req.Prompt)
		}
	})

	engine := NewSwarm(f.providers, nil, f.budget, config.SwarmConfig{
		Agents:           2,
		MaxStepsPerAgent: 1,
		Resolution:       config.ResolutionHybrid,
		DebateRounds:     1,
	}, 2)

	result, err := engine.Execute(context.Background(), f.task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.Meta.Resolution != "debate+vote" {
		t.Errorf("Resolution = %q, want debate+vote", result.Meta.Resolution)
	}
	if result.Meta.Counters["debate_rounds"] != 1 {
		t.Errorf("debate_rounds = %d, want 1", result.Meta.Counters["debate_rounds"])
	}
	if result.Meta.Counters["vote_clusters"] != 2 || result.Meta.Counters["vote_majority"] != 1 {
		t.Errorf("vote counters = %v", result.Meta.Counters)
	}

	// A single-member winning cluster needs no synthesis call; its
	// conclusion is the answer.
	if result.Answer != "alpha bravo charlie delta" {
		t.Errorf("Answer = %q, want the winning agent's conclusion", result.Answer)
	}
	for _, req := range f.stub.requests() {
		if isSwarmSynthesis(req) {
			t.Error("synthesis call made for a single-conclusion final set")
		}
	}

	want := 0.9 * (0.6 + 0.4*0.5)
	if math.Abs(result.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", result.Confidence, want)
	}
}

func TestSwarm_AgentChainsReasoningPasses(t *testing.T) {
	f := newFixture(t, 8000, func(req *llms.Request) (*llms.Response, error) {
		switch {
		case isConclusion(req):
			return conclusionJSON("Deliberate answer", 0.95)
		case strings.Contains(req.Prompt, "pass 1 of 2"):
			return textResponse("first observations")
		case strings.Contains(req.Prompt, "pass 2 of 2"):
			return textResponse("deeper observations")
		default:
			return nil, fmt.Errorf("unexpected call: %q", req.Prompt)
		}
	})

	engine := NewSwarm(f.providers, nil, f.budget, config.SwarmConfig{
		Agents:           1,
		MaxStepsPerAgent: 3,
	}, 1)

	result, err := engine.Execute(context.Background(), f.task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got := f.stub.callCount(); got != 3 {
		t.Errorf("provider calls = %d, want 2 passes + conclusion", got)
	}
	if len(result.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3", len(result.Steps))
	}

	first := findStep(t, result, "first observations")
	second := findStep(t, result, "deeper observations")
	conclusion := findStep(t, result, "Deliberate answer")

	if first.Depth != 0 || first.ParentID != "" {
		t.Errorf("first pass depth/parent = %d/%q", first.Depth, first.ParentID)
	}
	if second.Depth != 1 || second.ParentID != first.ID {
		t.Errorf("second pass depth/parent = %d/%q", second.Depth, second.ParentID)
	}
	if conclusion.Depth != 2 || conclusion.ParentID != second.ID {
		t.Errorf("conclusion depth/parent = %d/%q", conclusion.Depth, conclusion.ParentID)
	}
	if first.Metadata["phase"] != "reasoning" || conclusion.Metadata["phase"] != "conclusion" {
		t.Errorf("phases = %v/%v", first.Metadata["phase"], conclusion.Metadata["phase"])
	}

	// The second pass builds on the first.
	for _, req := range f.stub.requests() {
		if strings.Contains(req.Prompt, "pass 2 of 2") && !strings.Contains(req.Prompt, "1. first observations") {
			t.Errorf("second pass did not carry prior reasoning:\n%s", req.Prompt)
		}
	}

	// One agent, no conflict, no synthesis call; its conclusion stands.
	if result.Answer != "Deliberate answer" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if len(result.Meta.Contributors) != 1 || result.Meta.Contributors[0] != "analyst" {
		t.Errorf("Contributors = %v", result.Meta.Contributors)
	}
	if math.Abs(result.Confidence-0.95) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.95", result.Confidence)
	}
}

func TestSwarm_ParallelismCapsAgentCount(t *testing.T) {
	f := newFixture(t, 8000, func(req *llms.Request) (*llms.Response, error) {
		switch {
		case isConclusion(req):
			return conclusionJSON("The answer is 42.", 0.9)
		case isSwarmSynthesis(req):
			return textResponse("merged answer")
		default:
			return nil, fmt.Errorf("unexpected call: %q", req.Prompt)
		}
	})

	engine := NewSwarm(f.providers, nil, f.budget, config.SwarmConfig{
		Agents:           5,
		MaxStepsPerAgent: 1,
	}, 2)

	result, err := engine.Execute(context.Background(), f.task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(result.Meta.Contributors) != 2 {
		t.Errorf("Contributors = %v, want the swarm capped at 2", result.Meta.Contributors)
	}
	if got := f.stub.callCount(); got != 3 {
		t.Errorf("provider calls = %d, want 2 conclusions + synthesis", got)
	}
}

func TestSwarm_TierModelsFromCatalog(t *testing.T) {
	catalog := routing.NewCatalog()
	for _, m := range []config.ModelConfig{
		{Name: "sonnet", Provider: "anthropic", Tier: config.TierStandard},
		{Name: "haiku", Provider: "anthropic", Tier: config.TierFast},
	} {
		if err := catalog.Register(m); err != nil {
			t.Fatalf("Register(%s) error = %v", m.Name, err)
		}
	}

	f := newFixture(t, 8000, func(req *llms.Request) (*llms.Response, error) {
		if isSwarmSynthesis(req) {
			return textResponse("merged answer")
		}
		return &llms.Response{
			Text:         `{"conclusion": "The answer is 42.", "confidence": 0.9}`,
			Model:        req.Model,
			FinishReason: llms.FinishReasonStop,
			Usage:        okUsage,
		}, nil
	})

	engine := NewSwarm(f.providers, catalog, f.budget, config.SwarmConfig{
		Agents:           3,
		MaxStepsPerAgent: 1,
	}, 3)

	result, err := engine.Execute(context.Background(), f.task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// A standard-tier decision keeps the lead agent on standard and
	// drops the rest one tier.
	models := map[string]int{}
	for _, req := range f.stub.requests() {
		if isConclusion(req) {
			models[req.Model]++
		}
	}
	if models["sonnet"] != 1 || models["haiku"] != 2 {
		t.Errorf("conclusion models = %v, want 1 sonnet + 2 haiku", models)
	}

	used := map[string]bool{}
	for _, m := range result.ModelsUsed {
		used[m] = true
	}
	for _, want := range []string{"sonnet", "haiku", "test-model"} {
		if !used[want] {
			t.Errorf("ModelsUsed = %v, missing %s", result.ModelsUsed, want)
		}
	}
}

func TestAgentTiers(t *testing.T) {
	tests := []struct {
		base string
		n    int
		want []string
	}{
		{config.TierFast, 3, []string{"fast", "fast", "fast"}},
		{config.TierStandard, 3, []string{"standard", "fast", "fast"}},
		{config.TierStandard, 4, []string{"standard", "standard", "fast", "fast"}},
		{config.TierDeep, 3, []string{"deep", "deep", "standard"}},
		{config.TierMaximum, 3, []string{"maximum", "maximum", "maximum"}},
		{config.TierStandard, 1, []string{"standard"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", tt.base, tt.n), func(t *testing.T) {
			got := agentTiers(tt.base, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("agentTiers() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("agentTiers()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTextSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "the answer is blue", "the answer is blue", 1},
		{"disjoint", "alpha bravo charlie", "delta echo foxtrot", 0},
		{"partial", "the cat sat on the mat", "the dog sat on the log", 1.0 / 3.0},
		{"both empty", "", "", 1},
		{"one empty", "something here", "", 0},
		{"punctuation ignored", "Answer: blue!", "answer blue", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := textSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("textSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestParseConclusion(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		wantConclusion string
		wantConfidence float64
	}{
		{
			name:           "clean json",
			text:           `{"conclusion": "blue", "confidence": 0.9}`,
			wantConclusion: "blue",
			wantConfidence: 0.9,
		},
		{
			name:           "wrapped in prose",
			text:           "Here you go: {\"conclusion\": \"blue\", \"confidence\": 0.8} hope that helps",
			wantConclusion: "blue",
			wantConfidence: 0.8,
		},
		{
			name:           "confidence clamped",
			text:           `{"conclusion": "blue", "confidence": 1.7}`,
			wantConclusion: "blue",
			wantConfidence: 1,
		},
		{
			name:           "not json falls back to raw text",
			text:           "  the sky is blue  ",
			wantConclusion: "the sky is blue",
			wantConfidence: 0.5,
		},
		{
			name:           "missing conclusion falls back to raw text",
			text:           `{"confidence": 0.9}`,
			wantConclusion: `{"confidence": 0.9}`,
			wantConfidence: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conclusion, confidence := parseConclusion(tt.text)
			if conclusion != tt.wantConclusion {
				t.Errorf("conclusion = %q, want %q", conclusion, tt.wantConclusion)
			}
			if math.Abs(confidence-tt.wantConfidence) > 1e-9 {
				t.Errorf("confidence = %v, want %v", confidence, tt.wantConfidence)
			}
		})
	}
}
