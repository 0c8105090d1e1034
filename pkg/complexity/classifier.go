package complexity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/llms"
)

const classifierSystemPrompt = `You are a task complexity classifier. Grade how much reasoning effort the task needs, not how long its text is.

Levels:
- trivial: single fact, lookup, or arithmetic
- simple: short explanation, no multi-step reasoning
- moderate: multi-step reasoning over one problem
- complex: several interacting subproblems or a design task
- extreme: open-ended problem needing decomposition, exploration, and synthesis

Strategies:
- chain_of_thought: sequential reasoning
- tree_of_thought: explore and compare alternative paths
- multi_agent: parallel perspectives with conflict resolution
- hybrid: staged decomposition, exploration, and synthesis`

// Excerpt caps keep the classification call cheap even for huge inputs.
const (
	promptExcerptLen  = 4000
	contextExcerptLen = 2000
)

var classifierSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"level": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"trivial", "simple", "moderate", "complex", "extreme"},
			"description": "Difficulty grade.",
		},
		"score": map[string]interface{}{
			"type":        "number",
			"description": "Difficulty from 0.0 to 1.0, consistent with the level.",
		},
		"strategy": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"chain_of_thought", "tree_of_thought", "multi_agent", "hybrid"},
			"description": "Best-suited reasoning strategy.",
		},
		"rationale": map[string]interface{}{
			"type":        "string",
			"description": "One sentence on what drives the grade.",
		},
	},
	"required": []string{"level", "score"},
}

// classify asks the configured provider to grade the task with structured
// output. Any failure is returned to the caller, which falls back to the
// heuristic verdict.
func (a *Analyzer) classify(ctx context.Context, prompt, contextText string) (*Analysis, error) {
	var sb strings.Builder
	sb.WriteString("Task:\n")
	sb.WriteString(excerpt(prompt, promptExcerptLen))
	if contextText != "" {
		sb.WriteString("\n\nSupplied context (excerpt):\n")
		sb.WriteString(excerpt(contextText, contextExcerptLen))
	}
	sb.WriteString("\n\nClassify the task.")

	resp, err := a.provider.Reason(ctx, &llms.Request{
		Prompt:       sb.String(),
		SystemPrompt: classifierSystemPrompt,
		Model:        a.cfg.Model,
		Temperature:  config.Float64Ptr(0.1),
		MaxTokens:    300,
		Structured: &llms.StructuredOutputConfig{
			Format:     "json",
			Schema:     classifierSchema,
			SchemaName: "complexity_analysis",
			Prefill:    "{",
		},
	})
	if err != nil {
		return nil, err
	}

	return parseClassification(resp.Text)
}

type classification struct {
	Level     string  `json:"level"`
	Score     float64 `json:"score"`
	Strategy  string  `json:"strategy"`
	Rationale string  `json:"rationale"`
}

// parseClassification decodes the classifier's JSON verdict. Responses
// wrapped in prose or markdown fences are salvaged by extracting the
// outermost object.
func parseClassification(text string) (*Analysis, error) {
	var c classification
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start == -1 || end <= start {
			return nil, fmt.Errorf("no JSON object in classifier response")
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &c); err != nil {
			return nil, fmt.Errorf("failed to parse classifier response: %w", err)
		}
	}

	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	score := c.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	// An unknown strategy name is dropped rather than failing the whole
	// classification; the level still carries a sound default.
	strategy := DefaultStrategy(level)
	if parsed, err := ParseStrategy(c.Strategy); err == nil {
		strategy = parsed
	}

	return &Analysis{
		Level:     level,
		Score:     score,
		Strategy:  strategy,
		Rationale: c.Rationale,
	}, nil
}

func excerpt(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
