package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cogito-ai/cogito/pkg/llms"
)

const evaluationSystem = `You are judging one step in an exploration of a task. Score how promising the step is for solving the task.

- score: 0.0 (dead end) to 1.0 (directly on target)
- confidence: how sure you are of the score
- terminal: true only if the step already contains a complete answer to the task
- expand: true if the step is worth developing further
- rationale: one or two sentences
- concerns: specific weaknesses, if any
- suggestions: concrete improvements, if any`

var evaluationSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"score": map[string]interface{}{
			"type":    "number",
			"minimum": 0.0,
			"maximum": 1.0,
		},
		"confidence": map[string]interface{}{
			"type":    "number",
			"minimum": 0.0,
			"maximum": 1.0,
		},
		"rationale": map[string]interface{}{"type": "string"},
		"terminal":  map[string]interface{}{"type": "boolean"},
		"expand":    map[string]interface{}{"type": "boolean"},
		"concerns": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"suggestions": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
	"required": []string{"score", "confidence", "terminal", "expand"},
}

func evaluationPrompt(task *Task, step *Step, path []*Step) string {
	var b strings.Builder

	b.WriteString(taskBlock(task))

	if len(path) > 0 {
		b.WriteString("\nPath leading to the step:\n")
		for i, prior := range path {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, prior.Thought))
		}
	}

	b.WriteString("\nStep under evaluation:\n")
	b.WriteString(step.Thought)
	b.WriteString("\n\nJudge this step.")
	return b.String()
}

// evaluator scores candidate steps with the routed model at a fixed low
// temperature.
type evaluator struct {
	caller *caller
	temp   float64
}

// evaluate judges a step and attaches the verdict to it. The judge
// call's usage folds into the evaluated step so node accounting stays
// node-centric. A provider failure propagates; an unparseable verdict
// degrades to a neutral one rather than losing the node.
func (e *evaluator) evaluate(ctx context.Context, task *Task, step *Step, path []*Step, thinking int) error {
	resp, _, err := e.caller.reason(ctx, callSpec{
		SessionID:   task.SessionID,
		Label:       "evaluate",
		Provider:    task.Decision.Model.Provider,
		Model:       task.Decision.Model.Name,
		Prompt:      evaluationPrompt(task, step, path),
		System:      evaluationSystem,
		Temperature: &e.temp,
		MaxTokens:   500,
		Thinking:    thinking,
		Structured: &llms.StructuredOutputConfig{
			Format:     "json",
			Schema:     evaluationSchema,
			SchemaName: "step_evaluation",
			Prefill:    "{",
		},
	})
	if err != nil {
		return err
	}

	step.Eval = parseEvaluation(resp.Text)
	step.Usage = step.Usage.Add(resp.Usage)
	return nil
}

type evaluationPayload struct {
	Score       float64  `json:"score"`
	Confidence  float64  `json:"confidence"`
	Rationale   string   `json:"rationale"`
	Terminal    bool     `json:"terminal"`
	Expand      *bool    `json:"expand"`
	Concerns    []string `json:"concerns"`
	Suggestions []string `json:"suggestions"`
}

// parseEvaluation extracts a verdict from judge output. It tries the raw
// text, then the outermost JSON object for judges that wrap their answer
// in prose. When neither parses, it returns a neutral verdict so the
// node ranks mid-beam instead of vanishing on a formatting slip.
func parseEvaluation(text string) *Evaluation {
	payload, ok := decodeEvaluation(text)
	if !ok {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start >= 0 && end > start {
			payload, ok = decodeEvaluation(text[start : end+1])
		}
	}
	if !ok {
		return &Evaluation{
			Score:      0.5,
			Confidence: 0.3,
			Expand:     true,
			Rationale:  "unparseable evaluation response",
		}
	}

	eval := &Evaluation{
		Score:       clamp01(payload.Score),
		Confidence:  clamp01(payload.Confidence),
		Rationale:   payload.Rationale,
		Terminal:    payload.Terminal,
		Concerns:    payload.Concerns,
		Suggestions: payload.Suggestions,
	}

	// A judge that omits expand gets the permissive reading: non-terminal
	// steps stay expandable.
	if payload.Expand != nil {
		eval.Expand = *payload.Expand
	} else {
		eval.Expand = !payload.Terminal
	}

	return eval
}

func decodeEvaluation(text string) (evaluationPayload, bool) {
	var payload evaluationPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return evaluationPayload{}, false
	}
	return payload, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
