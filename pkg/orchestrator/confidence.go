package orchestrator

import (
	"math"

	"github.com/cogito-ai/cogito/pkg/reasoning"
)

// Confidence heuristic parameters. Nothing ever reports above the cap.
const (
	confidenceBase = 0.7
	confidenceCap  = 0.95

	// deliberationChars is the combined reasoning-text length past which
	// the deliberation bonus applies.
	deliberationChars = 500

	// substantialAnswerChars is the answer length past which the
	// substance bonus applies.
	substantialAnswerChars = 1000
)

// scoreConfidence grades a result in [0, 0.95]. Engines that compute
// their own confidence, such as tree search scores or swarm agreement,
// keep it subject to the cap. The rest get a heuristic grade: a base
// value plus bonuses keyed to how much visible work the run shows.
func scoreConfidence(result *reasoning.Result) float64 {
	if result.Confidence > 0 {
		return math.Min(result.Confidence, confidenceCap)
	}

	score := confidenceBase
	if deliberationLength(result.Steps) > deliberationChars {
		score += 0.1
	}
	score += 0.1 * math.Min(1, float64(result.Meta.StepsEvaluated)/3)
	if len(result.Answer) > substantialAnswerChars {
		score += 0.05
	}
	return math.Min(score, confidenceCap)
}

// deliberationLength measures the run's visible reasoning: every step's
// thought plus any extended thinking trace.
func deliberationLength(steps []*reasoning.Step) int {
	n := 0
	for _, step := range steps {
		n += len(step.Thought) + len(step.Thinking)
	}
	return n
}
