// Package complexity scores prompts for difficulty and recommends a
// reasoning strategy. The heuristic scorer is pure arithmetic over
// structural signals; an optional LLM classifier refines its verdict.
// Analysis never fails a request: internal failures degrade to a
// conservative verdict instead of propagating.
package complexity

import "fmt"

// Level grades task difficulty.
type Level string

const (
	LevelTrivial  Level = "trivial"
	LevelSimple   Level = "simple"
	LevelModerate Level = "moderate"
	LevelComplex  Level = "complex"
	LevelExtreme  Level = "extreme"
)

// levelOrder lists levels from easiest to hardest.
var levelOrder = []Level{LevelTrivial, LevelSimple, LevelModerate, LevelComplex, LevelExtreme}

// Rank returns the level's position from easiest (0) to hardest (4), or -1
// for an unknown level.
func (l Level) Rank() int {
	for i, known := range levelOrder {
		if l == known {
			return i
		}
	}
	return -1
}

// ParseLevel validates a level name.
func ParseLevel(s string) (Level, error) {
	if Level(s).Rank() < 0 {
		return "", fmt.Errorf("unknown complexity level %q", s)
	}
	return Level(s), nil
}

// Strategy identifies a reasoning algorithm.
type Strategy string

const (
	StrategyChainOfThought Strategy = "chain_of_thought"
	StrategyTreeOfThought  Strategy = "tree_of_thought"
	StrategyMultiAgent     Strategy = "multi_agent"
	StrategyHybrid         Strategy = "hybrid"
)

var knownStrategies = map[Strategy]bool{
	StrategyChainOfThought: true,
	StrategyTreeOfThought:  true,
	StrategyMultiAgent:     true,
	StrategyHybrid:         true,
}

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	if !knownStrategies[Strategy(s)] {
		return "", fmt.Errorf("unknown strategy %q", s)
	}
	return Strategy(s), nil
}

// Analysis is the analyzer's verdict on one prompt. Produced once per
// request and never mutated afterwards.
type Analysis struct {
	// Level grades the task from trivial to extreme.
	Level Level `json:"level"`

	// Score is the numeric difficulty in [0,1] behind the level.
	Score float64 `json:"score"`

	// Strategy is the recommended reasoning strategy.
	Strategy Strategy `json:"recommended_strategy"`

	// Signals holds per-signal heuristic contributions in [0,1], keyed by
	// signal name.
	Signals map[string]float64 `json:"signals,omitempty"`

	// Rationale is the classifier's reasoning when LLM assistance ran.
	Rationale string `json:"rationale,omitempty"`

	// Degraded marks that the configured analysis pipeline could not
	// complete and a fallback verdict was used instead.
	Degraded bool `json:"degraded,omitempty"`
}

// LevelFromScore buckets a [0,1] difficulty score into a level.
func LevelFromScore(score float64) Level {
	switch {
	case score < 0.2:
		return LevelTrivial
	case score < 0.4:
		return LevelSimple
	case score < 0.6:
		return LevelModerate
	case score < 0.8:
		return LevelComplex
	default:
		return LevelExtreme
	}
}

// DefaultStrategy maps a difficulty level to its recommended strategy.
func DefaultStrategy(level Level) Strategy {
	switch level {
	case LevelModerate:
		return StrategyTreeOfThought
	case LevelComplex:
		return StrategyMultiAgent
	case LevelExtreme:
		return StrategyHybrid
	default:
		return StrategyChainOfThought
	}
}

// Conservative is the verdict used when no scoring path could run at all:
// low complexity, sequential reasoning.
func Conservative() *Analysis {
	return &Analysis{
		Level:    LevelSimple,
		Score:    0.3,
		Strategy: StrategyChainOfThought,
		Degraded: true,
	}
}
