package complexity

import "testing"

func TestLevelFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{0.0, LevelTrivial},
		{0.19, LevelTrivial},
		{0.2, LevelSimple},
		{0.39, LevelSimple},
		{0.4, LevelModerate},
		{0.59, LevelModerate},
		{0.6, LevelComplex},
		{0.79, LevelComplex},
		{0.8, LevelExtreme},
		{1.0, LevelExtreme},
	}

	for _, tt := range tests {
		if got := LevelFromScore(tt.score); got != tt.want {
			t.Errorf("LevelFromScore(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestDefaultStrategy(t *testing.T) {
	tests := []struct {
		level Level
		want  Strategy
	}{
		{LevelTrivial, StrategyChainOfThought},
		{LevelSimple, StrategyChainOfThought},
		{LevelModerate, StrategyTreeOfThought},
		{LevelComplex, StrategyMultiAgent},
		{LevelExtreme, StrategyHybrid},
		{Level("unknown"), StrategyChainOfThought},
	}

	for _, tt := range tests {
		if got := DefaultStrategy(tt.level); got != tt.want {
			t.Errorf("DefaultStrategy(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestLevelRank(t *testing.T) {
	ordered := []Level{LevelTrivial, LevelSimple, LevelModerate, LevelComplex, LevelExtreme}
	for i, level := range ordered {
		if got := level.Rank(); got != i {
			t.Errorf("%v.Rank() = %d, want %d", level, got, i)
		}
	}
	if got := Level("bogus").Rank(); got != -1 {
		t.Errorf("unknown level rank = %d, want -1", got)
	}
}

func TestParseLevel(t *testing.T) {
	if _, err := ParseLevel("moderate"); err != nil {
		t.Errorf("ParseLevel(moderate) unexpected error: %v", err)
	}
	if _, err := ParseLevel("medium"); err == nil {
		t.Error("ParseLevel(medium) expected error")
	}
	if _, err := ParseLevel(""); err == nil {
		t.Error("ParseLevel of empty string expected error")
	}
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"chain_of_thought", "tree_of_thought", "multi_agent", "hybrid"} {
		if _, err := ParseStrategy(name); err != nil {
			t.Errorf("ParseStrategy(%s) unexpected error: %v", name, err)
		}
	}
	if _, err := ParseStrategy("divide_and_conquer"); err == nil {
		t.Error("ParseStrategy(divide_and_conquer) expected error")
	}
}

func TestConservative(t *testing.T) {
	got := Conservative()

	if got.Level != LevelSimple {
		t.Errorf("level = %v, want %v", got.Level, LevelSimple)
	}
	if got.Strategy != StrategyChainOfThought {
		t.Errorf("strategy = %v, want %v", got.Strategy, StrategyChainOfThought)
	}
	if !got.Degraded {
		t.Error("conservative verdict should be marked degraded")
	}
	if LevelFromScore(got.Score) != got.Level {
		t.Errorf("score %v is inconsistent with level %v", got.Score, got.Level)
	}
}
