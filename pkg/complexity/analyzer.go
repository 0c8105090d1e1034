package complexity

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/llms"
	"github.com/cogito-ai/cogito/pkg/logger"
	"github.com/cogito-ai/cogito/pkg/tokens"
)

// tokenizerModel picks the encoding used for length signals. Unknown names
// fall back to cl100k_base inside the counter, so accuracy here only needs
// to be ballpark.
const tokenizerModel = "gpt-4"

// Signal weights sum to 1 so the composite score stays in [0,1].
var signalWeights = map[string]float64{
	"length":      0.30,
	"reasoning":   0.20,
	"structure":   0.15,
	"technical":   0.15,
	"constraints": 0.10,
	"context":     0.10,
}

// Keyword groups are matched case-insensitively and each keyword counts
// once per prompt regardless of repetition.
var (
	reasoningKeywords = []string{
		"analyze", "architect", "compare", "derive", "design",
		"evaluate", "explain why", "optimize", "prove", "reason about",
		"step by step", "trade-off", "tradeoff", "weigh",
	}
	constraintKeywords = []string{
		"at least", "at most", "constraint", "exactly", "must",
		"no more than", "require", "within", "without using",
	}
	technicalKeywords = []string{
		"algorithm", "api", "code", "database", "debug", "function",
		"json", "regex", "schema", "sql", "stack trace", "yaml",
	}
	sequenceKeywords = []string{
		"additionally", "after that", "finally", "first", "second",
		"then",
	}
)

var markers = struct {
	codeFence *regexp.Regexp
	listItem  *regexp.Regexp
}{
	codeFence: regexp.MustCompile("```"),
	listItem:  regexp.MustCompile(`(?m)^\s*(?:[-*]|\d+[.)])\s+`),
}

// Analyzer scores prompts. The zero value is not usable; construct with
// NewAnalyzer.
type Analyzer struct {
	cfg      config.AnalyzerConfig
	provider llms.Provider
	counter  *tokens.Counter
	log      *slog.Logger
}

// NewAnalyzer builds an analyzer. provider enables LLM-assisted
// classification and may be nil; with use_llm set and no provider the
// analyzer stays heuristic and marks its results degraded.
func NewAnalyzer(cfg config.AnalyzerConfig, provider llms.Provider) *Analyzer {
	// Counting falls back to the character heuristic when no encoder is
	// available.
	counter, _ := tokens.NewCounter(tokenizerModel)

	return &Analyzer{
		cfg:      cfg,
		provider: provider,
		counter:  counter,
		log:      logger.For("complexity"),
	}
}

// Analyze scores a prompt and recommends a strategy. It never returns an
// error: if the configured LLM classifier cannot run, the heuristic verdict
// is returned with Degraded set, and if scoring itself panics the
// conservative verdict is returned.
func (a *Analyzer) Analyze(ctx context.Context, prompt, contextText string) (analysis *Analysis) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("complexity analysis panicked, using conservative verdict", "panic", r)
			analysis = Conservative()
		}
	}()

	analysis = a.heuristic(prompt, contextText)
	if !a.cfg.UseLLM {
		return analysis
	}
	if a.provider == nil {
		a.log.Warn("use_llm set but no classifier provider available, keeping heuristic verdict")
		analysis.Degraded = true
		return analysis
	}

	refined, err := a.classify(ctx, prompt, contextText)
	if err != nil {
		a.log.Warn("LLM complexity classification failed, keeping heuristic verdict",
			"error", err, "level", analysis.Level)
		analysis.Degraded = true
		return analysis
	}
	refined.Signals = analysis.Signals
	return refined
}

// heuristic computes the weighted signal score. It is total: any input,
// including empty strings, yields a verdict.
func (a *Analyzer) heuristic(prompt, contextText string) *Analysis {
	lower := strings.ToLower(prompt)

	signals := map[string]float64{
		"length":      ratio(float64(a.countTokens(prompt)), 600),
		"reasoning":   ratio(float64(countPresent(lower, reasoningKeywords)), 5),
		"structure":   ratio(structureHits(prompt, lower), 6),
		"technical":   ratio(technicalHits(prompt, lower), 4),
		"constraints": ratio(float64(countPresent(lower, constraintKeywords)), 5),
		"context":     ratio(float64(a.countTokens(contextText)), 1200),
	}

	score := 0.0
	for name, weight := range signalWeights {
		score += weight * signals[name]
	}
	level := LevelFromScore(score)

	return &Analysis{
		Level:    level,
		Score:    score,
		Strategy: DefaultStrategy(level),
		Signals:  signals,
	}
}

func (a *Analyzer) countTokens(text string) int {
	if text == "" {
		return 0
	}
	if a.counter != nil {
		return a.counter.Count(text)
	}
	return tokens.Estimate(text)
}

// ratio maps v onto [0,1] against a saturation point.
func ratio(v, saturation float64) float64 {
	if v <= 0 {
		return 0
	}
	if v >= saturation {
		return 1
	}
	return v / saturation
}

func countPresent(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// structureHits counts signs of a multi-part ask: list items, questions
// beyond the first, and sequencing words.
func structureHits(prompt, lower string) float64 {
	hits := len(markers.listItem.FindAllStringIndex(prompt, -1))
	if q := strings.Count(prompt, "?"); q > 1 {
		hits += q - 1
	}
	hits += countPresent(lower, sequenceKeywords)
	return float64(hits)
}

// technicalHits counts code or schema markers. Fenced blocks weigh double
// since they signal concrete artifacts to reason over.
func technicalHits(prompt, lower string) float64 {
	fences := len(markers.codeFence.FindAllStringIndex(prompt, -1)) / 2
	return float64(2*fences + countPresent(lower, technicalKeywords))
}
