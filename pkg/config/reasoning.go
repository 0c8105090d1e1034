package config

import (
	"fmt"
	"time"
)

// OrchestratorConfig bounds a reasoning request as a whole.
type OrchestratorConfig struct {
	// DefaultTimeout bounds a full think/thinkStream call. Exceeding it
	// cancels the session.
	DefaultTimeout time.Duration `yaml:"default_timeout,omitempty" json:"default_timeout,omitempty" jsonschema:"title=Default Timeout,description=Per-request timeout"`

	// MaxParallelOperations caps concurrent provider calls within one
	// request (swarm agents, ToT candidates).
	MaxParallelOperations int `yaml:"max_parallel_operations,omitempty" json:"max_parallel_operations,omitempty" jsonschema:"title=Max Parallel Operations,minimum=1,default=8"`

	// StreamBuffer is the capacity of the thinkStream event channel.
	StreamBuffer int `yaml:"stream_buffer,omitempty" json:"stream_buffer,omitempty" jsonschema:"title=Stream Buffer,minimum=1,default=64"`
}

func (c *OrchestratorConfig) SetDefaults() {
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 5 * time.Minute
	}
	if c.MaxParallelOperations == 0 {
		c.MaxParallelOperations = 8
	}
	if c.StreamBuffer == 0 {
		c.StreamBuffer = 64
	}
}

func (c *OrchestratorConfig) Validate() error {
	if c.DefaultTimeout < 0 {
		return fmt.Errorf("default_timeout must be non-negative")
	}
	if c.MaxParallelOperations < 1 {
		return fmt.Errorf("max_parallel_operations must be at least 1")
	}
	if c.StreamBuffer < 1 {
		return fmt.Errorf("stream_buffer must be at least 1")
	}
	return nil
}

// AnalyzerConfig configures the complexity analyzer.
type AnalyzerConfig struct {
	// UseLLM enables LLM-assisted classification on top of the heuristic
	// scorer. Any LLM failure degrades to the heuristic result.
	UseLLM bool `yaml:"use_llm,omitempty" json:"use_llm,omitempty" jsonschema:"title=Use LLM,default=false"`

	// Provider is the provider key used for LLM-assisted classification.
	// Empty selects the first configured provider.
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider"`

	// Model overrides the provider's default model for classification.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model"`
}

func (c *AnalyzerConfig) SetDefaults() {}

func (c *AnalyzerConfig) Validate() error { return nil }

// RoutingConfig configures model selection.
type RoutingConfig struct {
	// PreferProvider breaks ties toward this provider when several models
	// serve the resolved tier. First registered wins otherwise.
	PreferProvider string `yaml:"prefer_provider,omitempty" json:"prefer_provider,omitempty" jsonschema:"title=Prefer Provider"`
}

func (c *RoutingConfig) SetDefaults() {}

func (c *RoutingConfig) Validate() error { return nil }

// BudgetConfig configures budget accounting.
type BudgetConfig struct {
	// TierRates maps tier name to estimated credits per 1000 thinking
	// tokens, used for the session cost estimate.
	TierRates map[string]float64 `yaml:"tier_rates,omitempty" json:"tier_rates,omitempty" jsonschema:"title=Tier Rates,description=Credits per 1000 thinking tokens by tier"`
}

func (c *BudgetConfig) SetDefaults() {
	if c.TierRates == nil {
		c.TierRates = map[string]float64{
			TierFast:     0.5,
			TierStandard: 1.0,
			TierDeep:     2.5,
			TierMaximum:  5.0,
		}
	}
}

func (c *BudgetConfig) Validate() error {
	for tier, rate := range c.TierRates {
		if !validTiers[tier] {
			return fmt.Errorf("invalid tier %q in tier_rates", tier)
		}
		if rate < 0 {
			return fmt.Errorf("tier_rates[%s] must be non-negative", tier)
		}
	}
	return nil
}

// StrategiesConfig tunes the reasoning strategy engines.
type StrategiesConfig struct {
	TreeOfThought TreeOfThoughtConfig `yaml:"tree_of_thought,omitempty" json:"tree_of_thought,omitempty" jsonschema:"title=Tree of Thought"`
	Swarm         SwarmConfig         `yaml:"swarm,omitempty" json:"swarm,omitempty" jsonschema:"title=Swarm"`
}

func (c *StrategiesConfig) SetDefaults() {
	c.TreeOfThought.SetDefaults()
	c.Swarm.SetDefaults()
}

func (c *StrategiesConfig) Validate() error {
	if err := c.TreeOfThought.Validate(); err != nil {
		return fmt.Errorf("tree_of_thought: %w", err)
	}
	if err := c.Swarm.Validate(); err != nil {
		return fmt.Errorf("swarm: %w", err)
	}
	return nil
}

// TreeOfThoughtConfig tunes beam search.
type TreeOfThoughtConfig struct {
	// BeamWidth is the number of surviving nodes kept per depth.
	BeamWidth int `yaml:"beam_width,omitempty" json:"beam_width,omitempty" jsonschema:"title=Beam Width,minimum=1,default=5"`

	// MaxDepth bounds tree depth.
	MaxDepth int `yaml:"max_depth,omitempty" json:"max_depth,omitempty" jsonschema:"title=Max Depth,minimum=1,default=4"`

	// MaxBranches is the candidate continuations generated per node.
	MaxBranches int `yaml:"max_branches,omitempty" json:"max_branches,omitempty" jsonschema:"title=Max Branches,minimum=1,default=3"`

	// EvalThreshold is the minimum score for a node to be expanded further.
	EvalThreshold float64 `yaml:"eval_threshold,omitempty" json:"eval_threshold,omitempty" jsonschema:"title=Eval Threshold,minimum=0,maximum=1,default=0.5"`

	// PruneThreshold is the score below which a node is discarded outright.
	PruneThreshold float64 `yaml:"prune_threshold,omitempty" json:"prune_threshold,omitempty" jsonschema:"title=Prune Threshold,minimum=0,maximum=1,default=0.3"`

	// MinSuccessScore declares early success on a terminal node at or
	// above this score.
	MinSuccessScore float64 `yaml:"min_success_score,omitempty" json:"min_success_score,omitempty" jsonschema:"title=Min Success Score,minimum=0,maximum=1,default=0.7"`

	// GenerationTemperature samples candidate thoughts. Values below 0.8
	// are raised to 0.8 to keep branches diverse.
	GenerationTemperature float64 `yaml:"generation_temperature,omitempty" json:"generation_temperature,omitempty" jsonschema:"title=Generation Temperature,default=0.8"`

	// EvaluationTemperature scores candidates.
	EvaluationTemperature float64 `yaml:"evaluation_temperature,omitempty" json:"evaluation_temperature,omitempty" jsonschema:"title=Evaluation Temperature,default=0.3"`
}

func (c *TreeOfThoughtConfig) SetDefaults() {
	if c.BeamWidth == 0 {
		c.BeamWidth = 5
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = 4
	}
	if c.MaxBranches == 0 {
		c.MaxBranches = 3
	}
	if c.EvalThreshold == 0 {
		c.EvalThreshold = 0.5
	}
	if c.PruneThreshold == 0 {
		c.PruneThreshold = 0.3
	}
	if c.MinSuccessScore == 0 {
		c.MinSuccessScore = 0.7
	}
	if c.GenerationTemperature < 0.8 {
		c.GenerationTemperature = 0.8
	}
	if c.EvaluationTemperature == 0 {
		c.EvaluationTemperature = 0.3
	}
}

func (c *TreeOfThoughtConfig) Validate() error {
	if c.BeamWidth < 1 {
		return fmt.Errorf("beam_width must be at least 1")
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be at least 1")
	}
	if c.MaxBranches < 1 {
		return fmt.Errorf("max_branches must be at least 1")
	}
	for name, v := range map[string]float64{
		"eval_threshold":    c.EvalThreshold,
		"prune_threshold":   c.PruneThreshold,
		"min_success_score": c.MinSuccessScore,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if c.PruneThreshold > c.EvalThreshold {
		return fmt.Errorf("prune_threshold must not exceed eval_threshold")
	}
	return nil
}

// Conflict resolution modes for the swarm engine.
const (
	ResolutionVote   = "vote"
	ResolutionDebate = "debate"
	ResolutionHybrid = "hybrid"
)

// SwarmConfig tunes multi-agent deliberation.
type SwarmConfig struct {
	// Agents is the number of parallel agents. Bounded at runtime by the
	// orchestrator's max_parallel_operations.
	Agents int `yaml:"agents,omitempty" json:"agents,omitempty" jsonschema:"title=Agents,minimum=1,default=3"`

	// Resolution selects how conflicting conclusions are reconciled:
	// vote, debate, or hybrid (debate then vote).
	Resolution string `yaml:"resolution,omitempty" json:"resolution,omitempty" jsonschema:"title=Resolution,enum=vote,enum=debate,enum=hybrid,default=hybrid"`

	// DebateRounds bounds debate iterations when escalation is needed.
	DebateRounds int `yaml:"debate_rounds,omitempty" json:"debate_rounds,omitempty" jsonschema:"title=Debate Rounds,minimum=1,default=2"`

	// MaxStepsPerAgent bounds each agent's sequential reasoning steps.
	MaxStepsPerAgent int `yaml:"max_steps_per_agent,omitempty" json:"max_steps_per_agent,omitempty" jsonschema:"title=Max Steps Per Agent,minimum=1,default=3"`

	// Temperature samples agent reasoning.
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,default=0.7"`
}

func (c *SwarmConfig) SetDefaults() {
	if c.Agents == 0 {
		c.Agents = 3
	}
	if c.Resolution == "" {
		c.Resolution = ResolutionHybrid
	}
	if c.DebateRounds == 0 {
		c.DebateRounds = 2
	}
	if c.MaxStepsPerAgent == 0 {
		c.MaxStepsPerAgent = 3
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
}

func (c *SwarmConfig) Validate() error {
	if c.Agents < 1 {
		return fmt.Errorf("agents must be at least 1")
	}
	switch c.Resolution {
	case ResolutionVote, ResolutionDebate, ResolutionHybrid:
	default:
		return fmt.Errorf("invalid resolution %q (valid: vote, debate, hybrid)", c.Resolution)
	}
	if c.DebateRounds < 1 {
		return fmt.Errorf("debate_rounds must be at least 1")
	}
	if c.MaxStepsPerAgent < 1 {
		return fmt.Errorf("max_steps_per_agent must be at least 1")
	}
	return nil
}
