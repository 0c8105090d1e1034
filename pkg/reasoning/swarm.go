package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cogito-ai/cogito/pkg/budget"
	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/llms"
	"github.com/cogito-ai/cogito/pkg/logger"
	"github.com/cogito-ai/cogito/pkg/routing"
)

const (
	// swarmConclusionTemp samples the structured conclusion and debate
	// calls; swarmSynthesisTemp samples the final merge.
	swarmConclusionTemp = 0.3
	swarmSynthesisTemp  = 0.5

	// conflictThreshold is the lexical similarity below which two
	// conclusions count as conflicting.
	conflictThreshold = 0.2
)

var conclusionSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"conclusion": map[string]interface{}{"type": "string"},
		"confidence": map[string]interface{}{
			"type":    "number",
			"minimum": 0.0,
			"maximum": 1.0,
		},
		"key_points": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
	"required": []string{"conclusion", "confidence"},
}

// Swarm runs several role-primed agents over the task in parallel, each
// on its own model tier, then reconciles their conclusions. A single
// failed agent is tolerated and reported; the strategy fails only when
// every agent does.
type Swarm struct {
	call        *caller
	catalog     *routing.Catalog
	cfg         config.SwarmConfig
	maxParallel int
	log         *slog.Logger
}

func NewSwarm(providers *llms.ProviderRegistry, catalog *routing.Catalog, budgets *budget.Manager, cfg config.SwarmConfig, maxParallel int) *Swarm {
	cfg.SetDefaults()
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Swarm{
		call:        &caller{providers: providers, budget: budgets},
		catalog:     catalog,
		cfg:         cfg,
		maxParallel: maxParallel,
		log:         logger.For("reasoning.swarm"),
	}
}

func (s *Swarm) Name() complexity.Strategy {
	return complexity.StrategyMultiAgent
}

// swarmAgent is one agent's run state: its persona, the model tier it
// reasons on, and the conclusion it lands on.
type swarmAgent struct {
	index int
	role  agentRole
	tier  string
	model config.ModelConfig

	lastStepID string
	depth      int

	conclusion string
	confidence float64
	err        error
}

func (s *Swarm) Execute(ctx context.Context, task *Task) (*Result, error) {
	started := time.Now()
	ar := newArena()
	ar.onAdd = task.OnStep
	counters := map[string]int{}
	var degradations []string

	agents := s.buildAgents(task)

	if err := s.runAgents(ctx, task, ar, agents); err != nil {
		return nil, err
	}

	var alive []*swarmAgent
	for _, a := range agents {
		if a.err != nil {
			counters["agents_failed"]++
			degradations = append(degradations, fmt.Sprintf("agent %s failed: %v", a.role.name, a.err))
			continue
		}
		alive = append(alive, a)
	}
	if len(alive) == 0 {
		return nil, ErrSwarmAllAgentsFailed
	}

	conflicts := conflictingAgents(alive)
	counters["conflicts_detected"] = len(conflicts)

	resolution := "none"
	if len(conflicts) > 0 {
		var err error
		resolution, err = s.resolve(ctx, task, ar, alive, counters)
		if err != nil {
			return nil, err
		}
	}

	final := s.finalSet(alive, resolution, counters)

	answer, synthErr := s.synthesize(ctx, task, ar, final)
	if synthErr != nil {
		if aborted(synthErr) {
			return nil, synthErr
		}
		degradations = append(degradations, "synthesis failed: "+synthErr.Error())
		answer = bestConclusion(final)
	}

	result := buildResult(complexity.StrategyMultiAgent, ar, started)
	result.Success = true
	result.Answer = answer
	result.Confidence = swarmConfidence(final, alive)
	result.Meta.Resolution = resolution
	result.Meta.Counters = counters
	result.Meta.Degradations = degradations
	for _, a := range alive {
		result.Meta.Contributors = append(result.Meta.Contributors, a.role.name)
	}

	s.log.Debug("swarm complete",
		"session_id", task.SessionID,
		"agents", len(agents),
		"alive", len(alive),
		"resolution", resolution,
		"tokens", result.Usage.TotalTokens)

	return result, nil
}

// buildAgents assigns each agent a role, a tier from the decision-biased
// distribution, and the catalog model serving that tier.
func (s *Swarm) buildAgents(task *Task) []*swarmAgent {
	n := s.cfg.Agents
	if n > s.maxParallel {
		n = s.maxParallel
	}

	tiers := agentTiers(task.Decision.Model.Tier, n)
	agents := make([]*swarmAgent, n)
	for i := range agents {
		agents[i] = &swarmAgent{
			index: i,
			role:  roleForAgent(i),
			tier:  tiers[i],
			model: s.modelForTier(tiers[i], task.Decision.Model),
		}
	}
	return agents
}

// agentTiers spreads agents across the decision tier and the tier below
// it. The share kept on the decision tier grows with the tier itself, so
// a maximum-tier decision runs every agent at maximum while a standard
// one keeps a single lead agent there.
func agentTiers(base string, n int) []string {
	ladder := []string{config.TierFast, config.TierStandard, config.TierDeep, config.TierMaximum}
	rank := 0
	for i, t := range ladder {
		if t == base {
			rank = i
			break
		}
	}

	lower := base
	if rank > 0 {
		lower = ladder[rank-1]
	}

	keep := 1
	if n > 1 {
		keep = 1 + rank*(n-1)/3
	}

	out := make([]string, n)
	for i := range out {
		if i < keep {
			out[i] = base
		} else {
			out[i] = lower
		}
	}
	return out
}

func (s *Swarm) modelForTier(tier string, fallback config.ModelConfig) config.ModelConfig {
	if s.catalog != nil {
		if models := s.catalog.ForTier(tier, ""); len(models) > 0 {
			return models[0]
		}
	}
	return fallback
}

// runAgents executes every agent chain in parallel. Per-agent failures
// land on the agent; only cancellation aborts the group.
func (s *Swarm) runAgents(ctx context.Context, task *Task, ar *arena, agents []*swarmAgent) error {
	allowance := s.call.allowance(task.SessionID)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	for _, agent := range agents {
		agent := agent
		g.Go(func() error {
			if err := s.runAgent(gctx, task, ar, agent, allowance); err != nil {
				if aborted(err) {
					return err
				}
				agent.err = err
			}
			return nil
		})
	}
	return g.Wait()
}

// runAgent walks one agent through its free reasoning passes and the
// structured conclusion call. The chain forms a line in the step tree.
func (s *Swarm) runAgent(ctx context.Context, task *Task, ar *arena, agent *swarmAgent, allowance int) error {
	temp := s.cfg.Temperature
	label := "agent_" + agent.role.name

	var prior []*Step
	freePasses := s.cfg.MaxStepsPerAgent - 1
	for i := 0; i < freePasses; i++ {
		step, err := s.call.do(ctx, callSpec{
			SessionID:   task.SessionID,
			Label:       label,
			Provider:    agent.model.Provider,
			Model:       agent.model.Name,
			Prompt:      swarmStepPrompt(task, prior, i, freePasses),
			System:      agent.role.system,
			Temperature: &temp,
			Thinking:    allowance,
			ParentID:    agent.lastStepID,
			Depth:       agent.depth,
			Metadata: map[string]interface{}{
				"agent": agent.role.name,
				"tier":  agent.tier,
				"phase": "reasoning",
			},
		})
		if err != nil {
			return err
		}
		ar.add(step)
		prior = append(prior, step)
		agent.lastStepID = step.ID
		agent.depth++
	}

	return s.concludeAgent(ctx, task, ar, agent, swarmConclusionPrompt(task, prior), swarmConclusionSystem, "conclusion", allowance)
}

// concludeAgent makes one structured conclusion call and records the
// parsed position on the agent. Debate rounds reuse it with their own
// prompt and framing.
func (s *Swarm) concludeAgent(ctx context.Context, task *Task, ar *arena, agent *swarmAgent, prompt, system, phase string, allowance int) error {
	temp := swarmConclusionTemp

	step, err := s.call.do(ctx, callSpec{
		SessionID:   task.SessionID,
		Label:       "agent_" + agent.role.name,
		Provider:    agent.model.Provider,
		Model:       agent.model.Name,
		Prompt:      prompt,
		System:      agent.role.system + "\n\n" + system,
		Temperature: &temp,
		MaxTokens:   800,
		Thinking:    allowance,
		Structured: &llms.StructuredOutputConfig{
			Format:     "json",
			Schema:     conclusionSchema,
			SchemaName: "agent_conclusion",
			Prefill:    "{",
		},
		ParentID: agent.lastStepID,
		Depth:    agent.depth,
		Metadata: map[string]interface{}{
			"agent": agent.role.name,
			"tier":  agent.tier,
			"phase": phase,
		},
	})
	if err != nil {
		return err
	}

	agent.conclusion, agent.confidence = parseConclusion(step.Thought)
	step.Thought = agent.conclusion
	ar.add(step)
	agent.lastStepID = step.ID
	agent.depth++
	return nil
}

// resolve reconciles conflicting conclusions per the configured mode and
// reports which mechanism actually settled the run.
func (s *Swarm) resolve(ctx context.Context, task *Task, ar *arena, alive []*swarmAgent, counters map[string]int) (string, error) {
	switch s.cfg.Resolution {
	case config.ResolutionVote:
		return "vote", nil

	case config.ResolutionDebate:
		// Out of rounds with live conflicts, the synthesis call still
		// sees every position; debate never escalates to a vote.
		if _, err := s.debate(ctx, task, ar, alive, counters); err != nil {
			return "", err
		}
		return "debate", nil

	default: // hybrid
		settled, err := s.debate(ctx, task, ar, alive, counters)
		if err != nil {
			return "", err
		}
		if settled {
			return "debate", nil
		}
		return "debate+vote", nil
	}
}

// debate runs bounded rounds in which every conflicting agent sees the
// other positions and restates its own. Returns true once no conflicts
// remain.
func (s *Swarm) debate(ctx context.Context, task *Task, ar *arena, alive []*swarmAgent, counters map[string]int) (bool, error) {
	for round := 0; round < s.cfg.DebateRounds; round++ {
		conflicted := conflictingAgents(alive)
		if len(conflicted) == 0 {
			return true, nil
		}
		counters["debate_rounds"]++

		allowance := s.call.allowance(task.SessionID)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.maxParallel)

		for _, agent := range conflicted {
			agent := agent
			others := make([]agentConclusion, 0, len(alive)-1)
			for _, other := range alive {
				if other.index == agent.index {
					continue
				}
				others = append(others, agentConclusion{role: other.role.name, conclusion: other.conclusion})
			}
			prompt := swarmDebatePrompt(task, agent.conclusion, others)

			g.Go(func() error {
				err := s.concludeAgent(gctx, task, ar, agent, prompt, swarmDebateSystem, fmt.Sprintf("debate_%d", round+1), allowance)
				if err != nil && !aborted(err) {
					// A failed restatement keeps the agent's prior
					// position instead of dropping the agent.
					s.log.Warn("debate restatement failed", "agent", agent.role.name, "round", round+1, "error", err)
					return nil
				}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return false, err
		}
	}

	return len(conflictingAgents(alive)) == 0, nil
}

// finalSet picks the conclusions that feed synthesis: the majority
// cluster when a vote applies, every live agent otherwise.
func (s *Swarm) finalSet(alive []*swarmAgent, resolution string, counters map[string]int) []*swarmAgent {
	if resolution != "vote" && resolution != "debate+vote" {
		return alive
	}

	clusters := clusterAgents(alive)
	counters["vote_clusters"] = len(clusters)

	winner := clusters[0]
	for _, c := range clusters[1:] {
		if len(c) > len(winner) {
			winner = c
		}
	}
	counters["vote_majority"] = len(winner)
	return winner
}

func (s *Swarm) synthesize(ctx context.Context, task *Task, ar *arena, final []*swarmAgent) (string, error) {
	if len(final) == 1 {
		return final[0].conclusion, nil
	}

	conclusions := make([]agentConclusion, 0, len(final))
	for _, a := range final {
		conclusions = append(conclusions, agentConclusion{role: a.role.name, conclusion: a.conclusion})
	}

	temp := swarmSynthesisTemp
	step, err := s.call.do(ctx, callSpec{
		SessionID:   task.SessionID,
		Label:       "synthesize",
		Provider:    task.Decision.Model.Provider,
		Model:       task.Decision.Model.Name,
		Prompt:      swarmSynthesisPrompt(task, conclusions),
		System:      withOutputFormat(swarmSynthesisSystem, task),
		Temperature: &temp,
		Thinking:    s.call.allowance(task.SessionID),
		Metadata:    map[string]interface{}{"phase": "synthesis"},
	})
	if err != nil {
		return "", err
	}
	ar.add(step)
	return step.Thought, nil
}

// conflictingAgents returns the agents involved in at least one
// conflicting pair.
func conflictingAgents(alive []*swarmAgent) []*swarmAgent {
	inConflict := make(map[int]bool)
	for i := 0; i < len(alive); i++ {
		for j := i + 1; j < len(alive); j++ {
			if textSimilarity(alive[i].conclusion, alive[j].conclusion) < conflictThreshold {
				inConflict[alive[i].index] = true
				inConflict[alive[j].index] = true
			}
		}
	}

	var out []*swarmAgent
	for _, a := range alive {
		if inConflict[a.index] {
			out = append(out, a)
		}
	}
	return out
}

// clusterAgents groups agents whose conclusions agree, greedily against
// each cluster's first member so the grouping is order-stable.
func clusterAgents(alive []*swarmAgent) [][]*swarmAgent {
	var clusters [][]*swarmAgent
	for _, a := range alive {
		placed := false
		for i, cluster := range clusters {
			if textSimilarity(a.conclusion, cluster[0].conclusion) >= conflictThreshold {
				clusters[i] = append(cluster, a)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []*swarmAgent{a})
		}
	}
	return clusters
}

// swarmConfidence blends the mean confidence of the contributing set
// with how much of the swarm agreed with it.
func swarmConfidence(final, alive []*swarmAgent) float64 {
	if len(final) == 0 {
		return 0
	}

	sum := 0.0
	for _, a := range final {
		sum += a.confidence
	}
	mean := sum / float64(len(final))

	clusters := clusterAgents(alive)
	largest := 0
	for _, c := range clusters {
		if len(c) > largest {
			largest = len(c)
		}
	}
	agreement := float64(largest) / float64(len(alive))

	return clamp01(mean * (0.6 + 0.4*agreement))
}

func bestConclusion(final []*swarmAgent) string {
	best := final[0]
	for _, a := range final[1:] {
		if a.confidence > best.confidence {
			best = a
		}
	}
	return best.conclusion
}

type conclusionPayload struct {
	Conclusion string   `json:"conclusion"`
	Confidence float64  `json:"confidence"`
	KeyPoints  []string `json:"key_points"`
}

// parseConclusion extracts an agent's position from a structured
// conclusion response. Unparseable output falls back to the raw text at
// middling confidence.
func parseConclusion(text string) (string, float64) {
	payload, ok := decodeConclusion(text)
	if !ok {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start >= 0 && end > start {
			payload, ok = decodeConclusion(text[start : end+1])
		}
	}
	if !ok || payload.Conclusion == "" {
		return strings.TrimSpace(text), 0.5
	}
	return payload.Conclusion, clamp01(payload.Confidence)
}

func decodeConclusion(text string) (conclusionPayload, bool) {
	var payload conclusionPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return conclusionPayload{}, false
	}
	return payload, true
}

// textSimilarity is the Jaccard overlap of the two texts' word sets.
// Conclusions that share essentially no vocabulary count as conflicting.
func textSimilarity(a, b string) float64 {
	aw := wordSet(a)
	bw := wordSet(b)
	if len(aw) == 0 && len(bw) == 0 {
		return 1
	}
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}

	inter := 0
	for w := range aw {
		if bw[w] {
			inter++
		}
	}
	union := len(aw) + len(bw) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if len(w) < 3 {
			continue
		}
		words[w] = true
	}
	return words
}
