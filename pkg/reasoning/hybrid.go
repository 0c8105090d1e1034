package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cogito-ai/cogito/pkg/budget"
	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/llms"
	"github.com/cogito-ai/cogito/pkg/logger"
)

// Phase shares of the session budget, in percent, and the sampling
// temperature each phase runs at. Decomposition stays cold and short,
// exploration runs hot, synthesis cools back down.
const (
	hybridDecomposeShare  = 20
	hybridExploreShare    = 40
	hybridSynthesizeShare = 40

	hybridDecomposeTemp  = 0.3
	hybridExploreTemp    = 0.9
	hybridSynthesizeTemp = 0.6
)

// Hybrid runs decomposition, exploration, and synthesis as three
// sequential calls chained into one line of steps. The phase budgets
// partition the session allotment up front; unlike the other strategies
// there is no tolerance for partial failure, since each phase feeds the
// next.
type Hybrid struct {
	call *caller
	log  *slog.Logger
}

func NewHybrid(providers *llms.ProviderRegistry, budgets *budget.Manager) *Hybrid {
	return &Hybrid{
		call: &caller{providers: providers, budget: budgets},
		log:  logger.For("reasoning.hybrid"),
	}
}

func (s *Hybrid) Name() complexity.Strategy {
	return complexity.StrategyHybrid
}

func (s *Hybrid) Execute(ctx context.Context, task *Task) (*Result, error) {
	started := time.Now()
	ar := newArena()
	ar.onAdd = task.OnStep

	total := s.call.sessionBudget(task.SessionID).Total
	decomposeBudget := total * hybridDecomposeShare / 100
	exploreBudget := total * hybridExploreShare / 100
	synthesizeBudget := total * hybridSynthesizeShare / 100

	decomposeTemp := hybridDecomposeTemp
	decompose, err := s.call.do(ctx, callSpec{
		SessionID:   task.SessionID,
		Label:       "decompose",
		Provider:    task.Decision.Model.Provider,
		Model:       task.Decision.Model.Name,
		Prompt:      taskBlock(task) + "\nList the subtasks.",
		System:      hybridDecomposeSystem,
		Temperature: &decomposeTemp,
		MaxTokens:   400,
		Thinking:    decomposeBudget,
		Depth:       0,
		Metadata:    map[string]interface{}{"phase": "decompose"},
	})
	if err != nil {
		return nil, fmt.Errorf("decomposition phase: %w", err)
	}
	ar.add(decompose)

	exploreTemp := hybridExploreTemp
	explore, err := s.call.do(ctx, callSpec{
		SessionID:   task.SessionID,
		Label:       "explore",
		Provider:    task.Decision.Model.Provider,
		Model:       task.Decision.Model.Name,
		Prompt:      hybridExplorePrompt(task, decompose.Thought),
		System:      hybridExploreSystem,
		Temperature: &exploreTemp,
		Thinking:    exploreBudget,
		ParentID:    decompose.ID,
		Depth:       1,
		Metadata:    map[string]interface{}{"phase": "explore"},
	})
	if err != nil {
		return nil, fmt.Errorf("exploration phase: %w", err)
	}
	ar.add(explore)

	synthesizeTemp := hybridSynthesizeTemp
	synthesize, err := s.call.do(ctx, callSpec{
		SessionID:   task.SessionID,
		Label:       "synthesize",
		Provider:    task.Decision.Model.Provider,
		Model:       task.Decision.Model.Name,
		Prompt:      hybridSynthesizePrompt(task, decompose.Thought, explore.Thought),
		System:      withOutputFormat(hybridSynthesizeSystem, task),
		Temperature: &synthesizeTemp,
		Thinking:    synthesizeBudget,
		ParentID:    explore.ID,
		Depth:       2,
		Metadata:    map[string]interface{}{"phase": "synthesize"},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis phase: %w", err)
	}
	ar.add(synthesize)

	result := buildResult(complexity.StrategyHybrid, ar, started)
	result.Success = true
	result.Answer = synthesize.Thought
	result.Meta.Counters = map[string]int{
		"decompose_budget":  decomposeBudget,
		"explore_budget":    exploreBudget,
		"synthesize_budget": synthesizeBudget,
	}

	s.log.Debug("hybrid complete",
		"session_id", task.SessionID,
		"budget_split", fmt.Sprintf("%d/%d/%d", decomposeBudget, exploreBudget, synthesizeBudget),
		"tokens", result.Usage.TotalTokens)

	return result, nil
}
