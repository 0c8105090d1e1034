package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cogito-ai/cogito/pkg/budget"
	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/llms"
	"github.com/cogito-ai/cogito/pkg/logger"
)

// totSynthesisTemp samples the final best-path synthesis call.
const totSynthesisTemp = 0.4

// TreeOfThought explores the task as beam search over candidate
// reasoning steps: each depth generates branches from every beam node in
// parallel, scores them with a judge call, prunes the weak ones, and
// keeps the top of the frontier for the next depth. The best node's
// root-to-leaf path feeds one final synthesis call.
type TreeOfThought struct {
	call        *caller
	cfg         config.TreeOfThoughtConfig
	maxParallel int
	log         *slog.Logger
}

func NewTreeOfThought(providers *llms.ProviderRegistry, budgets *budget.Manager, cfg config.TreeOfThoughtConfig, maxParallel int) *TreeOfThought {
	cfg.SetDefaults()
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &TreeOfThought{
		call:        &caller{providers: providers, budget: budgets},
		cfg:         cfg,
		maxParallel: maxParallel,
		log:         logger.For("reasoning.tot"),
	}
}

func (s *TreeOfThought) Name() complexity.Strategy {
	return complexity.StrategyTreeOfThought
}

func (s *TreeOfThought) Execute(ctx context.Context, task *Task) (*Result, error) {
	started := time.Now()
	ar := newArena()
	ar.onAdd = task.OnStep
	eval := &evaluator{caller: s.call, temp: s.cfg.EvaluationTemperature}

	counters := map[string]int{}
	var degradations []string

	// The search starts from a virtual root: the first depth generates
	// its candidates from the bare task.
	beam := []*Step{nil}
	var best *Step
	depthReached := 0

search:
	for depth := 0; depth < s.cfg.MaxDepth; depth++ {
		b := s.call.sessionBudget(task.SessionID)
		if b.Exhausted() {
			degradations = append(degradations, fmt.Sprintf("budget exhausted before depth %d", depth))
			break
		}
		allowance := b.NextStepAllowance()
		depthReached = depth

		candidates, err := s.expand(ctx, task, ar, eval, beam, depth, allowance, counters)
		if err != nil {
			return nil, err
		}

		var kept []*Step
		for _, c := range candidates {
			if c.Eval.Score < s.cfg.PruneThreshold {
				c.mark("pruned", true)
				counters["nodes_pruned"]++
				continue
			}
			kept = append(kept, c)
		}

		if len(kept) == 0 {
			return nil, fmt.Errorf("depth %d: %w", depth, ErrToTExhausted)
		}

		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].Eval.Score > kept[j].Eval.Score
		})

		if best == nil || kept[0].Eval.Score > best.Eval.Score {
			best = kept[0]
		}

		for _, c := range kept {
			if c.Eval.Terminal && c.Eval.Score >= s.cfg.MinSuccessScore {
				best = c
				counters["early_exit"] = 1
				break search
			}
		}

		if len(kept) > s.cfg.BeamWidth {
			for _, lost := range kept[s.cfg.BeamWidth:] {
				lost.mark("pruned", true)
				lost.mark("beam_cut", true)
				counters["nodes_beam_cut"]++
			}
			kept = kept[:s.cfg.BeamWidth]
		}

		// Only nodes the judge wants developed move to the next depth.
		// Terminal nodes never expand; they claim to be done.
		var next []*Step
		for _, c := range kept {
			if c.Eval.Expand && !c.Eval.Terminal && c.Eval.Score >= s.cfg.EvalThreshold {
				next = append(next, c)
			}
		}
		if len(next) == 0 {
			break
		}
		beam = next
	}

	if best == nil {
		return nil, ErrToTExhausted
	}

	bestPath := ar.pathTo(best.ID)
	answer, synthErr := s.synthesize(ctx, task, ar, best, bestPath)
	if synthErr != nil {
		if aborted(synthErr) {
			return nil, synthErr
		}
		degradations = append(degradations, "synthesis failed: "+synthErr.Error())
		answer = best.Thought
	}

	result := buildResult(complexity.StrategyTreeOfThought, ar, started)
	result.Success = true
	result.Answer = answer
	result.Confidence = clamp01(best.Eval.Score * (0.5 + 0.5*best.Eval.Confidence))
	counters["depth_reached"] = depthReached
	result.Meta.BestPath = bestPath
	result.Meta.Counters = counters
	result.Meta.Degradations = degradations

	s.log.Debug("tree of thought complete",
		"session_id", task.SessionID,
		"nodes", result.Meta.StepsCompleted,
		"best_score", best.Eval.Score,
		"depth", depthReached,
		"tokens", result.Usage.TotalTokens)

	return result, nil
}

// expand generates and evaluates every branch of every beam node at one
// depth. Generation and evaluation for a candidate run as one unit; a
// failure in either removes that candidate. Failed evaluations keep the
// generated node in the arena, marked pruned, so its spend stays
// visible. Concurrency is bounded by the orchestrator's parallelism cap.
func (s *TreeOfThought) expand(ctx context.Context, task *Task, ar *arena, eval *evaluator, beam []*Step, depth, allowance int, counters map[string]int) ([]*Step, error) {
	genTemp := s.cfg.GenerationTemperature

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	var mu sync.Mutex
	var out []*Step
	failures := 0

	for _, parent := range beam {
		parentID := ""
		var path []*Step
		if parent != nil {
			parentID = parent.ID
			path = s.pathSteps(ar, parent.ID)
		}

		for branch := 0; branch < s.cfg.MaxBranches; branch++ {
			branch := branch
			parentID := parentID
			path := path

			g.Go(func() error {
				step, err := s.call.do(gctx, callSpec{
					SessionID:   task.SessionID,
					Label:       "generate",
					Provider:    task.Decision.Model.Provider,
					Model:       task.Decision.Model.Name,
					Prompt:      totGenerationPrompt(task, path, branch, s.cfg.MaxBranches),
					System:      totGenerationSystem,
					Temperature: &genTemp,
					Thinking:    allowance,
					ParentID:    parentID,
					Depth:       depth,
					Metadata:    map[string]interface{}{"branch": branch},
				})
				if err != nil {
					if aborted(err) {
						return err
					}
					mu.Lock()
					failures++
					mu.Unlock()
					s.log.Warn("candidate generation failed", "depth", depth, "branch", branch, "error", err)
					return nil
				}

				if err := eval.evaluate(gctx, task, step, path, allowance); err != nil {
					if aborted(err) {
						return err
					}
					step.mark("pruned", true)
					step.mark("eval_failed", true)
					mu.Lock()
					ar.add(step)
					failures++
					mu.Unlock()
					s.log.Warn("candidate evaluation failed", "depth", depth, "branch", branch, "error", err)
					return nil
				}

				mu.Lock()
				ar.add(step)
				out = append(out, step)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	counters["node_failures"] += failures
	return out, nil
}

func (s *TreeOfThought) synthesize(ctx context.Context, task *Task, ar *arena, best *Step, bestPath []string) (string, error) {
	temp := totSynthesisTemp
	step, err := s.call.do(ctx, callSpec{
		SessionID:   task.SessionID,
		Label:       "synthesize",
		Provider:    task.Decision.Model.Provider,
		Model:       task.Decision.Model.Name,
		Prompt:      totSynthesisPrompt(task, s.stepsFor(ar, bestPath)),
		System:      withOutputFormat(totSynthesisSystem, task),
		Temperature: &temp,
		Thinking:    s.call.allowance(task.SessionID),
		ParentID:    best.ID,
		Depth:       best.Depth + 1,
		Metadata:    map[string]interface{}{"phase": "synthesis"},
	})
	if err != nil {
		return "", err
	}
	ar.add(step)
	return step.Thought, nil
}

func (s *TreeOfThought) pathSteps(ar *arena, id string) []*Step {
	return s.stepsFor(ar, ar.pathTo(id))
}

func (s *TreeOfThought) stepsFor(ar *arena, ids []string) []*Step {
	steps := make([]*Step, 0, len(ids))
	for _, id := range ids {
		if step, ok := ar.get(id); ok {
			steps = append(steps, step)
		}
	}
	return steps
}

// aborted reports an error that must stop the whole run: the budget
// session closed under us or the context ended. Everything else is a
// tolerable per-node failure.
func aborted(err error) bool {
	return errors.Is(err, budget.ErrSessionClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
