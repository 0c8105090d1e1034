package reasoning

import (
	"sort"
	"sync"
	"time"

	"github.com/cogito-ai/cogito/pkg/budget"
	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/llms"
)

// Evaluation is a judge model's verdict on one reasoning step.
type Evaluation struct {
	// Score rates the step's promise in [0, 1].
	Score float64 `json:"score"`

	// Confidence is the judge's confidence in its own score, in [0, 1].
	Confidence float64 `json:"confidence"`

	// Rationale explains the score.
	Rationale string `json:"rationale,omitempty"`

	// Terminal marks the step as a complete answer to the task.
	Terminal bool `json:"terminal"`

	// Expand marks the step as worth developing further.
	Expand bool `json:"expand"`

	Concerns    []string `json:"concerns,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Step is one node of executed reasoning. Steps reference each other by
// identifier, never by pointer, so a step set serializes cleanly and can
// be walked in either direction. After creation the only mutation is
// appending child identifiers.
type Step struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Depth    int    `json:"depth"`

	// Thought is the model output that constitutes this step.
	Thought string `json:"thought"`

	// Thinking holds the extended reasoning trace when the provider
	// exposed one for this call.
	Thinking string `json:"thinking,omitempty"`

	// Eval is set once the step has been scored. Unevaluated steps keep
	// it nil.
	Eval *Evaluation `json:"evaluation,omitempty"`

	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`

	Usage     llms.TokenUsage `json:"usage"`
	Latency   time.Duration   `json:"latency"`
	CreatedAt time.Time       `json:"created_at"`

	Children []string               `json:"children,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Pruned reports whether the step was cut from further consideration.
func (s *Step) Pruned() bool {
	if s.Metadata == nil {
		return false
	}
	pruned, _ := s.Metadata["pruned"].(bool)
	return pruned
}

func (s *Step) mark(key string, value interface{}) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]interface{})
	}
	s.Metadata[key] = value
}

// ResultMeta carries run accounting shared by every strategy plus
// per-strategy counters.
type ResultMeta struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// StepsCompleted counts every step the run produced, pruned ones
	// included.
	StepsCompleted int `json:"steps_completed"`

	// StepsEvaluated counts steps that received an evaluation.
	StepsEvaluated int `json:"steps_evaluated"`

	// BestPath lists step identifiers root to best for search
	// strategies. Empty for linear strategies.
	BestPath []string `json:"best_path,omitempty"`

	// Contributors lists the agent roles whose conclusions reached the
	// final answer. Swarm only.
	Contributors []string `json:"contributors,omitempty"`

	// Resolution records how conflicting conclusions were reconciled.
	// Swarm only.
	Resolution string `json:"resolution,omitempty"`

	// Counters holds strategy-specific tallies such as pruned branches
	// or resolved conflicts.
	Counters map[string]int `json:"counters,omitempty"`

	// Degradations lists the non-fatal failures the run absorbed.
	Degradations []string `json:"degradations,omitempty"`
}

// Result is the terminal artifact of one strategy run.
type Result struct {
	// Success is true when the run produced a usable answer, even a
	// degraded one.
	Success bool `json:"success"`

	Strategy complexity.Strategy `json:"strategy"`

	// Answer is the final synthesized text.
	Answer string `json:"answer"`

	// Confidence is the engine's own confidence in the answer when the
	// strategy computes one. Zero means the engine has no opinion and
	// the orchestrator's heuristic applies.
	Confidence float64 `json:"confidence,omitempty"`

	// Steps is every step the run produced, ordered by creation time
	// with insertion order breaking ties.
	Steps []*Step `json:"steps"`

	// Usage aggregates token consumption across all steps.
	Usage llms.TokenUsage `json:"usage"`

	Latency time.Duration `json:"latency"`

	// ModelsUsed lists the distinct models that produced steps, in
	// first-use order.
	ModelsUsed []string `json:"models_used,omitempty"`

	// Session is the final budget snapshot. The orchestrator fills it
	// after closing the session.
	Session *budget.Session `json:"session,omitempty"`

	Meta ResultMeta `json:"meta"`
}

// arena stores the steps of one run keyed by identifier. Concurrent
// strategies append from several goroutines; ordered() gives the
// canonical creation-time ordering.
type arena struct {
	mu    sync.Mutex
	steps map[string]*Step
	order []string

	// onAdd is invoked outside the lock for every added step. Engines
	// point it at the task's observer.
	onAdd func(*Step)
}

func newArena() *arena {
	return &arena{steps: make(map[string]*Step)}
}

// add registers a step and links it into its parent's child list.
func (a *arena) add(step *Step) {
	a.mu.Lock()
	a.steps[step.ID] = step
	a.order = append(a.order, step.ID)
	if step.ParentID != "" {
		if parent, ok := a.steps[step.ParentID]; ok {
			parent.Children = append(parent.Children, step.ID)
		}
	}
	notify := a.onAdd
	a.mu.Unlock()

	if notify != nil {
		notify(step)
	}
}

func (a *arena) get(id string) (*Step, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	step, ok := a.steps[id]
	return step, ok
}

func (a *arena) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.steps)
}

// ordered returns all steps sorted by creation time, preserving
// insertion order between steps created in the same instant.
func (a *arena) ordered() []*Step {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*Step, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.steps[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// pathTo walks parent links from the given step back to its root and
// returns the identifiers in root-first order.
func (a *arena) pathTo(id string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var reversed []string
	for id != "" {
		step, ok := a.steps[id]
		if !ok {
			break
		}
		reversed = append(reversed, step.ID)
		id = step.ParentID
	}

	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}

// usageTotal sums usage across all steps.
func (a *arena) usageTotal() llms.TokenUsage {
	a.mu.Lock()
	defer a.mu.Unlock()

	var total llms.TokenUsage
	for _, id := range a.order {
		total = total.Add(a.steps[id].Usage)
	}
	return total
}

// modelsUsed returns the distinct models across all steps in first-use
// order.
func (a *arena) modelsUsed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[string]bool)
	var models []string
	for _, id := range a.order {
		m := a.steps[id].Model
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	return models
}

// evaluatedCount counts steps carrying an evaluation.
func (a *arena) evaluatedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, step := range a.steps {
		if step.Eval != nil {
			n++
		}
	}
	return n
}
