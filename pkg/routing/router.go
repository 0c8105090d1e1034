package routing

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/logger"
)

// ErrNoEligibleModel reports that no catalog entry satisfies the caller's
// constraints.
var ErrNoEligibleModel = errors.New("no eligible model")

// Constraints carries caller directives that override the analyzer's
// recommendation. The zero value lets the recommendation decide.
type Constraints struct {
	// Model forces a specific catalog entry by name or display name.
	Model string

	// Provider restricts selection to one provider key.
	Provider string

	// Tier forces a capability tier.
	Tier string

	// MaxBudget caps the thinking budget. Zero means no cap.
	MaxBudget int
}

// Decision is the immutable routing outcome: the model to call and the
// thinking-token budget allotted to the request as a whole.
type Decision struct {
	Model  config.ModelConfig
	Budget int
}

// Base thinking budgets per tier, scaled by difficulty score at routing
// time.
var tierBudgets = map[string]int{
	config.TierFast:     2000,
	config.TierStandard: 8000,
	config.TierDeep:     16000,
	config.TierMaximum:  32000,
}

// tierOrder lists tiers cheapest first.
var tierOrder = []string{config.TierFast, config.TierStandard, config.TierDeep, config.TierMaximum}

// TierForLevel maps a difficulty level to the capability tier it should
// run on.
func TierForLevel(level complexity.Level) string {
	switch level {
	case complexity.LevelModerate:
		return config.TierStandard
	case complexity.LevelComplex:
		return config.TierDeep
	case complexity.LevelExtreme:
		return config.TierMaximum
	default:
		return config.TierFast
	}
}

// Router resolves a complexity analysis plus caller constraints into a
// routing decision.
type Router struct {
	catalog *Catalog
	cfg     config.RoutingConfig
	log     *slog.Logger
}

func NewRouter(catalog *Catalog, cfg config.RoutingConfig) *Router {
	return &Router{
		catalog: catalog,
		cfg:     cfg,
		log:     logger.For("routing"),
	}
}

// Route selects a model and budget. analysis must be non-nil; the
// analyzer guarantees one for every request. Resolution order: forced
// model > forced provider/tier > level-derived tier.
func (r *Router) Route(analysis *complexity.Analysis, constraints Constraints) (*Decision, error) {
	model, err := r.selectModel(analysis, constraints)
	if err != nil {
		return nil, err
	}

	budget := budgetFor(model, analysis, constraints)
	r.log.Debug("routed request",
		"model", model.Name,
		"provider", model.Provider,
		"tier", model.Tier,
		"budget", budget,
		"level", analysis.Level)

	return &Decision{Model: model, Budget: budget}, nil
}

func (r *Router) selectModel(analysis *complexity.Analysis, constraints Constraints) (config.ModelConfig, error) {
	if constraints.Model != "" {
		m, ok := r.catalog.ByName(constraints.Model)
		if !ok {
			return config.ModelConfig{}, fmt.Errorf("forced model %q not in catalog: %w", constraints.Model, ErrNoEligibleModel)
		}
		if constraints.Provider != "" && m.Provider != constraints.Provider {
			return config.ModelConfig{}, fmt.Errorf("forced model %q belongs to provider %q, not %q: %w",
				constraints.Model, m.Provider, constraints.Provider, ErrNoEligibleModel)
		}
		return m, nil
	}

	if constraints.Tier != "" {
		candidates := r.catalog.ForTier(constraints.Tier, constraints.Provider)
		if len(candidates) == 0 {
			return config.ModelConfig{}, fmt.Errorf("no model serves forced tier %q%s: %w",
				constraints.Tier, providerSuffix(constraints.Provider), ErrNoEligibleModel)
		}
		return r.pick(candidates), nil
	}

	// The derived tier is a recommendation, not a constraint: a sparse
	// catalog falls back to the nearest cheaper tier, then pricier ones,
	// before the request fails.
	for _, tier := range tierSearchOrder(TierForLevel(analysis.Level)) {
		if candidates := r.catalog.ForTier(tier, constraints.Provider); len(candidates) > 0 {
			return r.pick(candidates), nil
		}
	}
	return config.ModelConfig{}, fmt.Errorf("catalog has no model%s: %w",
		providerSuffix(constraints.Provider), ErrNoEligibleModel)
}

// pick breaks ties among eligible models: the configured preferred
// provider wins when present, otherwise the first registered model.
func (r *Router) pick(candidates []config.ModelConfig) config.ModelConfig {
	if r.cfg.PreferProvider != "" {
		for _, m := range candidates {
			if m.Provider == r.cfg.PreferProvider {
				return m
			}
		}
	}
	return candidates[0]
}

// budgetFor scales the tier's base budget by difficulty, then clamps to
// the model's own cap and the caller's cap. The result never exceeds a
// caller-supplied maximum.
func budgetFor(model config.ModelConfig, analysis *complexity.Analysis, constraints Constraints) int {
	budget := int(float64(tierBudgets[model.Tier]) * (0.5 + analysis.Score))
	if model.MaxBudget > 0 && budget > model.MaxBudget {
		budget = model.MaxBudget
	}
	if constraints.MaxBudget > 0 && budget > constraints.MaxBudget {
		budget = constraints.MaxBudget
	}
	return budget
}

// tierSearchOrder lists the tiers to try for a recommended tier: the tier
// itself, cheaper tiers nearest first, then pricier tiers nearest first.
func tierSearchOrder(tier string) []string {
	idx := 0
	for i, t := range tierOrder {
		if t == tier {
			idx = i
			break
		}
	}

	order := make([]string, 0, len(tierOrder))
	order = append(order, tierOrder[idx])
	for i := idx - 1; i >= 0; i-- {
		order = append(order, tierOrder[i])
	}
	for i := idx + 1; i < len(tierOrder); i++ {
		order = append(order, tierOrder[i])
	}
	return order
}

func providerSuffix(provider string) string {
	if provider == "" {
		return ""
	}
	return fmt.Sprintf(" for provider %q", provider)
}
