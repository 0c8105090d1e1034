// Package cogito provides an adaptive multi-strategy reasoning
// orchestrator for large language models.
//
// This is the main entry point for the cogito Go library. It assembles
// the full pipeline from configuration and re-exports the most commonly
// used types and functions from the various sub-packages.
//
// # Quick Start
//
//	import cogito "github.com/cogito-ai/cogito/pkg"
//
//	// Load configuration (or cogito.DefaultConfig() for env-driven setup)
//	cfg, err := cogito.LoadConfig("cogito.yaml")
//
//	// Assemble the system
//	system, err := cogito.New(context.Background(), cfg)
//	defer system.Close()
//
//	// Reason
//	result, err := system.Think(ctx, &cogito.Input{Prompt: "..."})
//
//	// Or stream progress
//	events, err := system.ThinkStream(ctx, &cogito.Input{Prompt: "..."})
package cogito

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/cogito-ai/cogito/pkg/budget"
	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/llms"
	"github.com/cogito-ai/cogito/pkg/logger"
	"github.com/cogito-ai/cogito/pkg/observability"
	"github.com/cogito-ai/cogito/pkg/orchestrator"
	"github.com/cogito-ai/cogito/pkg/reasoning"
	"github.com/cogito-ai/cogito/pkg/routing"
)

// Re-export commonly used types
type (
	// Config is the root cogito configuration
	Config = config.Config

	// Request and result types
	Input       = orchestrator.Input
	Overrides   = orchestrator.Overrides
	Result      = reasoning.Result
	Step        = reasoning.Step
	StreamEvent = orchestrator.StreamEvent
	EventKind   = orchestrator.EventKind
	SessionInfo = orchestrator.SessionInfo
	Health      = orchestrator.Health

	// Analysis types
	Strategy = complexity.Strategy
	Analysis = complexity.Analysis
)

// Re-export commonly used constants
const (
	StrategyChainOfThought = complexity.StrategyChainOfThought
	StrategyTreeOfThought  = complexity.StrategyTreeOfThought
	StrategyMultiAgent     = complexity.StrategyMultiAgent
	StrategyHybrid         = complexity.StrategyHybrid

	EventThinkingStart    = orchestrator.EventThinkingStart
	EventThinkingStep     = orchestrator.EventThinkingStep
	EventTokenDelta       = orchestrator.EventTokenDelta
	EventThinkingComplete = orchestrator.EventThinkingComplete
	EventError            = orchestrator.EventError
)

// Re-export commonly used functions and errors
var (
	// Config functions
	LoadConfig      = config.LoadFile
	LoadConfigBytes = config.LoadBytes
	DefaultConfig   = config.Default

	// Error sentinels
	ErrTimeout         = orchestrator.ErrTimeout
	ErrCancelled       = orchestrator.ErrCancelled
	ErrNoEligibleModel = orchestrator.ErrNoEligibleModel
	ErrSessionNotFound = orchestrator.ErrSessionNotFound
)

// System is a fully wired reasoning pipeline: providers, analyzer,
// router, budget manager, and orchestrator, assembled from one Config.
type System struct {
	cfg       *config.Config
	providers *llms.ProviderRegistry
	catalog   *routing.Catalog
	budgets   *budget.Manager
	orch      *orchestrator.Orchestrator
	obs       *observability.Manager
}

// New assembles a System from configuration. A nil config is built from
// the environment. Provider initialization tolerates partial failure:
// the system starts as long as at least one configured provider comes
// up, and the analyzer degrades to heuristics when its classify
// provider is among the failed.
func New(ctx context.Context, cfg *config.Config) (*System, error) {
	log := logger.For("cogito")

	if cfg == nil {
		var err error
		if cfg, err = config.Default(); err != nil {
			return nil, err
		}
	}

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	providers := llms.NewProviderRegistry()
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []string
	for _, name := range names {
		if _, err := providers.CreateFromConfig(name, cfg.Providers[name]); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			log.Warn("provider initialization failed", "provider", name, "error", err)
		}
	}
	if providers.Count() == 0 {
		return nil, fmt.Errorf("failed to initialize any providers (attempted: %d, failures: %v)",
			len(names), failures)
	}

	catalog, err := routing.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build model catalog: %w", err)
	}

	var classifier llms.Provider
	if cfg.Analyzer.Provider != "" {
		var ok bool
		if classifier, ok = providers.Get(cfg.Analyzer.Provider); !ok {
			log.Warn("analyzer classify provider unavailable, falling back to heuristics",
				"provider", cfg.Analyzer.Provider)
		}
	}

	budgets := budget.NewManager(cfg.Budget)
	orch, err := orchestrator.New(cfg.Orchestrator, cfg.Strategies, orchestrator.Deps{
		Analyzer:  complexity.NewAnalyzer(cfg.Analyzer, classifier),
		Router:    routing.NewRouter(catalog, cfg.Routing),
		Catalog:   catalog,
		Budgets:   budgets,
		Providers: providers,
	})
	if err != nil {
		return nil, err
	}

	return &System{
		cfg:       cfg,
		providers: providers,
		catalog:   catalog,
		budgets:   budgets,
		orch:      orch,
		obs:       obs,
	}, nil
}

// Think executes one reasoning request to completion.
func (s *System) Think(ctx context.Context, input *Input) (*Result, error) {
	return s.orch.Think(ctx, input)
}

// ThinkStream executes one reasoning request as an event stream.
func (s *System) ThinkStream(ctx context.Context, input *Input) (<-chan StreamEvent, error) {
	return s.orch.ThinkStream(ctx, input)
}

// CancelSession aborts an in-flight reasoning session.
func (s *System) CancelSession(id string) bool {
	return s.orch.CancelSession(id)
}

// ActiveSession reports an in-flight session by id.
func (s *System) ActiveSession(id string) (*SessionInfo, bool) {
	return s.orch.ActiveSession(id)
}

// UserActiveSessions reports a user's in-flight sessions, oldest first.
func (s *System) UserActiveSessions(userID string) []*SessionInfo {
	return s.orch.UserActiveSessions(userID)
}

// HealthCheck probes every provider and reports system health.
func (s *System) HealthCheck(ctx context.Context) *Health {
	return s.orch.HealthCheck(ctx)
}

// Orchestrator exposes the underlying orchestrator.
func (s *System) Orchestrator() *orchestrator.Orchestrator {
	return s.orch
}

// Providers exposes the provider registry.
func (s *System) Providers() *llms.ProviderRegistry {
	return s.providers
}

// Catalog exposes the model catalog routing draws from.
func (s *System) Catalog() *routing.Catalog {
	return s.catalog
}

// Budgets exposes the budget manager, the same instance the
// orchestrator charges sessions against.
func (s *System) Budgets() *budget.Manager {
	return s.budgets
}

// Config returns the configuration the system was assembled from.
func (s *System) Config() *config.Config {
	return s.cfg
}

// Metrics exposes the metrics recorder.
func (s *System) Metrics() observability.Metrics {
	return s.obs.GetMetrics()
}

// MetricsHandler serves the Prometheus scrape endpoint, 503 while
// metrics are disabled.
func (s *System) MetricsHandler() http.Handler {
	return s.obs.MetricsHandler()
}

// Close releases provider connections and flushes telemetry.
func (s *System) Close() error {
	var firstErr error

	if err := s.providers.CloseAll(); err != nil {
		firstErr = fmt.Errorf("provider cleanup: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.obs.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("observability shutdown: %w", err)
	}

	return firstErr
}
