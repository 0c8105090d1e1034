// Package orchestrator coordinates one reasoning request end to end:
// complexity analysis, model routing, budget allocation, strategy
// execution, and result assembly. It owns the registry of in-flight
// sessions, and it is the only component that closes budget sessions.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cogito-ai/cogito/pkg/budget"
	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/llms"
	"github.com/cogito-ai/cogito/pkg/logger"
	"github.com/cogito-ai/cogito/pkg/observability"
	"github.com/cogito-ai/cogito/pkg/reasoning"
	"github.com/cogito-ai/cogito/pkg/registry"
	"github.com/cogito-ai/cogito/pkg/routing"
)

// Input is one reasoning request as callers submit it. The orchestrator
// never mutates an Input; zero values on the optional fields leave the
// corresponding decision to the pipeline.
type Input struct {
	// Prompt is the task. Required.
	Prompt string

	// Context is optional background material the strategies fold into
	// their prompts.
	Context string

	// Hints are optional steering directives.
	Hints []string

	// OutputFormat is an optional directive for the answer's shape, for
	// example "markdown" or "json".
	OutputFormat string

	// UserID attributes the session. Empty is recorded as "anonymous".
	UserID string

	// Overrides pin individual pipeline decisions for this request.
	Overrides Overrides
}

// Overrides are per-request pins on decisions the pipeline would
// otherwise make itself.
type Overrides struct {
	// Strategy forces a reasoning strategy regardless of the analyzer's
	// recommendation.
	Strategy complexity.Strategy

	// Model forces a catalog model by name or display name.
	Model string

	// Provider restricts routing to one provider key.
	Provider string

	// Tier forces a capability tier.
	Tier string

	// MaxBudget caps the session's thinking budget.
	MaxBudget int

	// Timeout replaces the configured default request timeout.
	Timeout time.Duration

	// Agents overrides the swarm agent count.
	Agents int

	// BeamWidth overrides the tree search beam width.
	BeamWidth int

	// MaxDepth overrides the tree search depth bound.
	MaxDepth int

	// MaxBranches overrides the candidates generated per tree node.
	MaxBranches int

	// Temperature overrides the sampling temperature of strategy
	// reasoning calls that expose one.
	Temperature float64
}

// Deps are the subsystems an orchestrator coordinates. Catalog may be
// nil; the swarm engine then reuses the routed model for every tier.
type Deps struct {
	Analyzer  *complexity.Analyzer
	Router    *routing.Router
	Catalog   *routing.Catalog
	Budgets   *budget.Manager
	Providers *llms.ProviderRegistry

	// Inspectors observe stream events before delivery.
	Inspectors []Inspector
}

// Orchestrator executes reasoning requests. It is safe for concurrent
// use; every request runs in its own budget session and registry entry.
type Orchestrator struct {
	cfg        config.OrchestratorConfig
	strategies config.StrategiesConfig

	analyzer  *complexity.Analyzer
	router    *routing.Router
	catalog   *routing.Catalog
	budgets   *budget.Manager
	providers *llms.ProviderRegistry

	inspectors []Inspector
	sessions   *registry.Registry[*activeSession]
	log        *slog.Logger
}

// New assembles an orchestrator. Zero fields in the configs are
// defaulted.
func New(cfg config.OrchestratorConfig, strategies config.StrategiesConfig, deps Deps) (*Orchestrator, error) {
	if deps.Analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if deps.Budgets == nil {
		return nil, fmt.Errorf("budget manager is required")
	}
	if deps.Providers == nil {
		return nil, fmt.Errorf("provider registry is required")
	}

	cfg.SetDefaults()
	strategies.SetDefaults()

	return &Orchestrator{
		cfg:        cfg,
		strategies: strategies,
		analyzer:   deps.Analyzer,
		router:     deps.Router,
		catalog:    deps.Catalog,
		budgets:    deps.Budgets,
		providers:  deps.Providers,
		inspectors: deps.Inspectors,
		sessions:   registry.New[*activeSession](),
		log:        logger.For("orchestrator"),
	}, nil
}

// run is the per-request state threaded through the pipeline stages.
type run struct {
	id      string
	userID  string
	input   *Input
	session *activeSession
	span    trace.Span
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc

	analysis *complexity.Analysis
	decision *routing.Decision

	// events is set on streaming runs and nil on blocking ones.
	events chan<- StreamEvent
}

// Think executes one reasoning request to completion and returns the
// final result. The request is bounded by the configured default
// timeout unless the input overrides it; exceeding the bound cancels
// the session and returns ErrTimeout.
func (o *Orchestrator) Think(ctx context.Context, input *Input) (result *reasoning.Result, err error) {
	r, err := o.begin(ctx, input)
	if err != nil {
		return nil, err
	}
	defer func() { o.conclude(r, result, err) }()

	if err = o.analyzeAndRoute(r); err != nil {
		return nil, err
	}
	if err = o.allocate(r); err != nil {
		return nil, err
	}
	if result, err = o.runEngine(r); err != nil {
		err = r.mapError(err)
		return nil, err
	}
	o.assemble(r, result)
	return result, nil
}

// ThinkStream executes one reasoning request and reports its progress
// as a bounded event stream. The channel is closed after exactly one
// terminal event: thinking-complete carrying the result, or error
// carrying the failure. The producer blocks when the consumer lags; a
// consumer that abandons the stream before the terminal event must
// cancel ctx to release it.
func (o *Orchestrator) ThinkStream(ctx context.Context, input *Input) (<-chan StreamEvent, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, o.cfg.StreamBuffer)
	go o.produce(ctx, input, events)
	return events, nil
}

// produce runs the pipeline on the producer side of a stream.
func (o *Orchestrator) produce(ctx context.Context, input *Input, events chan<- StreamEvent) {
	defer close(events)

	r, err := o.begin(ctx, input)
	if err != nil {
		ev := StreamEvent{Kind: EventError, Content: err.Error(), Err: err, Timestamp: time.Now()}
		o.inspect(&ev)
		select {
		case events <- ev:
		case <-ctx.Done():
		}
		return
	}
	r.events = events

	var result *reasoning.Result
	var runErr error
	defer func() { o.conclude(r, result, runErr) }()

	if runErr = o.analyzeAndRoute(r); runErr == nil {
		runErr = o.allocate(r)
	}
	if runErr == nil {
		o.emitLive(r, o.event(r, EventThinkingStart, routeSummary(r.session.currentStrategy(), r.decision)))

		result, runErr = o.runEngine(r)
		if runErr != nil {
			runErr = r.mapError(runErr)
		} else {
			o.assemble(r, result)
		}
	}

	if runErr != nil {
		ev := o.event(r, EventError, runErr.Error())
		ev.Err = runErr
		o.emitTerminal(ctx, events, ev)
		return
	}

	ev := o.event(r, EventThinkingComplete, result.Answer)
	ev.Result = result
	ev.Meta.Progress = 1
	ev.Meta.Confidence = result.Confidence
	o.emitTerminal(ctx, events, ev)
}

func validateInput(input *Input) error {
	if input == nil || strings.TrimSpace(input.Prompt) == "" {
		return fmt.Errorf("prompt is required")
	}
	if s := input.Overrides.Strategy; s != "" {
		if _, err := complexity.ParseStrategy(string(s)); err != nil {
			return err
		}
	}
	return nil
}

// begin validates the input and materializes the request: a session id,
// a deadline-bound context, a registry entry in state created, and the
// request span.
func (o *Orchestrator) begin(ctx context.Context, input *Input) (*run, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	timeout := input.Overrides.Timeout
	if timeout <= 0 {
		timeout = o.cfg.DefaultTimeout
	}

	userID := input.UserID
	if userID == "" {
		userID = "anonymous"
	}

	id := uuid.NewString()
	runCtx, cancel := context.WithTimeout(ctx, timeout)

	tracer := observability.GetTracer("cogito.orchestrator")
	runCtx, span := tracer.Start(runCtx, observability.SpanThink,
		trace.WithAttributes(attribute.String(observability.AttrSessionID, id)))

	session := newActiveSession(id, userID, cancel, o.log)
	if err := o.sessions.Register(id, session); err != nil {
		span.End()
		cancel()
		return nil, err
	}

	if m := observability.GetGlobalMetrics(); m != nil {
		m.AddActiveSessions(runCtx, 1)
	}

	o.log.Info("session created",
		"session_id", id, "user_id", userID, "timeout", timeout)

	return &run{
		id:      id,
		userID:  userID,
		input:   input,
		session: session,
		span:    span,
		timeout: timeout,
		ctx:     runCtx,
		cancel:  cancel,
	}, nil
}

// analyzeAndRoute scores the prompt and resolves the model. Analysis
// never fails; routing fails only when no catalog entry satisfies the
// constraints.
func (o *Orchestrator) analyzeAndRoute(r *run) error {
	r.session.transition(StateAnalyzing)
	r.analysis = o.analyzer.Analyze(r.ctx, r.input.Prompt, r.input.Context)
	if r.analysis.Degraded {
		o.log.Warn("complexity analysis degraded",
			"session_id", r.id, "level", r.analysis.Level)
	}

	strategy := r.analysis.Strategy
	if s := r.input.Overrides.Strategy; s != "" {
		strategy = s
	}

	r.session.transition(StateRouting)
	decision, err := o.router.Route(r.analysis, routing.Constraints{
		Model:     r.input.Overrides.Model,
		Provider:  r.input.Overrides.Provider,
		Tier:      r.input.Overrides.Tier,
		MaxBudget: r.input.Overrides.MaxBudget,
	})
	if err != nil {
		return err
	}
	r.decision = decision
	r.session.setRoute(strategy, decision.Model.Name)
	r.span.SetAttributes(
		attribute.String(observability.AttrStrategy, string(strategy)),
		attribute.String(observability.AttrComplexity, string(r.analysis.Level)),
		attribute.String(observability.AttrLLMModel, decision.Model.Name),
	)

	o.log.Info("request routed",
		"session_id", r.id,
		"level", r.analysis.Level,
		"strategy", strategy,
		"model", decision.Model.Name,
		"tier", decision.Model.Tier,
		"budget", decision.Budget)
	return nil
}

// allocate opens the budget session the engines charge against.
func (o *Orchestrator) allocate(r *run) error {
	r.session.transition(StateBudgeted)
	if _, err := o.budgets.CreateSession(r.id, r.userID, r.decision.Model.Tier, r.decision.Budget); err != nil {
		return err
	}
	return nil
}

// streamExecutor is the optional engine surface for provider-level
// streaming. Chain of thought implements it; the multi-call strategies
// stream at step granularity instead.
type streamExecutor interface {
	ExecuteStream(ctx context.Context, task *reasoning.Task, onChunk func(llms.StreamChunk)) (*reasoning.Result, error)
}

// runEngine dispatches to the selected strategy engine and executes it.
func (o *Orchestrator) runEngine(r *run) (*reasoning.Result, error) {
	r.session.transition(StateExecuting)

	strategy := r.session.currentStrategy()
	engine := o.engineFor(strategy, r.input.Overrides)

	task := &reasoning.Task{
		SessionID:    r.id,
		Prompt:       r.input.Prompt,
		Context:      r.input.Context,
		Hints:        r.input.Hints,
		OutputFormat: r.input.OutputFormat,
		Decision:     r.decision,
		OnStep:       o.stepObserver(r, strategy),
	}

	if r.events != nil {
		if streamer, ok := engine.(streamExecutor); ok {
			return streamer.ExecuteStream(r.ctx, task, func(chunk llms.StreamChunk) {
				kind := EventTokenDelta
				if chunk.Kind == llms.ChunkThinking {
					kind = EventThinkingStep
				}
				o.emitLive(r, o.event(r, kind, chunk.Text))
			})
		}
	}
	return engine.Execute(r.ctx, task)
}

// stepObserver counts completed steps and, on streaming runs, turns
// each one into a thinking-step event. Concurrent strategies invoke it
// from several goroutines.
func (o *Orchestrator) stepObserver(r *run, strategy complexity.Strategy) func(*reasoning.Step) {
	return func(step *reasoning.Step) {
		if m := observability.GetGlobalMetrics(); m != nil {
			m.RecordStep(r.ctx, string(strategy))
		}
		if r.events == nil {
			return
		}
		o.emitLive(r, o.event(r, EventThinkingStep, step.Thought))
	}
}

// engineFor is the single point that maps a strategy onto its engine.
// Overrides produce a request-local engine; construction is cheap and
// engines hold no state between calls.
func (o *Orchestrator) engineFor(strategy complexity.Strategy, ov Overrides) reasoning.Engine {
	switch strategy {
	case complexity.StrategyTreeOfThought:
		cfg := o.strategies.TreeOfThought
		if ov.BeamWidth > 0 {
			cfg.BeamWidth = ov.BeamWidth
		}
		if ov.MaxDepth > 0 {
			cfg.MaxDepth = ov.MaxDepth
		}
		if ov.MaxBranches > 0 {
			cfg.MaxBranches = ov.MaxBranches
		}
		if ov.Temperature > 0 {
			cfg.GenerationTemperature = ov.Temperature
		}
		return reasoning.NewTreeOfThought(o.providers, o.budgets, cfg, o.cfg.MaxParallelOperations)
	case complexity.StrategyMultiAgent:
		cfg := o.strategies.Swarm
		if ov.Agents > 0 {
			cfg.Agents = ov.Agents
		}
		if ov.Temperature > 0 {
			cfg.Temperature = ov.Temperature
		}
		return reasoning.NewSwarm(o.providers, o.catalog, o.budgets, cfg, o.cfg.MaxParallelOperations)
	case complexity.StrategyHybrid:
		return reasoning.NewHybrid(o.providers, o.budgets)
	default:
		return reasoning.NewChainOfThought(o.providers, o.budgets)
	}
}

// assemble finalizes a successful run: the budget session completes,
// and the result gains its confidence grade and final budget snapshot.
func (o *Orchestrator) assemble(r *run, result *reasoning.Result) {
	result.Confidence = scoreConfidence(result)

	if err := o.budgets.CompleteSession(r.id); err != nil {
		o.log.Warn("budget session completion failed", "session_id", r.id, "error", err)
	}
	if session, err := o.budgets.GetSession(r.id); err == nil {
		result.Session = session
	}
}

// conclude runs on every exit path: it settles the terminal state,
// closes the budget session of failed runs, removes the registry entry,
// releases the context, and flushes telemetry.
func (o *Orchestrator) conclude(r *run, result *reasoning.Result, err error) {
	switch {
	case err == nil:
		r.session.transition(StateCompleted)
	case errors.Is(err, ErrCancelled):
		r.session.transition(StateCancelled)
	default:
		r.session.transition(StateFailed)
	}

	if err != nil {
		if cerr := o.budgets.CancelSession(r.id); cerr != nil && !errors.Is(cerr, budget.ErrSessionNotFound) {
			o.log.Warn("budget session cancellation failed", "session_id", r.id, "error", cerr)
		}
	}

	tokens := 0
	if result != nil {
		tokens = result.Usage.TotalTokens
	} else if s, serr := o.budgets.GetSession(r.id); serr == nil {
		tokens = s.Budget.Used
	}
	duration := time.Since(r.session.createdAt)
	strategy := r.session.currentStrategy()

	if m := observability.GetGlobalMetrics(); m != nil {
		m.RecordThink(r.ctx, string(strategy), duration, tokens, err)
		m.AddActiveSessions(r.ctx, -1)
	}

	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
	} else {
		r.span.SetStatus(codes.Ok, "success")
	}
	r.span.End()

	o.sessions.Remove(r.id)
	r.cancel()

	if err != nil {
		o.log.Warn("reasoning request failed",
			"session_id", r.id,
			"strategy", strategy,
			"duration", duration,
			"tokens", tokens,
			"error", err)
		return
	}
	o.log.Info("reasoning request completed",
		"session_id", r.id,
		"strategy", strategy,
		"duration", duration,
		"tokens", tokens,
		"confidence", result.Confidence)
}

// inspect runs every registered inspector over the event in order.
func (o *Orchestrator) inspect(ev *StreamEvent) {
	for _, insp := range o.inspectors {
		insp.Inspect(ev)
	}
}

// emitLive sends a non-terminal event, giving up when the request
// context dies.
func (o *Orchestrator) emitLive(r *run, ev StreamEvent) {
	o.inspect(&ev)
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

// emitTerminal sends the stream's final event. Only the consumer's own
// context abandons it: a cancelled or timed-out request still delivers
// its terminal event to a live consumer.
func (o *Orchestrator) emitTerminal(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) {
	o.inspect(&ev)
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// event builds a stream event carrying the session's current routing
// and budget state.
func (o *Orchestrator) event(r *run, kind EventKind, content string) StreamEvent {
	meta := EventMeta{
		SessionID: r.id,
		Strategy:  r.session.currentStrategy(),
	}
	if r.decision != nil {
		meta.Model = r.decision.Model.Name
	}
	meta.Progress, meta.Tokens = o.progressOf(r.id)

	return StreamEvent{Kind: kind, Content: content, Meta: meta, Timestamp: time.Now()}
}

// progressOf reads the session's budget consumption as a progress
// fraction in [0, 1] plus the tokens charged so far.
func (o *Orchestrator) progressOf(id string) (float64, int) {
	s, err := o.budgets.GetSession(id)
	if err != nil {
		return 0, 0
	}
	if s.Budget.Total <= 0 {
		return 0, s.Budget.Used
	}
	return math.Min(float64(s.Budget.Used)/float64(s.Budget.Total), 1), s.Budget.Used
}

func routeSummary(strategy complexity.Strategy, d *routing.Decision) string {
	return fmt.Sprintf("%s on %s (tier %s, thinking budget %d)",
		strategy, d.Model.Name, d.Model.Tier, d.Budget)
}

// CancelSession aborts an in-flight request. The budget session closes
// first so provider calls already in flight cannot charge past the
// cancellation point; their results are discarded when the charge is
// rejected. Returns false when no active session has the id.
func (o *Orchestrator) CancelSession(id string) bool {
	s, ok := o.sessions.Get(id)
	if !ok {
		return false
	}

	if err := o.budgets.CancelSession(id); err != nil && !errors.Is(err, budget.ErrSessionNotFound) {
		o.log.Warn("budget session cancellation failed", "session_id", id, "error", err)
	}
	s.abort()

	o.log.Info("session cancelled", "session_id", id, "user_id", s.userID)
	return true
}

// ActiveSession returns a snapshot of one in-flight session.
func (o *Orchestrator) ActiveSession(id string) (*SessionInfo, bool) {
	s, ok := o.sessions.Get(id)
	if !ok {
		return nil, false
	}
	return s.snapshot(), true
}

// UserActiveSessions lists the in-flight sessions attributed to one
// user, oldest first.
func (o *Orchestrator) UserActiveSessions(userID string) []*SessionInfo {
	matches := o.sessions.Find(func(s *activeSession) bool {
		return s.userID == userID
	})

	infos := make([]*SessionInfo, 0, len(matches))
	for _, s := range matches {
		infos = append(infos, s.snapshot())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}
