// Package cogito provides an adaptive multi-strategy reasoning orchestrator.
//
// Cogito takes a natural-language task, estimates how hard it is, routes it
// to a suitable model and thinking-token budget, and executes one of four
// reasoning strategies to produce a final answer with a traceable reasoning
// path and a confidence score:
//
//   - chain_of_thought: one sequential decompose/reason/synthesize pass
//   - tree_of_thought:  beam search over a tree of candidate thoughts
//   - multi_agent:      parallel agent deliberation with conflict resolution
//   - hybrid:           staged decompose -> explore -> synthesize pipeline
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/cogito-ai/cogito/cmd/cogito@latest
//
// Run a reasoning request with zero configuration (provider auto-detected
// from ANTHROPIC_API_KEY / OPENAI_API_KEY / GEMINI_API_KEY):
//
//	cogito think "Design a rate limiter for a multi-tenant API"
//
// Or stream the deliberation as it happens:
//
//	cogito think --stream --strategy tree_of_thought "..."
//
// # Library Use
//
// The facade package assembles the whole pipeline from one config:
//
//	import cogito "github.com/cogito-ai/cogito/pkg"
//
//	sys, err := cogito.New(ctx, nil) // nil config = environment defaults
//	if err != nil { ... }
//	defer sys.Close()
//
//	result, err := sys.Think(ctx, &cogito.Input{
//	    Prompt: "Why is the sky blue?",
//	    UserID: "user-1",
//	})
//
// The orchestrator guarantees that every request owns exactly one budget
// session, that all token usage is accounted through the budget manager,
// and that sessions are closed on every exit path including cancellation
// and timeout.
package cogito
