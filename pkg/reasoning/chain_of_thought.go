package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cogito-ai/cogito/pkg/budget"
	"github.com/cogito-ai/cogito/pkg/complexity"
	"github.com/cogito-ai/cogito/pkg/llms"
	"github.com/cogito-ai/cogito/pkg/logger"
)

// ChainOfThought runs the task as one linear pass: a single provider
// call carrying the session's full thinking allotment, decomposing,
// reasoning, and synthesizing in sequence within that call.
type ChainOfThought struct {
	call *caller
	log  *slog.Logger
}

func NewChainOfThought(providers *llms.ProviderRegistry, budgets *budget.Manager) *ChainOfThought {
	return &ChainOfThought{
		call: &caller{providers: providers, budget: budgets},
		log:  logger.For("reasoning.cot"),
	}
}

func (s *ChainOfThought) Name() complexity.Strategy {
	return complexity.StrategyChainOfThought
}

func (s *ChainOfThought) Execute(ctx context.Context, task *Task) (*Result, error) {
	started := time.Now()
	ar := newArena()
	ar.onAdd = task.OnStep

	step, err := s.call.do(ctx, callSpec{
		SessionID: task.SessionID,
		Label:     "reason",
		Provider:  task.Decision.Model.Provider,
		Model:     task.Decision.Model.Name,
		Prompt:    taskBlock(task),
		System:    withOutputFormat(cotSystem, task),
		Thinking:  s.call.sessionBudget(task.SessionID).Total,
	})
	if err != nil {
		return nil, err
	}
	ar.add(step)

	result := buildResult(complexity.StrategyChainOfThought, ar, started)
	result.Success = true
	result.Answer = step.Thought

	s.log.Debug("chain of thought complete",
		"session_id", task.SessionID,
		"model", step.Model,
		"tokens", result.Usage.TotalTokens)

	return result, nil
}

// ExecuteStream runs the same single pass over the provider's streaming
// surface, forwarding each text and thinking increment to onChunk as it
// arrives. Budget charging and the materialized result are identical to
// Execute; terminal chunks are consumed here and never forwarded.
func (s *ChainOfThought) ExecuteStream(ctx context.Context, task *Task, onChunk func(llms.StreamChunk)) (*Result, error) {
	started := time.Now()
	ar := newArena()
	ar.onAdd = task.OnStep

	providerName := task.Decision.Model.Provider
	provider, ok := s.call.providers.Get(providerName)
	if !ok {
		return nil, fmt.Errorf("provider %q not registered", providerName)
	}

	req := &llms.Request{
		Prompt:         taskBlock(task),
		SystemPrompt:   withOutputFormat(cotSystem, task),
		Model:          task.Decision.Model.Name,
		ThinkingBudget: s.call.sessionBudget(task.SessionID).Total,
	}

	start := time.Now()
	stream, err := provider.ReasonStream(ctx, req)
	if err != nil {
		return nil, asProviderError(providerName, req.Model, err)
	}

	var text, thinking strings.Builder
	var usage llms.TokenUsage
	for chunk := range stream {
		switch chunk.Kind {
		case llms.ChunkText:
			text.WriteString(chunk.Text)
			onChunk(chunk)
		case llms.ChunkThinking:
			thinking.WriteString(chunk.Text)
			onChunk(chunk)
		case llms.ChunkDone:
			if chunk.Usage != nil {
				usage = *chunk.Usage
			}
		case llms.ChunkError:
			return nil, asProviderError(providerName, req.Model, chunk.Err)
		}
	}
	latency := time.Since(start)

	if err := s.call.budget.RecordUsage(task.SessionID, "reason", usage); err != nil {
		return nil, fmt.Errorf("step reason discarded: %w", err)
	}

	step := &Step{
		ID:        uuid.NewString(),
		Thought:   text.String(),
		Thinking:  thinking.String(),
		Model:     req.Model,
		Provider:  providerName,
		Usage:     usage,
		Latency:   latency,
		CreatedAt: time.Now(),
	}
	ar.add(step)

	result := buildResult(complexity.StrategyChainOfThought, ar, started)
	result.Success = true
	result.Answer = step.Thought

	s.log.Debug("chain of thought stream complete",
		"session_id", task.SessionID,
		"model", step.Model,
		"tokens", result.Usage.TotalTokens)

	return result, nil
}
