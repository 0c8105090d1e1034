package observability

import (
	"context"
	"time"
)

// NoopMetrics discards all measurements. Used when metrics are disabled.
type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics { return &NoopMetrics{} }

func (n *NoopMetrics) RecordThink(ctx context.Context, strategy string, duration time.Duration, tokens int, err error) {
}

func (n *NoopMetrics) RecordStep(ctx context.Context, strategy string) {}

func (n *NoopMetrics) RecordLLMCall(ctx context.Context, provider, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
}

func (n *NoopMetrics) AddActiveSessions(ctx context.Context, delta int64) {}
