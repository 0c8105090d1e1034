package observability

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics records reasoning pipeline measurements. All implementations
// must tolerate nil receivers and partially initialized instruments so
// call sites never need enabled-checks.
type Metrics interface {
	RecordThink(ctx context.Context, strategy string, duration time.Duration, tokens int, err error)
	RecordStep(ctx context.Context, strategy string)
	RecordLLMCall(ctx context.Context, provider, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	AddActiveSessions(ctx context.Context, delta int64)
}

// ReasoningMetrics is the Prometheus-backed Metrics implementation.
type ReasoningMetrics struct {
	registry *prom.Registry

	requestDuration metric.Float64Histogram
	requestsTotal   metric.Int64Counter
	requestErrors   metric.Int64Counter
	stepsTotal      metric.Int64Counter
	tokensTotal     metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrors       metric.Int64Counter

	activeSessions metric.Int64UpDownCounter
}

func (m *ReasoningMetrics) RecordThink(ctx context.Context, strategy string, duration time.Duration, tokens int, err error) {
	if m == nil || m.requestDuration == nil || m.requestsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("strategy", strategy))

	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
	m.requestsTotal.Add(ctx, 1, attrs)

	if tokens > 0 && m.tokensTotal != nil {
		m.tokensTotal.Add(ctx, int64(tokens), attrs)
	}
	if err != nil && m.requestErrors != nil {
		m.requestErrors.Add(ctx, 1, attrs)
	}
}

func (m *ReasoningMetrics) RecordStep(ctx context.Context, strategy string) {
	if m == nil || m.stepsTotal == nil {
		return
	}
	m.stepsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
}

func (m *ReasoningMetrics) RecordLLMCall(ctx context.Context, provider, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
	)

	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	if m.llmInputTokens != nil {
		m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	}
	if m.llmOutputTokens != nil {
		m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	}
	if err != nil && m.llmErrors != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

func (m *ReasoningMetrics) AddActiveSessions(ctx context.Context, delta int64) {
	if m == nil || m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, delta)
}

// SetGlobalMetrics installs the process-wide metrics recorder.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide metrics recorder, or nil when
// none was installed. Callers must nil-check.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
