package observability

import (
	"context"
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics builds the reasoning metric instruments on a dedicated
// Prometheus registry. The caller decides where (and whether) to mount
// Handler(); this package owns no HTTP surface.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (*ReasoningMetrics, error) {
	if !cfg.Enabled {
		return &ReasoningMetrics{}, nil
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = "cogito"
	}

	registry := prom.NewRegistry()
	promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)
	meter := meterProvider.Meter("cogito")

	requestDuration, err := meter.Float64Histogram(
		ns+"_reasoning_duration_seconds",
		metric.WithDescription("End-to-end reasoning request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reasoning duration histogram: %w", err)
	}

	requestsTotal, err := meter.Int64Counter(
		ns+"_reasoning_requests_total",
		metric.WithDescription("Total reasoning requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create requests counter: %w", err)
	}

	requestErrors, err := meter.Int64Counter(
		ns+"_reasoning_errors_total",
		metric.WithDescription("Total failed reasoning requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request errors counter: %w", err)
	}

	stepsTotal, err := meter.Int64Counter(
		ns+"_reasoning_steps_total",
		metric.WithDescription("Total reasoning steps produced"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create steps counter: %w", err)
	}

	tokensTotal, err := meter.Int64Counter(
		ns+"_reasoning_tokens_total",
		metric.WithDescription("Total thinking tokens charged to budget sessions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens counter: %w", err)
	}

	llmDuration, err := meter.Float64Histogram(
		ns+"_llm_request_duration_seconds",
		metric.WithDescription("Provider call duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	llmInputTokens, err := meter.Int64Counter(
		ns+"_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to providers"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	llmOutputTokens, err := meter.Int64Counter(
		ns+"_llm_tokens_output_total",
		metric.WithDescription("Total output tokens returned by providers"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	llmErrors, err := meter.Int64Counter(
		ns+"_llm_errors_total",
		metric.WithDescription("Total provider call errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	activeSessions, err := meter.Int64UpDownCounter(
		ns+"_active_sessions",
		metric.WithDescription("Currently active budget sessions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active sessions gauge: %w", err)
	}

	return &ReasoningMetrics{
		registry:        registry,
		requestDuration: requestDuration,
		requestsTotal:   requestsTotal,
		requestErrors:   requestErrors,
		stepsTotal:      stepsTotal,
		tokensTotal:     tokensTotal,
		llmDuration:     llmDuration,
		llmInputTokens:  llmInputTokens,
		llmOutputTokens: llmOutputTokens,
		llmErrors:       llmErrors,
		activeSessions:  activeSessions,
	}, nil
}

// Handler exposes the metrics registry in Prometheus text format. Returns
// a 503 handler when metrics are disabled.
func (m *ReasoningMetrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics not enabled"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
