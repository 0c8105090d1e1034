package observability

import (
	"context"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// Manager owns the tracer provider and metrics recorder for a process.
type Manager struct {
	tracerProvider trace.TracerProvider
	metrics        *ReasoningMetrics
	config         Config
	mu             sync.RWMutex
}

func NewManager(cfg Config) *Manager {
	cfg.SetDefaults()
	return &Manager{
		config: cfg,
	}
}

// Initialize starts the configured exporters and installs the global
// tracer provider and metrics recorder.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tp, err := InitGlobalTracer(ctx, m.config.Tracing)
	if err != nil {
		return err
	}
	m.tracerProvider = tp

	metrics, err := InitMetrics(ctx, m.config.Metrics)
	if err != nil {
		return err
	}
	m.metrics = metrics

	SetGlobalMetrics(m.metrics)

	return nil
}

func (m *Manager) GetTracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return GetTracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

func (m *Manager) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// MetricsHandler exposes the Prometheus scrape endpoint.
func (m *Manager) MetricsHandler() http.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics.Handler()
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if spt, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		return spt.Shutdown(ctx)
	}
	return nil
}
