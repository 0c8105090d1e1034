package observability

import (
	"fmt"
	"time"
)

// Config configures metrics and tracing for the reasoning pipeline.
type Config struct {
	// Tracing configures OpenTelemetry distributed tracing.
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`

	// Metrics configures Prometheus metrics collection.
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns on distributed tracing.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Exporter specifies the trace exporter: "otlp" (default) or "stdout".
	Exporter string `yaml:"exporter,omitempty" json:"exporter,omitempty"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// SamplingRate controls what fraction of traces are sampled, 0.0 to 1.0.
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty"`

	// ServiceName identifies this service in traces.
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty"`

	// Timeout bounds exporter operations.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns on metrics collection.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Namespace prefixes all metric names. Default: "cogito".
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

func (c *Config) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	if c.Exporter == "" {
		c.Exporter = ExporterOTLP
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultOTLPEndpoint
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be between 0 and 1, got %f", c.SamplingRate)
	}
	switch c.Exporter {
	case ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid exporter %q (valid: otlp, stdout)", c.Exporter)
	}
	if c.Exporter == ExporterOTLP && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required for the otlp exporter")
	}
	return nil
}

func (c *MetricsConfig) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = "cogito"
	}
}
