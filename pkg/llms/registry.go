package llms

import (
	"context"
	"fmt"

	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/registry"
)

// Provider is the uniform surface reasoning strategies call into. Each
// adapter normalizes one vendor API behind it.
type Provider interface {
	// Name returns the name the provider was registered under.
	Name() string

	// Reason executes a blocking reasoning call.
	Reason(ctx context.Context, req *Request) (*Response, error)

	// ReasonStream executes a streaming reasoning call. The returned
	// channel is closed after a terminal ChunkDone or ChunkError.
	ReasonStream(ctx context.Context, req *Request) (<-chan StreamChunk, error)

	// Healthy reports whether the provider endpoint is reachable.
	Healthy(ctx context.Context) bool

	// Close releases provider resources.
	Close() error
}

// ProviderRegistry holds named providers for router lookup.
type ProviderRegistry struct {
	*registry.Registry[Provider]
}

// NewProviderRegistry creates an empty provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{Registry: registry.New[Provider]()}
}

// CreateFromConfig instantiates a provider from configuration and registers
// it under the given name.
func (r *ProviderRegistry) CreateFromConfig(name string, cfg *config.ProviderConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("provider config is required")
	}

	var (
		provider Provider
		err      error
	)

	switch cfg.Type {
	case config.ProviderAnthropic:
		provider, err = NewAnthropicProvider(name, cfg)
	case config.ProviderOpenAI:
		provider, err = NewOpenAIProvider(name, cfg)
	case config.ProviderGemini:
		provider, err = NewGeminiProvider(name, cfg)
	case config.ProviderOllama:
		provider, err = NewOllamaProvider(name, cfg)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", name, err)
	}

	if err := r.Register(name, provider); err != nil {
		return nil, err
	}

	return provider, nil
}

// CloseAll closes every registered provider and reports the first error.
func (r *ProviderRegistry) CloseAll() error {
	var firstErr error
	for _, p := range r.List() {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
