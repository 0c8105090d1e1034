package config

import (
	"fmt"

	"github.com/cogito-ai/cogito/pkg/observability"
)

// Config is the root configuration for a reasoning orchestrator.
type Config struct {
	// Version of the config format.
	Version string `yaml:"version,omitempty" json:"version,omitempty" jsonschema:"title=Version"`

	// Name labels this deployment.
	Name string `yaml:"name,omitempty" json:"name,omitempty" jsonschema:"title=Name"`

	// Description is free text.
	Description string `yaml:"description,omitempty" json:"description,omitempty" jsonschema:"title=Description"`

	// Providers maps provider keys to their backend configuration.
	Providers map[string]*ProviderConfig `yaml:"providers,omitempty" json:"providers,omitempty" jsonschema:"title=Providers"`

	// Models is the routing catalog. Empty installs built-in defaults per
	// configured provider.
	Models []ModelConfig `yaml:"models,omitempty" json:"models,omitempty" jsonschema:"title=Models"`

	Orchestrator OrchestratorConfig `yaml:"orchestrator,omitempty" json:"orchestrator,omitempty" jsonschema:"title=Orchestrator"`
	Analyzer     AnalyzerConfig     `yaml:"analyzer,omitempty" json:"analyzer,omitempty" jsonschema:"title=Analyzer"`
	Routing      RoutingConfig      `yaml:"routing,omitempty" json:"routing,omitempty" jsonschema:"title=Routing"`
	Budget       BudgetConfig       `yaml:"budget,omitempty" json:"budget,omitempty" jsonschema:"title=Budget"`
	Strategies   StrategiesConfig   `yaml:"strategies,omitempty" json:"strategies,omitempty" jsonschema:"title=Strategies"`

	Logger        LoggerConfig         `yaml:"logger,omitempty" json:"logger,omitempty" jsonschema:"title=Logger"`
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability"`
}

// SetDefaults applies defaults across all sections. A config with no
// providers gets one auto-detected from the environment.
func (c *Config) SetDefaults() {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	if len(c.Providers) == 0 {
		c.Providers["default"] = &ProviderConfig{}
	}
	for name := range c.Providers {
		if c.Providers[name] != nil {
			c.Providers[name].SetDefaults()
		}
	}

	for i := range c.Models {
		c.Models[i].SetDefaults()
	}

	c.Orchestrator.SetDefaults()
	c.Analyzer.SetDefaults()
	c.Routing.SetDefaults()
	c.Budget.SetDefaults()
	c.Strategies.SetDefaults()
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks all sections and cross-references.
func (c *Config) Validate() error {
	for name, p := range c.Providers {
		if p == nil {
			continue
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %q validation failed: %w", name, err)
		}
	}

	for i := range c.Models {
		if err := c.Models[i].Validate(); err != nil {
			return fmt.Errorf("model %q validation failed: %w", c.Models[i].Name, err)
		}
	}

	if err := c.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("orchestrator validation failed: %w", err)
	}
	if err := c.Analyzer.Validate(); err != nil {
		return fmt.Errorf("analyzer validation failed: %w", err)
	}
	if err := c.Routing.Validate(); err != nil {
		return fmt.Errorf("routing validation failed: %w", err)
	}
	if err := c.Budget.Validate(); err != nil {
		return fmt.Errorf("budget validation failed: %w", err)
	}
	if err := c.Strategies.Validate(); err != nil {
		return fmt.Errorf("strategies validation failed: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger validation failed: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability validation failed: %w", err)
	}

	if err := c.validateReferences(); err != nil {
		return fmt.Errorf("reference validation failed: %w", err)
	}

	return nil
}

func (c *Config) validateReferences() error {
	for i := range c.Models {
		m := &c.Models[i]
		if _, exists := c.Providers[m.Provider]; !exists {
			return fmt.Errorf("model %q: provider %q not found (available: %v)",
				m.Name, m.Provider, mapKeys(c.Providers))
		}
	}

	if c.Analyzer.Provider != "" {
		if _, exists := c.Providers[c.Analyzer.Provider]; !exists {
			return fmt.Errorf("analyzer: provider %q not found (available: %v)",
				c.Analyzer.Provider, mapKeys(c.Providers))
		}
	}

	if c.Routing.PreferProvider != "" {
		if _, exists := c.Providers[c.Routing.PreferProvider]; !exists {
			return fmt.Errorf("routing: prefer_provider %q not found (available: %v)",
				c.Routing.PreferProvider, mapKeys(c.Providers))
		}
	}

	return nil
}

// GetProvider returns the named provider config.
func (c *Config) GetProvider(name string) (*ProviderConfig, bool) {
	p, exists := c.Providers[name]
	return p, exists
}

// ListProviders returns the configured provider keys.
func (c *Config) ListProviders() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	return names
}

func mapKeys[K comparable, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
