// Package routing selects a model and computes a thinking-token budget for
// each reasoning request. Caller directives (forced model, provider, tier,
// budget cap) take precedence over the analyzer's recommendation.
package routing

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cogito-ai/cogito/pkg/config"
)

// Catalog holds routable models in registration order. Order matters: when
// several models tie for a tier, the first registered wins, so catalog
// construction must be deterministic.
type Catalog struct {
	mu     sync.RWMutex
	models []config.ModelConfig
}

func NewCatalog() *Catalog {
	return &Catalog{}
}

// FromConfig builds a catalog from configured entries, falling back to
// stock models per provider when none are configured.
func FromConfig(cfg *config.Config) (*Catalog, error) {
	if len(cfg.Models) == 0 {
		return DefaultCatalog(cfg.Providers), nil
	}

	c := NewCatalog()
	for _, m := range cfg.Models {
		if err := c.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds a model. The entry is validated and rejected as a
// duplicate when the provider already carries the same model name.
func (c *Catalog) Register(m config.ModelConfig) error {
	m.SetDefaults()
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid model %q: %w", m.Name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.models {
		if existing.Provider == m.Provider && existing.Name == m.Name {
			return fmt.Errorf("model %q already registered for provider %q", m.Name, m.Provider)
		}
	}
	c.models = append(c.models, m)
	return nil
}

// Models returns a snapshot in registration order.
func (c *Catalog) Models() []config.ModelConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]config.ModelConfig, len(c.models))
	copy(out, c.models)
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.models)
}

// ByName returns the first registered model matching the given name or
// display name.
func (c *Catalog) ByName(name string) (config.ModelConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, m := range c.models {
		if m.Name == name || m.DisplayName == name {
			return m, true
		}
	}
	return config.ModelConfig{}, false
}

// ForTier returns the models serving a tier in registration order. A
// non-empty provider narrows the result to that provider's models.
func (c *Catalog) ForTier(tier, provider string) []config.ModelConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []config.ModelConfig
	for _, m := range c.models {
		if m.Tier != tier {
			continue
		}
		if provider != "" && m.Provider != provider {
			continue
		}
		out = append(out, m)
	}
	return out
}

// stockModels lists the built-in catalog entries per provider backend.
// Not every backend covers every tier; the router's tier search handles
// the gaps.
var stockModels = map[config.ProviderType][]config.ModelConfig{
	config.ProviderAnthropic: {
		{Name: "claude-3-5-haiku-20241022", Tier: config.TierFast},
		{Name: "claude-sonnet-4-20250514", Tier: config.TierStandard},
		{Name: "claude-opus-4-20250514", Tier: config.TierDeep},
		{Name: "claude-opus-4-1-20250805", Tier: config.TierMaximum},
	},
	config.ProviderOpenAI: {
		{Name: "gpt-4o-mini", Tier: config.TierFast},
		{Name: "gpt-4o", Tier: config.TierStandard},
		{Name: "o3", Tier: config.TierDeep},
		{Name: "gpt-5", Tier: config.TierMaximum},
	},
	config.ProviderGemini: {
		{Name: "gemini-2.0-flash", Tier: config.TierFast},
		{Name: "gemini-2.5-flash", Tier: config.TierStandard},
		{Name: "gemini-2.5-pro", Tier: config.TierDeep},
	},
	config.ProviderOllama: {
		{Name: "llama3.2", Tier: config.TierFast},
		{Name: "qwen3", Tier: config.TierStandard},
		{Name: "deepseek-r1", Tier: config.TierDeep},
		{Name: "gpt-oss", Tier: config.TierMaximum},
	},
}

// DefaultCatalog builds a catalog of stock models for the configured
// providers. Provider keys are walked in sorted order so the catalog, and
// with it the tie-break winner, does not depend on map iteration order.
func DefaultCatalog(providers map[string]*config.ProviderConfig) *Catalog {
	keys := make([]string, 0, len(providers))
	for key := range providers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	c := NewCatalog()
	for _, key := range keys {
		p := providers[key]
		if p == nil {
			continue
		}
		for _, stock := range stockModels[p.Type] {
			stock.Provider = key
			// Entries are static and pre-validated, Register cannot fail.
			_ = c.Register(stock)
		}
	}
	return c
}
