package config

import "fmt"

// Capability tiers, cheapest first. The router derives thinking budgets
// from the tier of the selected model.
const (
	TierFast     = "fast"
	TierStandard = "standard"
	TierDeep     = "deep"
	TierMaximum  = "maximum"
)

var validTiers = map[string]bool{
	TierFast:     true,
	TierStandard: true,
	TierDeep:     true,
	TierMaximum:  true,
}

// ModelConfig is one routing catalog entry. When no models are configured
// the router installs built-in defaults for each registered provider.
type ModelConfig struct {
	// Name is the model identifier sent to the provider.
	Name string `yaml:"name" json:"name" jsonschema:"title=Name,description=Model identifier"`

	// DisplayName is a human-readable label, shown by the CLI.
	DisplayName string `yaml:"display_name,omitempty" json:"display_name,omitempty" jsonschema:"title=Display Name"`

	// Provider references a key in the providers section.
	Provider string `yaml:"provider" json:"provider" jsonschema:"title=Provider,description=Provider key this model belongs to"`

	// Tier classifies the model's capability (fast, standard, deep, maximum).
	Tier string `yaml:"tier" json:"tier" jsonschema:"title=Tier,enum=fast,enum=standard,enum=deep,enum=maximum"`

	// MaxBudget caps thinking tokens for this model. Zero means the tier
	// default applies.
	MaxBudget int `yaml:"max_budget,omitempty" json:"max_budget,omitempty" jsonschema:"title=Max Budget,minimum=0"`
}

// SetDefaults applies default values.
func (c *ModelConfig) SetDefaults() {
	if c.DisplayName == "" {
		c.DisplayName = c.Name
	}
	if c.Tier == "" {
		c.Tier = TierStandard
	}
}

// Validate checks the catalog entry.
func (c *ModelConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validTiers[c.Tier] {
		return fmt.Errorf("invalid tier %q (valid: fast, standard, deep, maximum)", c.Tier)
	}
	if c.MaxBudget < 0 {
		return fmt.Errorf("max_budget must be non-negative")
	}
	return nil
}
