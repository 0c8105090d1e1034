package config

import (
	"fmt"
	"os"
	"time"
)

// ProviderType identifies a reasoning provider backend.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderGemini    ProviderType = "gemini"
	ProviderOllama    ProviderType = "ollama"
)

// ProviderConfig configures one reasoning provider backend.
type ProviderConfig struct {
	// Type selects the provider backend (anthropic, openai, gemini, ollama).
	Type ProviderType `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"title=Type,description=Provider backend,enum=anthropic,enum=openai,enum=gemini,enum=ollama"`

	// Model is the default model for this provider when the router does not
	// pick a specific catalog entry.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Default model identifier"`

	// APIKey authenticates against the provider. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key (use ${ENV_VAR})"`

	// Host overrides the default API endpoint.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Custom API endpoint"`

	// Temperature is the default sampling temperature. Strategies override
	// this per call.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,description=Default sampling temperature,minimum=0,maximum=2,default=0.7"`

	// MaxTokens limits response length per call.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,description=Maximum tokens per response,minimum=1,default=4096"`

	// MaxRetries bounds retry attempts on retryable provider errors.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,description=Retry attempts for transient failures,default=5"`

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty" jsonschema:"title=Retry Delay,description=Base delay between retries"`

	// Thinking configures provider-native extended thinking where supported.
	Thinking *ThinkingConfig `yaml:"thinking,omitempty" json:"thinking,omitempty" jsonschema:"title=Thinking,description=Extended thinking configuration"`
}

// ThinkingConfig configures provider-native extended thinking.
type ThinkingConfig struct {
	// Enabled turns on extended thinking.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=true"`

	// BudgetTokens caps thinking tokens per call. The budget manager may
	// lower this per step; it is never raised above the session budget.
	BudgetTokens int `yaml:"budget_tokens,omitempty" json:"budget_tokens,omitempty" jsonschema:"title=Budget Tokens,minimum=1,default=1024"`
}

// SetDefaults applies default values.
func (c *ProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = detectProviderFromEnv()
	}

	if c.Model == "" {
		switch c.Type {
		case ProviderAnthropic:
			c.Model = "claude-sonnet-4-20250514"
		case ProviderOpenAI:
			c.Model = "gpt-4o"
		case ProviderGemini:
			c.Model = "gemini-2.0-flash"
		case ProviderOllama:
			c.Model = "llama3.2"
		}
	}

	if c.APIKey == "" {
		c.APIKey = apiKeyFromEnv(c.Type)
	}

	if c.Host == "" {
		switch c.Type {
		case ProviderAnthropic:
			c.Host = "https://api.anthropic.com"
		case ProviderOpenAI:
			c.Host = "https://api.openai.com/v1"
		case ProviderOllama:
			c.Host = "http://localhost:11434"
		}
		// Gemini endpoint is managed by the SDK.
	}

	if c.Temperature == nil {
		temp := 0.7
		c.Temperature = &temp
	}

	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}

	if c.RetryDelay == 0 {
		c.RetryDelay = 2 * time.Second
	}

	if c.Thinking != nil {
		if c.Thinking.Enabled == nil {
			c.Thinking.Enabled = BoolPtr(true)
		}
		if c.Thinking.BudgetTokens == 0 {
			c.Thinking.BudgetTokens = 1024
		}
	}
}

// Validate checks the provider configuration.
func (c *ProviderConfig) Validate() error {
	validTypes := map[ProviderType]bool{
		ProviderAnthropic: true,
		ProviderOpenAI:    true,
		ProviderGemini:    true,
		ProviderOllama:    true,
	}

	if c.Type != "" && !validTypes[c.Type] {
		return fmt.Errorf("invalid provider type %q (valid: anthropic, openai, gemini, ollama)", c.Type)
	}

	// Ollama runs locally and needs no key.
	if c.Type != ProviderOllama && c.APIKey == "" {
		return fmt.Errorf("api_key is required for provider %q", c.Type)
	}

	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}

	return nil
}

// detectProviderFromEnv picks a provider based on which API keys are set.
func detectProviderFromEnv() ProviderType {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return ProviderAnthropic
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}
	if os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != "" {
		return ProviderGemini
	}
	// No keys anywhere: fall back to a local Ollama.
	return ProviderOllama
}

// apiKeyFromEnv returns the conventional API key env var for a provider.
func apiKeyFromEnv(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 { return &f }
