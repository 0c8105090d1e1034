package config

import (
	"strings"
	"testing"
	"time"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestProviderConfig_SetDefaults(t *testing.T) {
	tests := []struct {
		name           string
		config         ProviderConfig
		envVars        map[string]string
		validateConfig func(t *testing.T, config ProviderConfig)
	}{
		{
			name:   "empty_config_detects_anthropic_from_env",
			config: ProviderConfig{},
			envVars: map[string]string{
				"ANTHROPIC_API_KEY": "sk-ant-test",
			},
			validateConfig: func(t *testing.T, config ProviderConfig) {
				if config.Type != ProviderAnthropic {
					t.Errorf("Default type = %v, want anthropic", config.Type)
				}
				if config.Model != "claude-sonnet-4-20250514" {
					t.Errorf("Default model = %v, want claude-sonnet-4-20250514", config.Model)
				}
				if config.APIKey != "sk-ant-test" {
					t.Errorf("APIKey = %v, want sk-ant-test", config.APIKey)
				}
				if config.Host != "https://api.anthropic.com" {
					t.Errorf("Default host = %v", config.Host)
				}
				if config.Temperature == nil || *config.Temperature != 0.7 {
					t.Errorf("Default temperature = %v, want 0.7", config.Temperature)
				}
				if config.MaxTokens != 4096 {
					t.Errorf("Default max_tokens = %v, want 4096", config.MaxTokens)
				}
				if config.MaxRetries != 5 {
					t.Errorf("Default max_retries = %v, want 5", config.MaxRetries)
				}
				if config.RetryDelay != 2*time.Second {
					t.Errorf("Default retry_delay = %v, want 2s", config.RetryDelay)
				}
			},
		},
		{
			name:   "no_keys_falls_back_to_ollama",
			config: ProviderConfig{},
			validateConfig: func(t *testing.T, config ProviderConfig) {
				if config.Type != ProviderOllama {
					t.Errorf("Default type = %v, want ollama", config.Type)
				}
				if config.Model != "llama3.2" {
					t.Errorf("Default model = %v, want llama3.2", config.Model)
				}
				if config.Host != "http://localhost:11434" {
					t.Errorf("Default host = %v", config.Host)
				}
			},
		},
		{
			name: "openai_type_defaults",
			config: ProviderConfig{
				Type: ProviderOpenAI,
			},
			validateConfig: func(t *testing.T, config ProviderConfig) {
				if config.Model != "gpt-4o" {
					t.Errorf("Default openai model = %v, want gpt-4o", config.Model)
				}
				if config.Host != "https://api.openai.com/v1" {
					t.Errorf("Default openai host = %v", config.Host)
				}
			},
		},
		{
			name: "partial_config_preserves_values",
			config: ProviderConfig{
				Type:      ProviderAnthropic,
				Model:     "claude-opus-4-1",
				MaxTokens: 16000,
			},
			validateConfig: func(t *testing.T, config ProviderConfig) {
				if config.Model != "claude-opus-4-1" {
					t.Errorf("Model should be preserved: %v", config.Model)
				}
				if config.MaxTokens != 16000 {
					t.Errorf("MaxTokens should be preserved: %v", config.MaxTokens)
				}
			},
		},
		{
			name: "thinking_defaults",
			config: ProviderConfig{
				Type:     ProviderAnthropic,
				Thinking: &ThinkingConfig{},
			},
			validateConfig: func(t *testing.T, config ProviderConfig) {
				if config.Thinking.Enabled == nil || !*config.Thinking.Enabled {
					t.Errorf("Thinking.Enabled should default to true")
				}
				if config.Thinking.BudgetTokens != 1024 {
					t.Errorf("Thinking.BudgetTokens = %v, want 1024", config.Thinking.BudgetTokens)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}
			tt.config.SetDefaults()
			tt.validateConfig(t, tt.config)
		})
	}
}

func TestProviderConfig_Validate(t *testing.T) {
	temp := 0.7
	badTemp := 3.0

	tests := []struct {
		name    string
		config  ProviderConfig
		wantErr bool
	}{
		{
			name:    "valid_anthropic",
			config:  ProviderConfig{Type: ProviderAnthropic, APIKey: "sk-test", Temperature: &temp},
			wantErr: false,
		},
		{
			name:    "ollama_needs_no_key",
			config:  ProviderConfig{Type: ProviderOllama},
			wantErr: false,
		},
		{
			name:    "missing_api_key",
			config:  ProviderConfig{Type: ProviderOpenAI},
			wantErr: true,
		},
		{
			name:    "unknown_type",
			config:  ProviderConfig{Type: "cohere", APIKey: "x"},
			wantErr: true,
		},
		{
			name:    "temperature_out_of_range",
			config:  ProviderConfig{Type: ProviderAnthropic, APIKey: "x", Temperature: &badTemp},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTreeOfThoughtConfig_Defaults(t *testing.T) {
	cfg := TreeOfThoughtConfig{}
	cfg.SetDefaults()

	if cfg.BeamWidth != 5 {
		t.Errorf("BeamWidth = %d, want 5", cfg.BeamWidth)
	}
	if cfg.MaxDepth != 4 {
		t.Errorf("MaxDepth = %d, want 4", cfg.MaxDepth)
	}
	if cfg.MaxBranches != 3 {
		t.Errorf("MaxBranches = %d, want 3", cfg.MaxBranches)
	}
	if cfg.EvalThreshold != 0.5 {
		t.Errorf("EvalThreshold = %f, want 0.5", cfg.EvalThreshold)
	}
	if cfg.PruneThreshold != 0.3 {
		t.Errorf("PruneThreshold = %f, want 0.3", cfg.PruneThreshold)
	}
	if cfg.MinSuccessScore != 0.7 {
		t.Errorf("MinSuccessScore = %f, want 0.7", cfg.MinSuccessScore)
	}
	if cfg.GenerationTemperature != 0.8 {
		t.Errorf("GenerationTemperature = %f, want 0.8", cfg.GenerationTemperature)
	}
	if cfg.EvaluationTemperature != 0.3 {
		t.Errorf("EvaluationTemperature = %f, want 0.3", cfg.EvaluationTemperature)
	}
}

func TestTreeOfThoughtConfig_GenerationTemperatureFloor(t *testing.T) {
	cfg := TreeOfThoughtConfig{GenerationTemperature: 0.2}
	cfg.SetDefaults()

	if cfg.GenerationTemperature != 0.8 {
		t.Errorf("GenerationTemperature = %f, want floor 0.8", cfg.GenerationTemperature)
	}
}

func TestSwarmConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  SwarmConfig
		wantErr bool
	}{
		{
			name:    "defaults_are_valid",
			config:  SwarmConfig{Agents: 3, Resolution: ResolutionHybrid, DebateRounds: 2, MaxStepsPerAgent: 3},
			wantErr: false,
		},
		{
			name:    "unknown_resolution",
			config:  SwarmConfig{Agents: 3, Resolution: "consensus", DebateRounds: 2, MaxStepsPerAgent: 3},
			wantErr: true,
		},
		{
			name:    "zero_agents",
			config:  SwarmConfig{Agents: 0, Resolution: ResolutionVote, DebateRounds: 2, MaxStepsPerAgent: 3},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReferences(t *testing.T) {
	cfg := &Config{
		Providers: map[string]*ProviderConfig{
			"local": {Type: ProviderOllama},
		},
		Models: []ModelConfig{
			{Name: "llama3.2", Provider: "missing", Tier: TierFast},
		},
	}
	cfg.SetDefaults()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail for unknown model provider")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("error should name the missing provider, got: %v", err)
	}
}

func TestLoadBytes(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("COGITO_TEST_MODEL", "llama3.2:70b")

	yamlData := `
name: test-orchestrator
providers:
  local:
    type: ollama
    model: ${COGITO_TEST_MODEL}
    host: ${COGITO_TEST_HOST:-http://localhost:11434}
models:
  - name: llama3.2:70b
    provider: local
    tier: deep
orchestrator:
  default_timeout: 90s
  max_parallel_operations: 4
strategies:
  tree_of_thought:
    beam_width: 2
  swarm:
    agents: 5
    resolution: vote
`

	cfg, err := LoadBytes([]byte(yamlData))
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}

	if cfg.Name != "test-orchestrator" {
		t.Errorf("Name = %q", cfg.Name)
	}

	local, ok := cfg.GetProvider("local")
	if !ok {
		t.Fatal("provider local not found")
	}
	if local.Model != "llama3.2:70b" {
		t.Errorf("expanded model = %q, want llama3.2:70b", local.Model)
	}
	if local.Host != "http://localhost:11434" {
		t.Errorf("defaulted host = %q", local.Host)
	}

	if cfg.Orchestrator.DefaultTimeout != 90*time.Second {
		t.Errorf("DefaultTimeout = %v, want 90s", cfg.Orchestrator.DefaultTimeout)
	}
	if cfg.Orchestrator.MaxParallelOperations != 4 {
		t.Errorf("MaxParallelOperations = %d, want 4", cfg.Orchestrator.MaxParallelOperations)
	}
	if cfg.Orchestrator.StreamBuffer != 64 {
		t.Errorf("StreamBuffer default = %d, want 64", cfg.Orchestrator.StreamBuffer)
	}

	if cfg.Strategies.TreeOfThought.BeamWidth != 2 {
		t.Errorf("BeamWidth = %d, want 2", cfg.Strategies.TreeOfThought.BeamWidth)
	}
	if cfg.Strategies.TreeOfThought.MaxDepth != 4 {
		t.Errorf("MaxDepth default = %d, want 4", cfg.Strategies.TreeOfThought.MaxDepth)
	}
	if cfg.Strategies.Swarm.Agents != 5 {
		t.Errorf("Agents = %d, want 5", cfg.Strategies.Swarm.Agents)
	}
	if cfg.Strategies.Swarm.Resolution != ResolutionVote {
		t.Errorf("Resolution = %q, want vote", cfg.Strategies.Swarm.Resolution)
	}

	if len(cfg.Models) != 1 || cfg.Models[0].Tier != TierDeep {
		t.Errorf("Models = %+v", cfg.Models)
	}
	if cfg.Models[0].DisplayName != "llama3.2:70b" {
		t.Errorf("DisplayName should default to model name, got %q", cfg.Models[0].DisplayName)
	}
}

func TestLoadBytes_InvalidConfig(t *testing.T) {
	clearProviderEnv(t)

	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "bad_tier",
			yaml: `
providers:
  local:
    type: ollama
models:
  - name: m
    provider: local
    tier: turbo
`,
		},
		{
			name: "bad_resolution",
			yaml: `
providers:
  local:
    type: ollama
strategies:
  swarm:
    resolution: consensus
`,
		},
		{
			name: "missing_api_key",
			yaml: `
providers:
  cloud:
    type: openai
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadBytes([]byte(tt.yaml)); err == nil {
				t.Error("LoadBytes() should have failed")
			}
		})
	}
}

func TestCreateZeroConfig(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test-openai")

	cfg := CreateZeroConfig(ZeroConfigOptions{})
	cfg.SetDefaults()

	p, ok := cfg.GetProvider("openai")
	if !ok {
		t.Fatalf("expected openai provider, have %v", cfg.ListProviders())
	}
	if p.APIKey != "sk-test-openai" {
		t.Errorf("APIKey = %q", p.APIKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero config should validate: %v", err)
	}
}

func TestCreateZeroConfig_ExplicitProvider(t *testing.T) {
	clearProviderEnv(t)

	cfg := CreateZeroConfig(ZeroConfigOptions{
		Provider: "ollama",
		Model:    "qwen2.5",
		BaseURL:  "http://gpu-box:11434",
	})
	cfg.SetDefaults()

	p, ok := cfg.GetProvider("ollama")
	if !ok {
		t.Fatal("expected ollama provider")
	}
	if p.Model != "qwen2.5" {
		t.Errorf("Model = %q", p.Model)
	}
	if p.Host != "http://gpu-box:11434" {
		t.Errorf("Host = %q", p.Host)
	}
}

func TestExpandEnvVarsInData_TypeInference(t *testing.T) {
	t.Setenv("COGITO_TEST_TEMP", "0.9")
	t.Setenv("COGITO_TEST_FLAG", "true")

	data := map[string]interface{}{
		"temperature": "${COGITO_TEST_TEMP}",
		"enabled":     "${COGITO_TEST_FLAG}",
		"plain":       "untouched",
		"nested": []interface{}{
			"${COGITO_TEST_TEMP}",
		},
	}

	result := ExpandEnvVarsInData(data).(map[string]interface{})

	if result["temperature"] != 0.9 {
		t.Errorf("temperature = %v (%T), want float 0.9", result["temperature"], result["temperature"])
	}
	if result["enabled"] != true {
		t.Errorf("enabled = %v, want true", result["enabled"])
	}
	if result["plain"] != "untouched" {
		t.Errorf("plain = %v", result["plain"])
	}
	nested := result["nested"].([]interface{})
	if nested[0] != 0.9 {
		t.Errorf("nested[0] = %v, want 0.9", nested[0])
	}
}
