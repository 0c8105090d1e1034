package cogito

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestNew_AssemblesFromConfig(t *testing.T) {
	cfg, err := LoadConfigBytes([]byte(`
name: "test system"
providers:
  local:
    type: ollama
    model: llama3.3
models:
  - name: llama3.3
    provider: local
    tier: standard
`))
	require.NoError(t, err)

	system, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, system.Close())
	}()

	assert.Equal(t, 1, system.Providers().Count())
	_, ok := system.Providers().Get("local")
	assert.True(t, ok, "configured provider not registered")

	assert.Equal(t, 1, system.Catalog().Len())
	assert.NotNil(t, system.Orchestrator())
	assert.NotNil(t, system.Budgets())
	assert.NotNil(t, system.Metrics())
	assert.Same(t, cfg, system.Config())
}

func TestNew_NilConfigBuildsFromEnvironment(t *testing.T) {
	clearProviderEnv(t)

	system, err := New(context.Background(), nil)
	require.NoError(t, err)
	defer system.Close()

	// With no API keys in the environment the autodetected provider is
	// the local one.
	_, ok := system.Providers().Get("default")
	assert.True(t, ok)
	assert.Greater(t, system.Catalog().Len(), 0, "stock catalog should not be empty")
}

func TestNew_FailsWhenNoProviderComesUp(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	for _, p := range cfg.Providers {
		p.Type = "mystery"
	}

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize any providers")
}

func TestNew_InvalidInputRejectedEndToEnd(t *testing.T) {
	clearProviderEnv(t)

	system, err := New(context.Background(), nil)
	require.NoError(t, err)
	defer system.Close()

	_, err = system.Think(context.Background(), &Input{})
	assert.Error(t, err)

	events, err := system.ThinkStream(context.Background(), &Input{})
	assert.Error(t, err)
	assert.Nil(t, events)
}
