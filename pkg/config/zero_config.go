package config

// ZeroConfigOptions carries the CLI flags that matter when no config file
// is given.
type ZeroConfigOptions struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Observe  bool
}

// CreateZeroConfig builds a single-provider config from flags and
// environment, so the CLI works without a config file.
func CreateZeroConfig(opts ZeroConfigOptions) *Config {
	provider := ProviderType(opts.Provider)
	apiKey := opts.APIKey

	if apiKey == "" {
		if provider != "" {
			apiKey = apiKeyFromEnv(provider)
		} else {
			provider = detectProviderFromEnv()
			apiKey = apiKeyFromEnv(provider)
		}
	}
	if provider == "" {
		provider = ProviderOllama
	}

	providerCfg := &ProviderConfig{
		Type: provider,
	}
	if apiKey != "" {
		providerCfg.APIKey = apiKey
	}
	if opts.BaseURL != "" {
		providerCfg.Host = opts.BaseURL
	}
	if opts.Model != "" {
		providerCfg.Model = opts.Model
	}

	cfg := &Config{
		Name: "zero-config",
		Providers: map[string]*ProviderConfig{
			string(provider): providerCfg,
		},
	}

	if opts.Observe {
		cfg.Observability.Metrics.Enabled = true
		cfg.Observability.Tracing.Enabled = true
	}

	return cfg
}
