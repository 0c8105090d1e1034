// Command cogito is the CLI for the cogito reasoning orchestrator.
//
// Usage:
//
//	cogito think "Design a rate limiter for a multi-tenant API"
//	cogito think --stream --strategy tree_of_thought "..."
//	cogito models --config cogito.yaml
//	cogito health
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/cogito-ai/cogito/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Think    ThinkCmd    `cmd:"" help:"Run a reasoning request."`
	Models   ModelsCmd   `cmd:"" help:"List the routing catalog."`
	Health   HealthCmd   `cmd:"" help:"Probe configured providers."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the configuration."`

	Config string `short:"c" help:"Path to config file." type:"path"`

	// Zero-config options, used when no config file is given.
	Provider string `help:"LLM provider (anthropic, openai, gemini, ollama)."`
	APIKey   string `name:"api-key" help:"API key (defaults to environment variable)."`
	BaseURL  string `name:"base-url" help:"Custom API base URL."`
	Observe  bool   `help:"Enable observability (metrics + OTLP tracing)."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// loadConfig resolves the effective configuration: a config file when
// given, zero-config from flags and environment otherwise.
func loadConfig(cli *CLI) (*config.Config, error) {
	if cli.Config != "" {
		if cli.Provider != "" || cli.APIKey != "" || cli.BaseURL != "" {
			return nil, fmt.Errorf("cannot combine --config with zero-config flags (--provider, --api-key, --base-url)")
		}
		return config.LoadFile(cli.Config)
	}

	cfg := config.CreateZeroConfig(config.ZeroConfigOptions{
		Provider: cli.Provider,
		APIKey:   cli.APIKey,
		BaseURL:  cli.BaseURL,
		Observe:  cli.Observe,
	})
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("zero-config validation failed: %w", err)
	}
	return cfg, nil
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("cogito"),
		kong.Description("Cogito - Adaptive multi-strategy reasoning orchestrator"),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
