package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/cogito-ai/cogito/pkg/config"
)

// SchemaCmd generates JSON Schema from the config structs. Output goes
// to stdout so it can be redirected or piped into tooling.
type SchemaCmd struct {
	// Compact enables compact JSON output (no indentation)
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		// Disallow additional properties for strict validation
		AllowAdditionalProperties: false,
		// Inline all definitions (no $ref)
		DoNotReference: true,
	}

	schema := reflector.Reflect(&config.Config{})

	schema.ID = "https://cogito.dev/schemas/config.json"
	schema.Title = "Cogito Configuration Schema"
	schema.Description = "Complete configuration schema for the cogito reasoning orchestrator"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	schema.Examples = []interface{}{
		map[string]interface{}{
			"version": "1",
			"name":    "my-orchestrator",
			"providers": map[string]interface{}{
				"default": map[string]interface{}{
					"type":    "anthropic",
					"api_key": "${ANTHROPIC_API_KEY}",
				},
			},
			"models": []interface{}{
				map[string]interface{}{
					"name":     "claude-3-5-haiku-20241022",
					"provider": "default",
					"tier":     "fast",
				},
				map[string]interface{}{
					"name":     "claude-sonnet-4-20250514",
					"provider": "default",
					"tier":     "standard",
				},
			},
		},
	}

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}

	return nil
}
