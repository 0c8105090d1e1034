package main

import (
	"fmt"

	"github.com/cogito-ai/cogito/pkg/routing"
)

// ModelsCmd lists the routable model catalog.
type ModelsCmd struct {
	Tier string `help:"Only show models serving this tier."`
}

func (c *ModelsCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	catalog, err := routing.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to build model catalog: %w", err)
	}

	models := catalog.Models()
	if c.Tier != "" {
		filtered := models[:0]
		for _, m := range models {
			if m.Tier == c.Tier {
				filtered = append(filtered, m)
			}
		}
		models = filtered
	}

	if len(models) == 0 {
		fmt.Println("No models available.")
		return nil
	}

	fmt.Printf("Available models (%d):\n", len(models))
	for _, m := range models {
		name := m.Name
		if m.DisplayName != "" && m.DisplayName != m.Name {
			name = fmt.Sprintf("%s (%s)", m.Name, m.DisplayName)
		}
		fmt.Printf("  %-46s provider=%-10s tier=%-8s", name, m.Provider, m.Tier)
		if m.MaxBudget > 0 {
			fmt.Printf(" max_budget=%d", m.MaxBudget)
		}
		fmt.Println()
	}
	return nil
}
