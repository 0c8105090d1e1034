package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	cogito "github.com/cogito-ai/cogito/pkg"
)

// HealthCmd probes every configured provider and reports reachability.
type HealthCmd struct {
	Timeout time.Duration `help:"Per-probe deadline." default:"10s"`
}

func (c *HealthCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	sys, err := cogito.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sys.Close() }()

	health := sys.HealthCheck(ctx)

	names := make([]string, 0, len(health.Providers))
	for name := range health.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		status := "ok"
		if !health.Providers[name] {
			status = "unreachable"
		}
		fmt.Printf("  %-20s %s\n", name, status)
	}
	fmt.Printf("\nactive sessions: %d\n", health.ActiveSessions)

	if !health.Healthy {
		return fmt.Errorf("no provider is reachable")
	}
	fmt.Println("status: healthy")
	return nil
}
