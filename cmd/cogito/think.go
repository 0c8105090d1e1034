package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cogito "github.com/cogito-ai/cogito/pkg"
)

// ThinkCmd runs one reasoning request end to end.
type ThinkCmd struct {
	Prompt []string `arg:"" required:"" help:"The task to reason about."`

	Context      string   `help:"Background material folded into the strategy prompts."`
	Hint         []string `help:"Steering directive. Repeatable."`
	OutputFormat string   `name:"output-format" help:"Directive for the answer's shape, e.g. markdown or json."`
	User         string   `help:"User the session is attributed to."`

	Strategy    string        `help:"Force a strategy: chain_of_thought, tree_of_thought, multi_agent, hybrid."`
	Model       string        `help:"Force a catalog model by name or display name."`
	Tier        string        `help:"Force a capability tier: fast, standard, deep."`
	MaxBudget   int           `name:"max-budget" help:"Cap the session's thinking budget in tokens."`
	Timeout     time.Duration `help:"Replace the configured request timeout."`
	Agents      int           `help:"Override the swarm agent count."`
	BeamWidth   int           `name:"beam-width" help:"Override the tree search beam width."`
	MaxDepth    int           `name:"max-depth" help:"Override the tree search depth bound."`
	MaxBranches int           `name:"max-branches" help:"Override the candidates generated per tree node."`
	Temperature float64       `help:"Override the sampling temperature of reasoning calls."`

	Stream       bool `help:"Stream thinking and answer tokens as they are produced."`
	ShowThinking bool `name:"show-thinking" negatable:"" default:"true" help:"Render thinking blocks on interactive terminals."`
	JSON         bool `help:"Emit the result as JSON (JSON Lines per event with --stream)."`
}

func (c *ThinkCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle cancellation signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Cancelling...")
		cancel()
	}()

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	sys, err := cogito.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sys.Close() }()

	input := &cogito.Input{
		Prompt:       strings.Join(c.Prompt, " "),
		Context:      c.Context,
		Hints:        c.Hint,
		OutputFormat: c.OutputFormat,
		UserID:       c.User,
		Overrides: cogito.Overrides{
			Strategy:    cogito.Strategy(c.Strategy),
			Model:       c.Model,
			Tier:        c.Tier,
			MaxBudget:   c.MaxBudget,
			Timeout:     c.Timeout,
			Agents:      c.Agents,
			BeamWidth:   c.BeamWidth,
			MaxDepth:    c.MaxDepth,
			MaxBranches: c.MaxBranches,
			Temperature: c.Temperature,
		},
	}

	if c.Stream {
		return c.runStream(ctx, sys, input)
	}
	return c.runBlocking(ctx, sys, input)
}

func (c *ThinkCmd) runBlocking(ctx context.Context, sys *cogito.System, input *cogito.Input) error {
	result, err := sys.Think(ctx, input)
	if err != nil {
		return err
	}

	if c.JSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(result.Answer)
	printSummary(os.Stderr, result)
	return nil
}

func (c *ThinkCmd) runStream(ctx context.Context, sys *cogito.System, input *cogito.Input) error {
	events, err := sys.ThinkStream(ctx, input)
	if err != nil {
		return err
	}

	if c.JSON {
		return streamJSON(os.Stdout, events)
	}

	// Thinking blocks are terminal decoration; keep pipes clean.
	colorize := isTerminal(os.Stdout)
	showThinking := c.ShowThinking && colorize
	sawDelta := false

	for ev := range events {
		switch ev.Kind {
		case cogito.EventThinkingStart, cogito.EventThinkingStep:
			if showThinking {
				fmt.Print(thinkingBlock(ev.Content, colorize))
			}
		case cogito.EventTokenDelta:
			sawDelta = true
			fmt.Print(ev.Content)
		case cogito.EventThinkingComplete:
			if sawDelta {
				fmt.Println()
			} else if ev.Result != nil {
				// Step-granular strategies never emit deltas; the answer
				// arrives whole with the terminal event.
				fmt.Println(ev.Result.Answer)
			}
			if ev.Result != nil {
				printSummary(os.Stderr, ev.Result)
			}
			return nil
		case cogito.EventError:
			return ev.Err
		}
	}
	return ctx.Err()
}

// streamJSON writes one JSON object per event. The error event carries
// its message in Content, so nothing is lost to the unserialized Err.
func streamJSON(w io.Writer, events <-chan cogito.StreamEvent) error {
	enc := json.NewEncoder(w)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		switch ev.Kind {
		case cogito.EventThinkingComplete:
			return nil
		case cogito.EventError:
			return ev.Err
		}
	}
	return nil
}
