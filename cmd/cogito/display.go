package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/cogito-ai/cogito/pkg/reasoning"
)

// ANSI color codes for thinking blocks
const (
	colorReset = "\033[0m"
	colorGray  = "\033[90m" // Bright black (gray)
	colorDim   = "\033[2m"  // Dim text
)

// isTerminal reports whether the file is an interactive terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// thinkingBlock formats text as a grayed-out thinking block, one
// bracketed line per input line.
func thinkingBlock(text string, colorize bool) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if colorize {
			b.WriteString(colorGray)
			b.WriteString(colorDim)
		}
		b.WriteString("[thinking] ")
		b.WriteString(line)
		if colorize {
			b.WriteString(colorReset)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// printSummary writes the run's closing stats.
func printSummary(w io.Writer, result *reasoning.Result) {
	fmt.Fprintf(w, "\nstrategy:   %s\n", result.Strategy)
	fmt.Fprintf(w, "models:     %s\n", strings.Join(result.ModelsUsed, ", "))
	fmt.Fprintf(w, "confidence: %.2f\n", result.Confidence)
	fmt.Fprintf(w, "steps:      %d\n", len(result.Steps))
	fmt.Fprintf(w, "tokens:     %d\n", result.Usage.TotalTokens)
	fmt.Fprintf(w, "latency:    %s\n", result.Latency.Round(time.Millisecond))
}
