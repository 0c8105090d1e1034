// Package tokens provides token counting for complexity scoring and budget
// accounting. Counting is tiktoken-backed per model, with a cheap character
// heuristic for callers that cannot afford an encoder.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens for a specific model.
type Counter struct {
	encoding *tiktoken.Tiktoken
	model    string
	mu       sync.RWMutex
}

var (
	// Encoder construction is expensive; encodings are cached per model.
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewCounter creates a counter for the given model. Non-OpenAI models
// (claude, gemini, local models) fall back to cl100k_base, which keeps
// budget accounting within a few percent of the vendors' own counts.
func NewCounter(model string) (*Counter, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()

	if exists {
		return &Counter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &Counter{encoding: encoding, model: model}, nil
}

// Count returns the token count for text.
func (c *Counter) Count(text string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.encoding.Encode(text, nil, nil))
}

// CountAll returns the combined token count of several prompt parts
// (system prompt, context, task) with a small per-part framing overhead.
func (c *Counter) CountAll(parts ...string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	const perPartOverhead = 3

	total := 0
	for _, part := range parts {
		if part == "" {
			continue
		}
		total += perPartOverhead
		total += len(c.encoding.Encode(part, nil, nil))
	}
	return total
}

// TruncateToFit returns text cut down to at most maxTokens tokens,
// truncating from the front so the most recent context survives.
func (c *Counter) TruncateToFit(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	toks := c.encoding.Encode(text, nil, nil)
	if len(toks) <= maxTokens {
		return text
	}
	return c.encoding.Decode(toks[len(toks)-maxTokens:])
}

// Model returns the model name this counter is configured for.
func (c *Counter) Model() string {
	return c.model
}

// Estimate provides a rough token estimate (~4 characters per token) for
// callers without an encoder at hand. Word-ish inputs land within ±20%.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	est := len(text) / 4
	if est == 0 && len(strings.TrimSpace(text)) > 0 {
		est = 1
	}
	return est
}
