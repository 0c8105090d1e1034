package llms

// Request carries a single reasoning call to a provider. Strategies build
// the prompt pair; the router decides which model handles it.
type Request struct {
	// Prompt is the user-turn content.
	Prompt string

	// SystemPrompt steers the model. It is sent through the provider's
	// native system channel when one exists.
	SystemPrompt string

	// Model overrides the provider's configured default model.
	Model string

	// Temperature overrides the provider default when non-nil.
	Temperature *float64

	// MaxTokens caps response length. Zero means provider default.
	MaxTokens int

	// ThinkingBudget allocates extended thinking tokens on providers
	// that support it. Zero disables thinking.
	ThinkingBudget int

	// Structured requests schema-constrained output.
	Structured *StructuredOutputConfig
}

// StructuredOutputConfig requests schema-constrained generation. Providers
// with native structured output use it directly; the rest receive the
// schema as a system instruction.
type StructuredOutputConfig struct {
	// Format is the output format. Only "json" is supported.
	Format string `json:"format,omitempty"`

	// Schema is a JSON Schema the response must satisfy.
	Schema map[string]interface{} `json:"schema,omitempty"`

	// SchemaName labels the schema for providers that require a name.
	SchemaName string `json:"schema_name,omitempty"`

	// Strict enables strict schema adherence where supported.
	Strict *bool `json:"strict,omitempty"`

	// Prefill seeds the assistant turn to force a JSON opening token on
	// providers without native schema enforcement. The prefill is
	// prepended back onto the returned text.
	Prefill string `json:"prefill,omitempty"`
}

// TokenUsage reports token consumption for a single provider call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	ThinkingTokens   int `json:"thinking_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of two usage records.
func (u TokenUsage) Add(v TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + v.PromptTokens,
		CompletionTokens: u.CompletionTokens + v.CompletionTokens,
		ThinkingTokens:   u.ThinkingTokens + v.ThinkingTokens,
		TotalTokens:      u.TotalTokens + v.TotalTokens,
	}
}

// FinishReason explains why generation stopped.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
	FinishReasonError         FinishReason = "error"
)

// Response is the outcome of a single blocking reasoning call.
type Response struct {
	// Text is the answer content.
	Text string

	// Thinking holds the model's reasoning trace when extended thinking
	// was enabled and the provider exposes it.
	Thinking string

	// Model is the model that produced the response.
	Model string

	// FinishReason explains why generation stopped.
	FinishReason FinishReason

	// Usage reports token consumption for this call.
	Usage TokenUsage
}

// ChunkKind discriminates streaming chunk types.
type ChunkKind string

const (
	ChunkText     ChunkKind = "text"
	ChunkThinking ChunkKind = "thinking"
	ChunkDone     ChunkKind = "done"
	ChunkError    ChunkKind = "error"
)

// StreamChunk is one increment of a streaming response. The final chunk on
// a stream is either ChunkDone carrying usage or ChunkError carrying the
// failure; the channel is closed after it.
type StreamChunk struct {
	Kind  ChunkKind
	Text  string
	Usage *TokenUsage
	Err   error
}
