package llms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/observability"
)

// GeminiProvider implements Provider on the official genai SDK. Thinking
// traces surface as thought parts when a thinking budget is set.
type GeminiProvider struct {
	name   string
	config *config.ProviderConfig
	client *genai.Client
}

// NewGeminiProvider creates a Gemini provider from configuration.
func NewGeminiProvider(name string, cfg *config.ProviderConfig) (*GeminiProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	// Constructors should not require a caller context.
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		name:   name,
		config: cfg,
		client: client,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return p.name
}

func (p *GeminiProvider) Reason(ctx context.Context, req *Request) (*Response, error) {
	startTime := time.Now()
	model := p.resolveModel(req)

	tracer := observability.GetTracer("cogito.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrProvider, "gemini"),
			attribute.String(observability.AttrLLMModel, model),
			attribute.Bool("llm.streaming", false),
		),
	)
	defer span.End()

	contents, systemInstruction := p.buildContents(req)
	genConfig := p.buildConfig(req, systemInstruction)

	genResp, err := p.client.Models.GenerateContent(ctx, model, contents, genConfig)
	duration := time.Since(startTime)

	if err != nil {
		wrapped := fmt.Errorf("Gemini generation failed: %w", err)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, wrapped.Error())

		metrics := observability.GetGlobalMetrics()
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.name, model, duration, 0, 0, wrapped)
		}

		return nil, wrapped
	}

	result, err := p.parseResponse(genResp, model)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		metrics := observability.GetGlobalMetrics()
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.name, model, duration, 0, 0, err)
		}

		return nil, err
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, result.Usage.PromptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, result.Usage.CompletionTokens),
	)
	span.SetStatus(codes.Ok, "success")

	metrics := observability.GetGlobalMetrics()
	if metrics != nil {
		metrics.RecordLLMCall(ctx, p.name, model, duration, result.Usage.PromptTokens, result.Usage.CompletionTokens, nil)
	}

	return result, nil
}

func (p *GeminiProvider) ReasonStream(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	model := p.resolveModel(req)
	contents, systemInstruction := p.buildContents(req)
	genConfig := p.buildConfig(req, systemInstruction)

	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)

		var usage TokenUsage

		for genResp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, genConfig) {
			if err != nil {
				outputCh <- StreamChunk{
					Kind: ChunkError,
					Err:  fmt.Errorf("Gemini streaming error: %w", err),
				}
				return
			}

			if genResp.UsageMetadata != nil {
				usage = TokenUsage{
					PromptTokens:     int(genResp.UsageMetadata.PromptTokenCount),
					CompletionTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
					ThinkingTokens:   int(genResp.UsageMetadata.ThoughtsTokenCount),
					TotalTokens:      int(genResp.UsageMetadata.TotalTokenCount),
				}
			}

			if len(genResp.Candidates) == 0 || genResp.Candidates[0].Content == nil {
				continue
			}

			for _, part := range genResp.Candidates[0].Content.Parts {
				if part.Text == "" {
					continue
				}
				if part.Thought {
					outputCh <- StreamChunk{Kind: ChunkThinking, Text: part.Text}
				} else {
					outputCh <- StreamChunk{Kind: ChunkText, Text: part.Text}
				}
			}
		}

		outputCh <- StreamChunk{Kind: ChunkDone, Usage: &usage}
	}()

	return outputCh, nil
}

func (p *GeminiProvider) Healthy(ctx context.Context) bool {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: "ping"}},
		Role:  "user",
	}}
	_, err := p.client.Models.CountTokens(ctx, p.config.Model, contents, nil)
	return err == nil
}

func (p *GeminiProvider) Close() error {
	return nil
}

func (p *GeminiProvider) resolveModel(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.config.Model
}

func (p *GeminiProvider) buildContents(req *Request) ([]*genai.Content, *genai.Content) {
	var systemInstruction *genai.Content
	if req.SystemPrompt != "" {
		systemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
			Role:  "user",
		}
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: req.Prompt}},
		Role:  "user",
	}}

	return contents, systemInstruction
}

func (p *GeminiProvider) buildConfig(req *Request, systemInstruction *genai.Content) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	}

	if req.Temperature != nil {
		genConfig.Temperature = genai.Ptr(float32(*req.Temperature))
	} else if p.config.Temperature != nil {
		genConfig.Temperature = genai.Ptr(float32(*p.config.Temperature))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens > 0 {
		genConfig.MaxOutputTokens = int32(maxTokens)
	}

	if req.ThinkingBudget > 0 {
		budget := int32(req.ThinkingBudget)
		genConfig.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  &budget,
		}
	}

	if req.Structured != nil && req.Structured.Format == "json" && req.Structured.Schema != nil {
		genConfig.ResponseMIMEType = "application/json"
		genConfig.ResponseSchema = toGenaiSchema(req.Structured.Schema)
	}

	return genConfig
}

func (p *GeminiProvider) parseResponse(genResp *genai.GenerateContentResponse, model string) (*Response, error) {
	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	candidate := genResp.Candidates[0]

	var text, thinking strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text == "" {
				continue
			}
			if part.Thought {
				thinking.WriteString(part.Text)
			} else {
				text.WriteString(part.Text)
			}
		}
	}

	result := &Response{
		Text:         text.String(),
		Thinking:     thinking.String(),
		Model:        model,
		FinishReason: mapGeminiFinishReason(candidate.FinishReason),
	}

	if genResp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			PromptTokens:     int(genResp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
			ThinkingTokens:   int(genResp.UsageMetadata.ThoughtsTokenCount),
			TotalTokens:      int(genResp.UsageMetadata.TotalTokenCount),
		}
	}

	return result, nil
}

func mapGeminiFinishReason(reason genai.FinishReason) FinishReason {
	switch reason {
	case genai.FinishReasonStop:
		return FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return FinishReasonLength
	case genai.FinishReasonSafety:
		return FinishReasonContentFilter
	default:
		return FinishReasonStop
	}
}

// toGenaiSchema converts a JSON schema map to the SDK schema type.
func toGenaiSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}

	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]interface{}); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]interface{}); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := schema["enum"].([]interface{}); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}

	return s
}

var _ Provider = (*GeminiProvider)(nil)
