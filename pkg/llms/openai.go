package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/httpclient"
	"github.com/cogito-ai/cogito/pkg/observability"
)

const defaultOpenAIHost = "https://api.openai.com/v1"

// OpenAIProvider implements Provider for the OpenAI Chat Completions API
// and compatible endpoints. Reasoning models (o-series, gpt-5) take
// max_completion_tokens and a reasoning_effort derived from the thinking
// budget instead of a sampling temperature.
type OpenAIProvider struct {
	name       string
	config     *config.ProviderConfig
	httpClient *httpclient.Client
	baseURL    string
}

type openAIRequest struct {
	Model               string                `json:"model"`
	Messages            []openAIMessage       `json:"messages"`
	Temperature         *float64              `json:"temperature,omitempty"`
	MaxTokens           int                   `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int                  `json:"max_completion_tokens,omitempty"`
	ReasoningEffort     string                `json:"reasoning_effort,omitempty"`
	Stream              bool                  `json:"stream,omitempty"`
	StreamOptions       *openAIStreamOptions  `json:"stream_options,omitempty"`
	ResponseFormat      *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIJSONSchema struct {
	Name   string                 `json:"name"`
	Schema map[string]interface{} `json:"schema"`
	Strict *bool                  `json:"strict,omitempty"`
}

type openAIUsage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	TotalTokens             int `json:"total_tokens"`
	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details,omitempty"`
}

type openAIAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openAIUsage    `json:"usage,omitempty"`
	Error *openAIAPIError `json:"error,omitempty"`
}

type openAIStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openAIUsage    `json:"usage,omitempty"`
	Error *openAIAPIError `json:"error,omitempty"`
}

// NewOpenAIProvider creates an OpenAI provider from configuration.
func NewOpenAIProvider(name string, cfg *config.ProviderConfig) (*OpenAIProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	baseURL := strings.TrimSuffix(cfg.Host, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIHost
	}

	return &OpenAIProvider{
		name:       name,
		config:     cfg,
		httpClient: newRetryingClient(cfg, httpclient.ParseOpenAIRateLimitHeaders),
		baseURL:    baseURL,
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Reason(ctx context.Context, req *Request) (*Response, error) {
	startTime := time.Now()
	model := p.resolveModel(req)

	tracer := observability.GetTracer("cogito.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrProvider, "openai"),
			attribute.String(observability.AttrLLMModel, model),
			attribute.Bool("llm.streaming", false),
		),
	)
	defer span.End()

	request := p.buildRequest(req, model, false)

	response, err := p.makeRequest(ctx, request)
	duration := time.Since(startTime)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		metrics := observability.GetGlobalMetrics()
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.name, model, duration, 0, 0, err)
		}

		return nil, err
	}

	result, err := p.parseResponse(response)
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

func (p *OpenAIProvider) ReasonStream(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	model := p.resolveModel(req)
	request := p.buildRequest(req, model, true)

	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)

		if err := p.makeStreamingRequest(ctx, request, outputCh); err != nil {
			outputCh <- StreamChunk{
				Kind: ChunkError,
				Err:  err,
			}
		}
	}()

	return outputCh, nil
}

func (p *OpenAIProvider) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func (p *OpenAIProvider) Close() error {
	return nil
}

func (p *OpenAIProvider) resolveModel(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.config.Model
}

// isReasoningModel reports whether the model routes internal reasoning
// through reasoning_effort rather than sampling controls.
func isReasoningModel(model string) bool {
	switch model {
	case "o1", "o3", "o4", "gpt-5":
		return true
	}
	for _, prefix := range []string{"o1-", "o3-", "o4-", "gpt-5-"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// mapBudgetToReasoningEffort translates a thinking token budget into the
// discrete effort levels reasoning models accept.
func mapBudgetToReasoningEffort(budget int) string {
	switch {
	case budget <= 0:
		return "low"
	case budget <= 512:
		return "minimal"
	case budget <= 1024:
		return "low"
	case budget <= 8192:
		return "medium"
	default:
		return "high"
	}
}

func (p *OpenAIProvider) buildRequest(req *Request, model string, stream bool) openAIRequest {
	messages := make([]openAIMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	request := openAIRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
	}
	if stream {
		request.StreamOptions = &openAIStreamOptions{IncludeUsage: true}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}

	if isReasoningModel(model) {
		// Reasoning models take max_completion_tokens and only accept
		// the default temperature.
		request.MaxCompletionTokens = &maxTokens
		defaultTemp := 1.0
		request.Temperature = &defaultTemp
		request.ReasoningEffort = mapBudgetToReasoningEffort(req.ThinkingBudget)
	} else {
		request.MaxTokens = maxTokens
		if req.Temperature != nil {
			request.Temperature = req.Temperature
		} else if p.config.Temperature != nil {
			request.Temperature = p.config.Temperature
		}
	}

	if req.Structured != nil && req.Structured.Format == "json" && req.Structured.Schema != nil {
		name := req.Structured.SchemaName
		if name == "" {
			name = "response"
		}
		request.ResponseFormat = &openAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &openAIJSONSchema{
				Name:   name,
				Schema: req.Structured.Schema,
				Strict: req.Structured.Strict,
			},
		}
	}

	return request
}

func (p *OpenAIProvider) parseResponse(response *openAIResponse) (*Response, error) {
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := response.Choices[0]

	var usage TokenUsage
	if response.Usage != nil {
		usage = TokenUsage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		}
		if response.Usage.CompletionTokensDetails != nil {
			usage.ThinkingTokens = response.Usage.CompletionTokensDetails.ReasoningTokens
		}
	}

	return &Response{
		Text:         choice.Message.Content,
		Thinking:     choice.Message.Reasoning,
		Model:        response.Model,
		FinishReason: mapOpenAIFinishReason(choice.FinishReason),
		Usage:        usage,
	}, nil
}

func mapOpenAIFinishReason(reason string) FinishReason {
	switch reason {
	case "stop":
		return FinishReasonStop
	case "length":
		return FinishReasonLength
	case "content_filter":
		return FinishReasonContentFilter
	default:
		return FinishReasonStop
	}
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request openAIRequest) (*openAIResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(req)
	// The retrying client may return both a response and an error for
	// non-2xx status codes.
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			errorBody := string(body)
			if readErr != nil {
				errorBody = fmt.Sprintf("(failed to read error body: %v)", readErr)
			}
			if apiErr := parseOpenAIError(body); apiErr != nil {
				return nil, &ProviderError{
					Provider:   p.name,
					Model:      request.Model,
					StatusCode: resp.StatusCode,
					Err:        fmt.Errorf("%s (type: %s, code: %s)", apiErr.Message, apiErr.Type, apiErr.Code),
				}
			}
			return nil, &ProviderError{
				Provider:   p.name,
				Model:      request.Model,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("%s", errorBody),
			}
		}
	}

	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp == nil {
		return nil, fmt.Errorf("HTTP request failed: no response received")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s (type: %s)", response.Error.Message, response.Error.Type)
	}

	return &response, nil
}

func (p *OpenAIProvider) makeStreamingRequest(ctx context.Context, request openAIRequest, outputCh chan<- StreamChunk) error {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			errorBody := string(body)
			if readErr != nil {
				errorBody = fmt.Sprintf("(failed to read error body: %v)", readErr)
			}
			if apiErr := parseOpenAIError(body); apiErr != nil {
				return &ProviderError{
					Provider:   p.name,
					Model:      request.Model,
					StatusCode: resp.StatusCode,
					Err:        fmt.Errorf("%s (type: %s, code: %s)", apiErr.Message, apiErr.Type, apiErr.Code),
				}
			}
			return &ProviderError{
				Provider:   p.name,
				Model:      request.Model,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("%s", errorBody),
			}
		}
	}

	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp == nil {
		return fmt.Errorf("HTTP request failed: no response received")
	}

	reader := bufio.NewReader(resp.Body)

	var usage TokenUsage

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		line = line[6:]

		if bytes.Equal(line, []byte("[DONE]")) {
			break
		}

		var streamResp openAIStreamResponse
		if err := json.Unmarshal(line, &streamResp); err != nil {
			continue
		}

		if streamResp.Error != nil {
			return fmt.Errorf("OpenAI API error: %s (type: %s)", streamResp.Error.Message, streamResp.Error.Type)
		}

		// With stream_options.include_usage the final chunk carries
		// usage and an empty choices list. Keep reading past the
		// finish_reason chunk so the usage is not lost.
		if streamResp.Usage != nil {
			usage.PromptTokens = streamResp.Usage.PromptTokens
			usage.CompletionTokens = streamResp.Usage.CompletionTokens
			usage.TotalTokens = streamResp.Usage.TotalTokens
			if streamResp.Usage.CompletionTokensDetails != nil {
				usage.ThinkingTokens = streamResp.Usage.CompletionTokensDetails.ReasoningTokens
			}
		}

		if len(streamResp.Choices) == 0 {
			continue
		}

		choice := streamResp.Choices[0]

		if choice.Delta.Reasoning != "" {
			outputCh <- StreamChunk{Kind: ChunkThinking, Text: choice.Delta.Reasoning}
		}

		if choice.Delta.Content != "" {
			outputCh <- StreamChunk{Kind: ChunkText, Text: choice.Delta.Content}
		}
	}

	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	outputCh <- StreamChunk{Kind: ChunkDone, Usage: &usage}

	return nil
}

func parseOpenAIError(body []byte) *openAIAPIError {
	if len(body) == 0 {
		return nil
	}
	var errorResp struct {
		Error openAIAPIError `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		return &errorResp.Error
	}
	return nil
}

var _ Provider = (*OpenAIProvider)(nil)
