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

const (
	anthropicVersion     = "2023-06-01"
	defaultAnthropicHost = "https://api.anthropic.com"
)

// AnthropicProvider implements Provider for the Anthropic Messages API.
// Extended thinking is requested through the thinking block; the API
// rejects explicit temperatures while thinking is enabled, so the two are
// mutually exclusive per request.
type AnthropicProvider struct {
	name       string
	config     *config.ProviderConfig
	httpClient *httpclient.Client
	baseURL    string
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	Thinking    *anthropicThinking `json:"thinking,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicContentBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicAPIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
	Error      *anthropicAPIError      `json:"error,omitempty"`
}

// anthropicStreamEvent covers every SSE event shape the Messages API
// emits. Fields irrelevant to a given event type stay nil.
type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message,omitempty"`
	Delta *struct {
		Type       string `json:"type"`
		Text       string `json:"text,omitempty"`
		Thinking   string `json:"thinking,omitempty"`
		StopReason string `json:"stop_reason,omitempty"`
	} `json:"delta,omitempty"`
	Usage *anthropicUsage    `json:"usage,omitempty"`
	Error *anthropicAPIError `json:"error,omitempty"`
}

// NewAnthropicProvider creates an Anthropic provider from configuration.
func NewAnthropicProvider(name string, cfg *config.ProviderConfig) (*AnthropicProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	baseURL := strings.TrimSuffix(cfg.Host, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicHost
	}

	return &AnthropicProvider{
		name:       name,
		config:     cfg,
		httpClient: newRetryingClient(cfg, httpclient.ParseAnthropicRateLimitHeaders),
		baseURL:    baseURL,
	}, nil
}

func (p *AnthropicProvider) Name() string {
	return p.name
}

func (p *AnthropicProvider) Reason(ctx context.Context, req *Request) (*Response, error) {
	startTime := time.Now()
	model := p.resolveModel(req)

	tracer := observability.GetTracer("cogito.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrProvider, "anthropic"),
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

	result := p.parseResponse(response, req)

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

func (p *AnthropicProvider) ReasonStream(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	model := p.resolveModel(req)
	request := p.buildRequest(req, model, true)

	prefill := ""
	if req.Structured != nil {
		prefill = req.Structured.Prefill
	}

	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)

		if err := p.makeStreamingRequest(ctx, request, prefill, outputCh); err != nil {
			outputCh <- StreamChunk{
				Kind: ChunkError,
				Err:  err,
			}
		}
	}()

	return outputCh, nil
}

func (p *AnthropicProvider) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func (p *AnthropicProvider) Close() error {
	return nil
}

func (p *AnthropicProvider) resolveModel(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.config.Model
}

func (p *AnthropicProvider) buildRequest(req *Request, model string, stream bool) anthropicRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}

	messages := []anthropicMessage{{Role: "user", Content: req.Prompt}}
	if req.Structured != nil && req.Structured.Prefill != "" {
		// Prefilling the assistant turn forces the response to open as
		// JSON. The prefill is prepended back onto the parsed text.
		messages = append(messages, anthropicMessage{
			Role:    "assistant",
			Content: req.Structured.Prefill,
		})
	}

	request := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    joinSystemPrompts(req.SystemPrompt, schemaSystemPrompt(req.Structured)),
		Messages:  messages,
		Stream:    stream,
	}

	if req.ThinkingBudget > 0 {
		// max_tokens must exceed the thinking budget.
		if request.MaxTokens <= req.ThinkingBudget {
			request.MaxTokens = req.ThinkingBudget + maxTokens
		}
		request.Thinking = &anthropicThinking{
			Type:         "enabled",
			BudgetTokens: req.ThinkingBudget,
		}
	} else if req.Temperature != nil {
		request.Temperature = req.Temperature
	} else if p.config.Temperature != nil {
		request.Temperature = p.config.Temperature
	}

	return request
}

func (p *AnthropicProvider) parseResponse(response *anthropicResponse, req *Request) *Response {
	var textParts []string
	var thinkingParts []string

	for _, block := range response.Content {
		switch block.Type {
		case "text":
			textParts = append(textParts, block.Text)
		case "thinking":
			thinkingParts = append(thinkingParts, block.Thinking)
		}
	}

	text := strings.Join(textParts, "")
	if req.Structured != nil && req.Structured.Prefill != "" {
		text = req.Structured.Prefill + text
	}

	usage := TokenUsage{
		PromptTokens:     response.Usage.InputTokens,
		CompletionTokens: response.Usage.OutputTokens,
		TotalTokens:      response.Usage.InputTokens + response.Usage.OutputTokens,
	}

	return &Response{
		Text:         text,
		Thinking:     strings.Join(thinkingParts, ""),
		Model:        response.Model,
		FinishReason: mapAnthropicStopReason(response.StopReason),
		Usage:        usage,
	}
}

func mapAnthropicStopReason(reason string) FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return FinishReasonStop
	case "max_tokens":
		return FinishReasonLength
	case "refusal":
		return FinishReasonContentFilter
	default:
		return FinishReasonStop
	}
}

func (p *AnthropicProvider) makeRequest(ctx context.Context, request anthropicRequest) (*anthropicResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	p.setHeaders(req)

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
			if apiErr := parseAnthropicError(body); apiErr != nil {
				return nil, &ProviderError{
					Provider:   p.name,
					Model:      request.Model,
					StatusCode: resp.StatusCode,
					Err:        fmt.Errorf("%s (type: %s)", apiErr.Message, apiErr.Type),
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

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("Anthropic API error: %s (type: %s)", response.Error.Message, response.Error.Type)
	}

	return &response, nil
}

func (p *AnthropicProvider) makeStreamingRequest(ctx context.Context, request anthropicRequest, prefill string, outputCh chan<- StreamChunk) error {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			errorBody := string(body)
			if readErr != nil {
				errorBody = fmt.Sprintf("(failed to read error body: %v)", readErr)
			}
			if apiErr := parseAnthropicError(body); apiErr != nil {
				return &ProviderError{
					Provider:   p.name,
					Model:      request.Model,
					StatusCode: resp.StatusCode,
					Err:        fmt.Errorf("%s (type: %s)", apiErr.Message, apiErr.Type),
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
	prefillSent := prefill == ""

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

		// Event names also arrive as "event:" lines; the JSON payload
		// carries its own type field, so those are skipped.
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		line = line[6:]

		var event anthropicStreamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}

		switch event.Type {
		case "error":
			if event.Error != nil {
				return fmt.Errorf("Anthropic API error: %s (type: %s)", event.Error.Message, event.Error.Type)
			}

		case "message_start":
			if event.Message != nil {
				usage.PromptTokens = event.Message.Usage.InputTokens
			}

		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case "text_delta":
				text := event.Delta.Text
				if !prefillSent {
					text = prefill + text
					prefillSent = true
				}
				outputCh <- StreamChunk{Kind: ChunkText, Text: text}
			case "thinking_delta":
				outputCh <- StreamChunk{Kind: ChunkThinking, Text: event.Delta.Thinking}
			}

		case "message_delta":
			if event.Usage != nil {
				usage.CompletionTokens = event.Usage.OutputTokens
			}

		case "message_stop":
			usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			outputCh <- StreamChunk{Kind: ChunkDone, Usage: &usage}
			return nil
		}
	}

	// Stream ended without a message_stop event. Report what we have.
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	outputCh <- StreamChunk{Kind: ChunkDone, Usage: &usage}

	return nil
}

func (p *AnthropicProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}

func parseAnthropicError(body []byte) *anthropicAPIError {
	if len(body) == 0 {
		return nil
	}
	var errorResp struct {
		Error anthropicAPIError `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		return &errorResp.Error
	}
	return nil
}

var _ Provider = (*AnthropicProvider)(nil)
