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

const defaultOllamaHost = "http://localhost:11434"

// OllamaProvider implements Provider for a local Ollama server. Responses
// stream as newline-delimited JSON rather than SSE.
type OllamaProvider struct {
	name       string
	config     *config.ProviderConfig
	httpClient *httpclient.Client
	baseURL    string
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   interface{}     `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
	Think    interface{}     `json:"think,omitempty"`
}

type ollamaMessage struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ollamaResponse is both the blocking response body and one line of the
// NDJSON stream. Counters are only populated on the final done chunk.
type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason,omitempty"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

// NewOllamaProvider creates an Ollama provider from configuration. No API
// key is required.
func NewOllamaProvider(name string, cfg *config.ProviderConfig) (*OllamaProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	baseURL := strings.TrimSuffix(cfg.Host, "/")
	if baseURL == "" {
		baseURL = defaultOllamaHost
	}

	return &OllamaProvider{
		name:       name,
		config:     cfg,
		httpClient: newRetryingClient(cfg, nil),
		baseURL:    baseURL,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return p.name
}

func (p *OllamaProvider) Reason(ctx context.Context, req *Request) (*Response, error) {
	startTime := time.Now()
	model := p.resolveModel(req)

	tracer := observability.GetTracer("cogito.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrProvider, "ollama"),
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

	if response.Error != "" {
		apiErr := fmt.Errorf("Ollama API error: %s", response.Error)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error)

		metrics := observability.GetGlobalMetrics()
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.name, model, duration, 0, 0, apiErr)
		}

		return nil, apiErr
	}

	result := &Response{
		Text:         response.Message.Content,
		Thinking:     response.Message.Thinking,
		Model:        response.Model,
		FinishReason: mapOllamaDoneReason(response.DoneReason),
		Usage: TokenUsage{
			PromptTokens:     response.PromptEvalCount,
			CompletionTokens: response.EvalCount,
			TotalTokens:      response.PromptEvalCount + response.EvalCount,
		},
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

func (p *OllamaProvider) ReasonStream(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
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

func (p *OllamaProvider) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func (p *OllamaProvider) Close() error {
	return nil
}

func (p *OllamaProvider) resolveModel(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.config.Model
}

func (p *OllamaProvider) buildRequest(req *Request, model string, stream bool) ollamaRequest {
	messages := make([]ollamaMessage, 0, 2)

	system := joinSystemPrompts(req.SystemPrompt, schemaSystemPrompt(req.Structured))
	if system != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: system})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: req.Prompt})

	request := ollamaRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
	}

	opts := &ollamaOptions{}
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	} else if p.config.Temperature != nil {
		opts.Temperature = *p.config.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens > 0 {
		opts.NumPredict = maxTokens
	}
	if opts.Temperature > 0 || opts.NumPredict > 0 {
		request.Options = opts
	}

	// Models that cannot think reject the think flag outright, so it is
	// only sent for known thinking-capable families.
	if req.ThinkingBudget > 0 && isThinkingCapableModel(model) {
		request.Think = true
	}

	if req.Structured != nil && req.Structured.Format == "json" {
		if req.Structured.Schema != nil {
			request.Format = req.Structured.Schema
		} else {
			request.Format = "json"
		}
	}

	return request
}

// isThinkingCapableModel checks whether a model name belongs to a family
// with thinking support.
func isThinkingCapableModel(modelName string) bool {
	modelLower := strings.ToLower(modelName)

	excluded := []string{
		"qwen3-coder",
		"qwen2-coder",
	}
	for _, name := range excluded {
		if strings.Contains(modelLower, name) {
			return false
		}
	}

	capable := []string{
		"qwen3",
		"deepseek-r1",
		"deepseek-v3",
		"gpt-oss",
	}
	for _, name := range capable {
		if strings.Contains(modelLower, name) {
			return true
		}
	}
	return false
}

func mapOllamaDoneReason(reason string) FinishReason {
	switch reason {
	case "stop", "":
		return FinishReasonStop
	case "length":
		return FinishReasonLength
	default:
		return FinishReasonStop
	}
}

func (p *OllamaProvider) makeRequest(ctx context.Context, request ollamaRequest) (*ollamaResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			errorBody := string(body)
			if readErr != nil {
				errorBody = fmt.Sprintf("(failed to read error body: %v)", readErr)
			}
			var errorJSON struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(body, &errorJSON) == nil && errorJSON.Error != "" {
				errorBody = errorJSON.Error
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
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	if resp == nil {
		return nil, fmt.Errorf("failed to make request: no response received")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response ollamaResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}

func (p *OllamaProvider) makeStreamingRequest(ctx context.Context, request ollamaRequest, outputCh chan<- StreamChunk) error {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			errorBody := string(body)
			if readErr != nil {
				errorBody = fmt.Sprintf("(failed to read error body: %v)", readErr)
			}
			var errorJSON struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(body, &errorJSON) == nil && errorJSON.Error != "" {
				errorBody = errorJSON.Error
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
		return fmt.Errorf("failed to make streaming request: %w", err)
	}

	if resp == nil {
		return fmt.Errorf("failed to make streaming request: no response received")
	}

	reader := bufio.NewReader(resp.Body)

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

		var chunk ollamaResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}

		if chunk.Error != "" {
			return fmt.Errorf("Ollama API error: %s", chunk.Error)
		}

		if chunk.Message.Thinking != "" {
			outputCh <- StreamChunk{Kind: ChunkThinking, Text: chunk.Message.Thinking}
		}

		if chunk.Message.Content != "" {
			outputCh <- StreamChunk{Kind: ChunkText, Text: chunk.Message.Content}
		}

		if chunk.Done {
			usage := TokenUsage{
				PromptTokens:     chunk.PromptEvalCount,
				CompletionTokens: chunk.EvalCount,
				TotalTokens:      chunk.PromptEvalCount + chunk.EvalCount,
			}
			outputCh <- StreamChunk{Kind: ChunkDone, Usage: &usage}
			return nil
		}
	}

	// Stream ended without a done chunk.
	outputCh <- StreamChunk{Kind: ChunkDone, Usage: &TokenUsage{}}

	return nil
}

var _ Provider = (*OllamaProvider)(nil)
