// Package httpclient provides the retrying HTTP client underneath the
// reasoning provider adapters. Retries are driven by response status and
// vendor rate-limit headers so long deliberations survive transient 429/5xx
// responses without hand-rolled backoff in every adapter.
package httpclient

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/cogito-ai/cogito/pkg/logger"
)

type RetryStrategy int

const (
	// NoRetry fails immediately.
	NoRetry RetryStrategy = iota
	// ConservativeRetry retries twice with short fixed delays.
	ConservativeRetry
	// SmartRetry honors Retry-After / reset headers, falling back to
	// exponential backoff with jitter. Used for rate limits.
	SmartRetry
)

// RateLimitInfo is what a vendor's rate-limit headers told us.
type RateLimitInfo struct {
	RetryAfter        time.Duration
	ResetTime         int64
	RequestsRemaining int
	TokensRemaining   int
}

type RateLimitHeaderParser func(http.Header) RateLimitInfo

type RetryStrategyFunc func(statusCode int) RetryStrategy

type Client struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	headerParser RateLimitHeaderParser
	strategyFunc RetryStrategyFunc
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithMaxRetries(max int) Option {
	return func(c *Client) {
		c.maxRetries = max
	}
}

func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = delay
	}
}

func WithHeaderParser(parser RateLimitHeaderParser) Option {
	return func(c *Client) {
		c.headerParser = parser
	}
}

func WithRetryStrategy(strategyFunc RetryStrategyFunc) Option {
	return func(c *Client) {
		c.strategyFunc = strategyFunc
	}
}

func New(opts ...Option) *Client {
	client := &Client{
		client:       &http.Client{Timeout: 120 * time.Second},
		maxRetries:   5,
		baseDelay:    2 * time.Second,
		strategyFunc: DefaultRetryStrategy,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// DefaultRetryStrategy maps a status code to a retry strategy.
func DefaultRetryStrategy(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// Do executes the request, retrying per the configured strategy. Requests
// with a body must carry GetBody so the body can be recreated on retry.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to recreate request body for retry: %w", err)
			}
			req.Body = body
		}

		resp, strategy, limitInfo, err := c.attempt(req)

		if strategy == NoRetry || err == nil {
			return resp, err
		}

		delay := c.retryDelay(strategy, attempt, limitInfo)

		if attempt >= c.maxRetries || delay <= 0 {
			statusCode := 0
			if resp != nil {
				statusCode = resp.StatusCode
			}
			return resp, &RetryableError{
				StatusCode: statusCode,
				Message:    fmt.Sprintf("retries exhausted after %d attempts", attempt+1),
				RetryAfter: delay,
				Err:        err,
			}
		}

		c.logRetry(strategy, delay, attempt, resp)
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
	}

	return nil, &RetryableError{
		Message: fmt.Sprintf("max retries (%d) exceeded", c.maxRetries),
		Err:     fmt.Errorf("max retries exceeded"),
	}
}

func (c *Client) attempt(req *http.Request) (*http.Response, RetryStrategy, RateLimitInfo, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NoRetry, RateLimitInfo{}, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, NoRetry, RateLimitInfo{}, nil
	}

	var limitInfo RateLimitInfo
	if c.headerParser != nil {
		limitInfo = c.headerParser(resp.Header)
	}

	return resp, c.strategyFunc(resp.StatusCode), limitInfo, fmt.Errorf("HTTP %d", resp.StatusCode)
}

func (c *Client) retryDelay(strategy RetryStrategy, attempt int, limitInfo RateLimitInfo) time.Duration {
	switch strategy {
	case SmartRetry:
		if limitInfo.RetryAfter > 0 {
			return limitInfo.RetryAfter
		}
		if limitInfo.ResetTime > 0 {
			if delay := time.Until(time.Unix(limitInfo.ResetTime, 0)); delay > 0 {
				return delay
			}
		}
		exponential := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
		jitter := time.Duration(float64(exponential) * 0.1)
		return exponential + jitter

	case ConservativeRetry:
		if attempt >= 2 {
			return 0
		}
		return time.Duration(2+attempt) * time.Second

	default:
		return 0
	}
}

func (c *Client) logRetry(strategy RetryStrategy, delay time.Duration, attempt int, resp *http.Response) {
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	log := logger.For("httpclient")
	switch strategy {
	case SmartRetry:
		log.Warn("rate limited, retrying",
			"status", statusCode, "delay", delay, "attempt", attempt+1, "max", c.maxRetries)
	case ConservativeRetry:
		log.Debug("server error, quick retry",
			"status", statusCode, "delay", delay, "attempt", attempt+1)
	}
}
