// Package llmclient is a minimal OpenAI-compatible chat client with
// exponential-backoff retry and a non-queueing token-bucket rate limiter,
// used by the orchestrator agent to turn workflow events into instructions.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config validates and constructs a Client.
type Config struct {
	APIKey                     string
	BaseURL                    string
	Model                      string
	MaxRetries                 int           // default 3
	TimeoutSecs                int           // default 120
	RateLimitRequestsPerSecond float64       // default 10, must be >= 1
	HTTPClient                 *http.Client  // optional override, mainly for tests
	BaseDelay                  time.Duration // default 1s, exposed for test speedups
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token accounting from the upstream provider, when present.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the client's result from a successful Chat call.
type Response struct {
	Content string
	Usage   *Usage
}

// ErrRateLimited is returned immediately (no queueing) when the token bucket
// is empty.
var ErrRateLimited = fmt.Errorf("llmclient: rate limit exceeded")

// Client wraps an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	timeout    time.Duration
	baseDelay  time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New validates cfg and returns a ready Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmclient: api_key is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llmclient: base_url is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llmclient: model is required")
	}
	rps := cfg.RateLimitRequestsPerSecond
	if rps == 0 {
		rps = 10
	}
	if rps < 1 {
		return nil, fmt.Errorf("llmclient: rate_limit_requests_per_second must be >= 1")
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	timeoutSecs := cfg.TimeoutSecs
	if timeoutSecs == 0 {
		timeoutSecs = 120
	}
	baseDelay := cfg.BaseDelay
	if baseDelay == 0 {
		baseDelay = time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(timeoutSecs) * time.Second}
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		maxRetries: maxRetries,
		timeout:    time.Duration(timeoutSecs) * time.Second,
		baseDelay:  baseDelay,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)),
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponseChoice struct {
	Message Message `json:"message"`
}

type chatResponse struct {
	Choices []chatResponseChoice `json:"choices"`
	Usage   *Usage               `json:"usage"`
}

// Chat sends messages to the configured endpoint and returns the first
// choice's content. It retries transient failures with exponential backoff
// (base delay × attempt) up to maxRetries, and returns ErrRateLimited
// immediately, without retrying, when the bucket is empty.
func (c *Client) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if !c.limiter.Allow() {
		return nil, ErrRateLimited
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.doRequest(ctx, messages)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.baseDelay * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("llmclient: chat request failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) doRequest(ctx context.Context, messages []Message) (*Response, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   4096,
	})
	if err != nil {
		return nil, fmt.Errorf("llmclient: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llmclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llmclient: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llmclient: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llmclient: upstream returned status %d: %s", resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("llmclient: unmarshal response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("llmclient: response had no choices")
	}

	return &Response{Content: parsed.Choices[0].Message.Content, Usage: parsed.Usage}, nil
}
