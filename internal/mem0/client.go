// Package mem0 provides an HTTP client for a mem0-style memory service.
package mem0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL       = "https://api.mem0.ai"
	defaultTimeout       = 30 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = 500 * time.Millisecond

	memoriesPath = "/v1/memories/"
	searchPath   = "/v1/memories/search/"
)

// Message is a single conversational message sent to the service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config holds configuration for the memory service client.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// DefaultConfig returns a default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:       defaultBaseURL,
		Timeout:       defaultTimeout,
		MaxRetries:    defaultMaxRetries,
		RetryInterval: defaultRetryInterval,
	}
}

// Client talks to the memory service over HTTP. Responses are returned as
// decoded JSON values without a fixed schema; the service does not
// guarantee one.
type Client struct {
	config Config
	client *http.Client
}

// NewClient creates a new memory service client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = defaultRetryInterval
	}

	// Ensure URL doesn't have trailing slash
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type addRequest struct {
	Messages []Message `json:"messages"`
	UserID   string    `json:"user_id"`
}

type searchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

// Add stores the given messages as memories for a user.
func (c *Client) Add(ctx context.Context, messages []Message, userID string) (any, error) {
	if len(messages) == 0 {
		return nil, NewClientError("add", ErrEmptyInput)
	}

	body := addRequest{Messages: messages, UserID: userID}
	result, err := c.do(ctx, http.MethodPost, memoriesPath, body)
	if err != nil {
		return nil, NewClientError("add", err)
	}
	return result, nil
}

// GetAll retrieves every memory stored for a user.
func (c *Client) GetAll(ctx context.Context, userID string) (any, error) {
	path := memoriesPath + "?" + url.Values{"user_id": {userID}}.Encode()
	result, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, NewClientError("get_all", err)
	}
	return result, nil
}

// Search performs a semantic search over a user's memories.
func (c *Client) Search(ctx context.Context, query, userID string, limit int) (any, error) {
	if query == "" {
		return nil, NewClientError("search", ErrEmptyInput)
	}

	body := searchRequest{Query: query, UserID: userID, Limit: limit}
	result, err := c.do(ctx, http.MethodPost, searchPath, body)
	if err != nil {
		return nil, NewClientError("search", err)
	}
	return result, nil
}

// Ping checks that the service is reachable and the credentials work.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.GetAll(ctx, "healthcheck"); err != nil {
		return NewClientError("ping", err)
	}
	return nil
}

// do performs a request with retries and decodes the response.
func (c *Client) do(ctx context.Context, method, path string, body any) (any, error) {
	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ErrContextCanceled
			case <-time.After(c.config.RetryInterval * time.Duration(attempt)):
			}
		}

		result, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			return result, nil
		}

		lastErr = err
		// Don't retry on errors that cannot resolve themselves
		if err == ErrContextCanceled || err == ErrUnauthorized {
			return nil, err
		}
	}

	return nil, lastErr
}

// doOnce performs a single HTTP request.
func (c *Client) doOnce(ctx context.Context, method, path string, body any) (any, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Token "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrContextCanceled
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 400:
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message() != "" {
			return nil, fmt.Errorf("mem0 error: %s", errResp.Message())
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}

	// No fixed response schema: decode into a dynamic value and let the
	// normalizer discriminate shapes. Bodies that aren't JSON are passed
	// through as plain strings.
	var result any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return string(respBody), nil
	}
	return result, nil
}

// errorResponse covers the error body shapes the service is known to emit.
type errorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

func (e errorResponse) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error
}
