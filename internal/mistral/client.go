package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxforge/speech-gateway/internal/config"
	"github.com/voxforge/speech-gateway/internal/resilience"
)

// ErrNotConfigured is returned by NewClient when no API key is set.
// Callers keep a nil client in that case and report the dependency as
// unavailable instead of failing at startup.
var ErrNotConfigured = errors.New("mistral API key not configured")

// Client is the process-wide handle to the Mistral chat API. It is
// constructed once at startup and injected into every consumer.
type Client struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
	breaker      *resilience.CircuitBreaker
}

// NewClient creates a Mistral API client from configuration
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.MistralAPIKey == "" {
		return nil, ErrNotConfigured
	}

	return &Client{
		apiKey:       cfg.MistralAPIKey,
		baseURL:      cfg.MistralBaseURL,
		defaultModel: cfg.MistralModel,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.MistralTimeout) * time.Second,
		},
		breaker: resilience.NewCircuitBreaker(
			"mistral",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
	}, nil
}

// DefaultModel returns the model used when a request names none
func (c *Client) DefaultModel() string {
	return c.defaultModel
}

// ChatComplete issues one chat completion call and returns the first
// choice with its token usage.
func (c *Client) ChatComplete(ctx context.Context, req ChatRequest) (*ChatCompletion, error) {
	if req.Model == "" {
		req.Model = c.defaultModel
	}

	payload := apiChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var completion *ChatCompletion
	err := c.breaker.Call(func() error {
		body, err := c.post(ctx, "/v1/chat/completions", payload)
		if err != nil {
			return err
		}

		var resp apiChatResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode chat response: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("chat response contains no choices")
		}

		completion = &ChatCompletion{
			Model:   resp.Model,
			Content: resp.Choices[0].Message.Content,
			Usage:   resp.Usage,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completion, nil
}

// ListModels returns the models available from the provider
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var models []Model
	err := c.breaker.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
		if err != nil {
			return fmt.Errorf("create models request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("list models: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read models response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return statusError(resp.StatusCode, body)
		}

		var parsed apiModelsResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("decode models response: %w", err)
		}
		models = parsed.Data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models, nil
}

// post sends a JSON payload and returns the raw response body
func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call mistral API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}

	return body, nil
}

// statusError builds the error for a non-200 response. 4xx statuses
// other than 429 are the caller's fault (bad model name, malformed
// request) and must not count against the circuit breaker.
func statusError(code int, body []byte) error {
	err := fmt.Errorf("mistral API returned status %d: %s", code, truncate(body, 200))
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return resilience.CallerFault(err)
	}
	return err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
