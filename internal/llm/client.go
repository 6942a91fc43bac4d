package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"floatchat/internal/config"
	"floatchat/internal/types"
)

// generatePath is the completion endpoint relative to the configured base
// URL, matching the Ollama-style API the service is deployed against.
const generatePath = "/api/generate"

// Client is the HTTP Provider implementation. All calls go through a
// circuit breaker; a 5xx or timeout is retried once with backoff before the
// upstream is reported unavailable.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]

	baseURL   string
	model     string
	apiKey    types.SecretString
	maxTokens int

	retryBackoff time.Duration
	sleepFn      func(time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithSleepFunc overrides the sleep between retries. For tests.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(c *Client) { c.sleepFn = fn }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.LLMConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        "llm",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		baseURL:      cfg.BaseURL,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		maxTokens:    cfg.MaxTokens,
		retryBackoff: cfg.RetryBackoff,
		sleepFn:      time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Provider.
func (c *Client) Name() string { return "ollama" }

type generateRequest struct {
	Model   string          `json:"model"`
	System  string          `json:"system,omitempty"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// Generate implements Provider. It maps rate limiting and unavailability to
// the upstream error taxonomy; the answer text is returned verbatim.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		System:  req.SystemPrompt,
		Prompt:  req.UserPrompt,
		Stream:  false,
		Options: generateOptions{NumPredict: maxTokens},
	})
	if err != nil {
		return Response{}, types.NewAppError(types.ErrCodeInternalUnexpected, "encode completion request", err)
	}

	var lastResp *http.Response
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := c.doOnce(ctx, body)
		if err == nil {
			if lastResp != nil {
				lastResp.Body.Close()
			}
			defer resp.Body.Close()
			return decodeGenerate(resp)
		}
		lastErr = err
		if resp != nil {
			if lastResp != nil {
				lastResp.Body.Close()
			}
			lastResp = resp
		}
		// An open breaker, a cancelled context, or a rate limit is not
		// worth a local retry.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			break
		}
		if attempt == 0 {
			c.sleepFn(c.backoff(lastResp))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return Response{}, c.mapError(lastResp, lastErr)
}

// doOnce performs a single breaker-wrapped call. Non-2xx statuses come back
// as errors with the response attached for status inspection.
func (c *Client) doOnce(ctx context.Context, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key := c.apiKey.Unmask(); key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}
	if requestID := types.GetRequestID(ctx); requestID != "" {
		httpReq.Header.Set("X-Request-Id", requestID)
	}

	return c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return resp, fmt.Errorf("completion endpoint returned %d", resp.StatusCode)
		}
		return resp, nil
	})
}

func decodeGenerate(resp *http.Response) (Response, error) {
	var out generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return Response{}, types.NewAppError(types.ErrCodeUpstreamLLM, "decode completion response", err)
	}
	return Response{Content: out.Response, Model: out.Model}, nil
}

// backoff honors a Retry-After header when present, otherwise uses the
// configured backoff.
func (c *Client) backoff(resp *http.Response) time.Duration {
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return c.retryBackoff
}

func (c *Client) mapError(resp *http.Response, err error) error {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return types.NewAppError(types.ErrCodeUpstreamRateLimit,
			"completion service is rate limiting requests", err)
	}
	return types.NewAppError(types.ErrCodeUpstreamLLM,
		"completion service is unavailable", err)
}
