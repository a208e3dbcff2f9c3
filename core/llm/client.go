// Package llm is the text-generation collaborator used by analysis nodes:
// a provider-backed client whose calls pass through a middleware chain for
// per-attempt timeouts and bounded retries. A node makes exactly one
// Generate call per run; the client holds no conversation state, so one
// client can be shared by all nodes of all concurrent requests.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/fintel-ai/fintel/providers/ai"
)

// Default generation parameters, matching the DeepSeek configuration the
// product ships with.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4000
	DefaultTimeout     = 60 * time.Second
	DefaultMaxRetries  = 3
)

// Client sends single-prompt generation requests through a middleware chain.
type Client struct {
	provider    ai.Provider
	send        SendFunc
	model       string
	temperature float64
	maxTokens   int
}

// ClientOption customizes a Client at construction.
type ClientOption func(*clientConfig)

type clientConfig struct {
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	maxRetries  int
	retryable   func(error) bool
	extra       []Middleware
}

// WithModel sets the model name sent with every request.
func WithModel(model string) ClientOption {
	return func(cfg *clientConfig) { cfg.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) ClientOption {
	return func(cfg *clientConfig) { cfg.temperature = temperature }
}

// WithMaxTokens bounds the generated completion length.
func WithMaxTokens(maxTokens int) ClientOption {
	return func(cfg *clientConfig) { cfg.maxTokens = maxTokens }
}

// WithTimeout sets the per-attempt deadline for provider calls.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithMaxRetries sets the number of retries after the first failed attempt.
func WithMaxRetries(maxRetries int) ClientOption {
	return func(cfg *clientConfig) {
		if maxRetries > 0 {
			cfg.maxRetries = maxRetries
		}
	}
}

// WithRetryable overrides the predicate deciding which errors are retried.
func WithRetryable(retryable func(error) bool) ClientOption {
	return func(cfg *clientConfig) { cfg.retryable = retryable }
}

// WithMiddlewares appends middlewares outside the built-in retry/timeout
// pair (they execute before retry).
func WithMiddlewares(middlewares ...Middleware) ClientOption {
	return func(cfg *clientConfig) { cfg.extra = append(cfg.extra, middlewares...) }
}

// NewClient creates a generation client over the given provider. The default
// chain is retry (3 attempts after the first, exponential backoff) wrapping
// a 60s per-attempt timeout.
func NewClient(provider ai.Provider, opts ...ClientOption) *Client {
	cfg := &clientConfig{
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		timeout:     DefaultTimeout,
		maxRetries:  DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	middlewares := append([]Middleware{}, cfg.extra...)
	middlewares = append(middlewares,
		NewRetryMiddleware(RetryConfig{MaxRetries: cfg.maxRetries, RetryableFunc: cfg.retryable}),
		NewTimeoutMiddleware(cfg.timeout),
	)

	return &Client{
		provider:    provider,
		send:        buildChain(provider, middlewares),
		model:       cfg.model,
		temperature: cfg.temperature,
		maxTokens:   cfg.maxTokens,
	}
}

// Generate sends a single user prompt and returns the generated text.
// Transient provider failures are retried inside the chain; the returned
// error wraps [ErrRetryExhausted] once the retry budget is spent.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.GenerateWithSystem(ctx, "", prompt)
}

// GenerateWithSystem is Generate with an optional system prompt prepended.
func (c *Client) GenerateWithSystem(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if c.provider == nil {
		return "", errors.New("llm: client has no provider")
	}

	messages := make([]ai.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: prompt})

	temperature := c.temperature
	response, err := c.send(ctx, ai.ChatRequest{
		Messages:    messages,
		Model:       c.model,
		Temperature: &temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}

	return response.Content, nil
}
