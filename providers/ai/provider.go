// Package ai defines the contract between the pipeline and text-generation
// backends. A Provider covers a single chat-completion round trip; retry,
// timeout and logging concerns live in core/llm middleware, not here.
package ai

import (
	"context"
	"net/http"
)

// Provider is the interface every LLM backend must satisfy.
type Provider interface {
	// SendMessage sends a chat request to the provider and returns the
	// completed response. Returns an error if the provider call fails,
	// the context is cancelled, or the response cannot be decoded.
	SendMessage(ctx context.Context, request ChatRequest) (*ChatResponse, error)

	// WithAPIKey sets the API key used for authenticating requests.
	WithAPIKey(apiKey string) Provider

	// WithBaseURL overrides the default base URL for API requests.
	WithBaseURL(baseURL string) Provider

	// WithHttpClient sets the HTTP client used for outbound requests.
	WithHttpClient(httpClient *http.Client) Provider
}
