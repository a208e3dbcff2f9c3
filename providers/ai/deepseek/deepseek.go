// Package deepseek implements the ai.Provider contract against the DeepSeek
// chat-completions API. DeepSeek exposes an OpenAI-compatible surface, so the
// transport is github.com/sashabaranov/go-openai with an overridden base URL.
package deepseek

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fintel-ai/fintel/providers/ai"
)

const (
	// DefaultBaseURL is the public DeepSeek OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.deepseek.com/v1"

	// DefaultModel is the general chat model.
	DefaultModel = "deepseek-chat"
)

// Provider is a DeepSeek-backed ai.Provider.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ ai.Provider = (*Provider)(nil)

// New creates a DeepSeek provider with the default endpoint and model.
// Configure it with the With* methods.
func New() *Provider {
	return &Provider{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
	}
}

// WithAPIKey sets the API key used for authenticating requests.
func (p *Provider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the default base URL for API requests.
func (p *Provider) WithBaseURL(baseURL string) ai.Provider {
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

// WithHttpClient sets the HTTP client used for outbound requests.
func (p *Provider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.httpClient = httpClient
	return p
}

// WithModel sets the default model used when the request does not name one.
func (p *Provider) WithModel(model string) *Provider {
	if model != "" {
		p.model = model
	}
	return p
}

// SendMessage performs one chat-completion round trip.
func (p *Provider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, errors.New("deepseek: missing API key")
	}

	config := openai.DefaultConfig(p.apiKey)
	config.BaseURL = p.baseURL
	if p.httpClient != nil {
		config.HTTPClient = p.httpClient
	}
	client := openai.NewClientWithConfig(config)

	model := request.Model
	if model == "" {
		model = p.model
	}

	completionRequest := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  toOpenAIMessages(request.Messages),
		MaxTokens: request.MaxTokens,
	}
	if request.Temperature != nil {
		completionRequest.Temperature = float32(*request.Temperature)
	}

	response, err := client.CreateChatCompletion(ctx, completionRequest)
	if err != nil {
		return nil, fmt.Errorf("deepseek: chat completion: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, errors.New("deepseek: response contains no choices")
	}

	choice := response.Choices[0]
	return &ai.ChatResponse{
		Content:      choice.Message.Content,
		Model:        response.Model,
		FinishReason: string(choice.FinishReason),
	}, nil
}

func toOpenAIMessages(messages []ai.Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, message := range messages {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    toOpenAIRole(message.Role),
			Content: message.Content,
		})
	}
	return converted
}

func toOpenAIRole(role ai.MessageRole) string {
	switch role {
	case ai.RoleSystem:
		return openai.ChatMessageRoleSystem
	case ai.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
