package llm

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fintel-ai/fintel/providers/ai"
)

// mockProvider scripts a sequence of failures followed by a success.
type mockProvider struct {
	failures  int32
	failError error
	response  *ai.ChatResponse
	calls     atomic.Int32
	lastReq   ai.ChatRequest
	delay     time.Duration
}

var _ ai.Provider = (*mockProvider)(nil)

func (p *mockProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	call := p.calls.Add(1)
	p.lastReq = request

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if call <= p.failures {
		return nil, p.failError
	}
	if p.response == nil {
		return &ai.ChatResponse{Content: "ok"}, nil
	}
	return p.response, nil
}

func (p *mockProvider) WithAPIKey(string) ai.Provider           { return p }
func (p *mockProvider) WithBaseURL(string) ai.Provider          { return p }
func (p *mockProvider) WithHttpClient(*http.Client) ai.Provider { return p }

func TestGenerateSucceedsAfterTransientFailures(t *testing.T) {
	provider := &mockProvider{
		failures:  2,
		failError: errors.New("provider returned status 503"),
		response:  &ai.ChatResponse{Content: "generated analysis"},
	}

	// Build the client by hand to shrink the retry backoff for the test.
	client := &Client{
		provider: provider,
		send: buildChain(provider, []Middleware{
			NewRetryMiddleware(RetryConfig{
				MaxRetries:     3,
				InitialBackoff: time.Millisecond,
				MaxBackoff:     time.Millisecond,
			}),
			NewTimeoutMiddleware(time.Second),
		}),
		model:       "test-model",
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
	}

	content, err := client.Generate(context.Background(), "analyze AAPL")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if content != "generated analysis" {
		t.Errorf("content = %q", content)
	}
	if provider.calls.Load() != 3 {
		t.Errorf("provider calls = %d, want 3", provider.calls.Load())
	}
}

func TestGenerateExhaustsRetries(t *testing.T) {
	provider := &mockProvider{
		failures:  10,
		failError: errors.New("provider returned status 500"),
	}

	send := buildChain(provider, []Middleware{
		NewRetryMiddleware(RetryConfig{
			MaxRetries:     3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
		}),
	})

	_, err := send(context.Background(), ai.ChatRequest{})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	if provider.calls.Load() != 4 {
		t.Errorf("provider calls = %d, want 4 (initial + 3 retries)", provider.calls.Load())
	}
}

func TestRetrySkipsNonRetryableErrors(t *testing.T) {
	fatal := errors.New("provider returned status 401")
	provider := &mockProvider{failures: 10, failError: fatal}

	send := buildChain(provider, []Middleware{
		NewRetryMiddleware(RetryConfig{
			MaxRetries:     3,
			InitialBackoff: time.Millisecond,
		}),
	})

	_, err := send(context.Background(), ai.ChatRequest{})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected the provider error, got %v", err)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("non-retryable error should not report exhaustion")
	}
	if provider.calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls.Load())
	}
}

func TestTimeoutMiddlewareCancelsSlowAttempts(t *testing.T) {
	provider := &mockProvider{delay: 200 * time.Millisecond}

	send := buildChain(provider, []Middleware{
		NewTimeoutMiddleware(20 * time.Millisecond),
	})

	_, err := send(context.Background(), ai.ChatRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestGenerateWithSystemBuildsMessages(t *testing.T) {
	provider := &mockProvider{response: &ai.ChatResponse{Content: "ok"}}
	client := NewClient(provider, WithModel("test-model"))

	if _, err := client.GenerateWithSystem(context.Background(), "you are an analyst", "analyze AAPL"); err != nil {
		t.Fatalf("GenerateWithSystem: %v", err)
	}

	messages := provider.lastReq.Messages
	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(messages))
	}
	if messages[0].Role != ai.RoleSystem || messages[1].Role != ai.RoleUser {
		t.Errorf("roles = %v, %v", messages[0].Role, messages[1].Role)
	}
	if provider.lastReq.Model != "test-model" {
		t.Errorf("model = %q", provider.lastReq.Model)
	}
	if provider.lastReq.Temperature == nil || *provider.lastReq.Temperature != DefaultTemperature {
		t.Errorf("temperature = %v", provider.lastReq.Temperature)
	}
}

func TestGenerateOmitsEmptySystemPrompt(t *testing.T) {
	provider := &mockProvider{}
	client := NewClient(provider, WithModel("test-model"))

	if _, err := client.Generate(context.Background(), "analyze AAPL"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(provider.lastReq.Messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(provider.lastReq.Messages))
	}
	if provider.lastReq.Messages[0].Role != ai.RoleUser {
		t.Errorf("role = %v, want user", provider.lastReq.Messages[0].Role)
	}
}
