package llm

import (
	"context"

	"github.com/fintel-ai/fintel/providers/ai"
)

// SendFunc is a function that sends a chat request to the LLM provider and
// returns the completed response. It is the base unit threaded through the
// middleware chain.
type SendFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error)

// Middleware intercepts and optionally transforms LLM send requests and
// responses. Each Middleware receives the next SendFunc in the chain and
// returns a new SendFunc that wraps it. Middlewares are applied
// outermost-first: the first middleware in the slice is the outermost wrapper.
type Middleware func(next SendFunc) SendFunc

// buildChain constructs the linear middleware chain. The base function calls
// the provider directly; middlewares are applied in reverse order so that
// middlewares[0] is the first to execute on an incoming request.
func buildChain(provider ai.Provider, middlewares []Middleware) SendFunc {
	var chain SendFunc = func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
		return provider.SendMessage(ctx, request)
	}

	for i := len(middlewares) - 1; i >= 0; i-- {
		chain = middlewares[i](chain)
	}

	return chain
}
