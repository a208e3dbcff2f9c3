package llm

import (
	"context"
	"time"

	"github.com/fintel-ai/fintel/providers/ai"
)

// NewTimeoutMiddleware creates a Middleware that enforces a per-attempt
// deadline on provider calls. The context is wrapped with
// context.WithTimeout and canceled once the provider returns or the
// deadline expires. If the caller's context already has a shorter deadline,
// that shorter deadline wins as per normal context semantics.
//
// Place this middleware inside the retry middleware so the deadline bounds
// each individual attempt rather than the whole retry loop.
func NewTimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next(ctx, request)
		}
	}
}
