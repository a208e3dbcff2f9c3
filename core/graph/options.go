package graph

import "github.com/fintel-ai/fintel/providers/observability"

// Option is a functional option applied at Builder construction.
type Option func(*config)

// DefaultMaxIterations is the step budget applied when WithMaxIterations is
// not used.
const DefaultMaxIterations = 10

// WithMaxConcurrency limits the number of nodes that can execute in parallel
// within the same topological level. A value of 0 (default) means unlimited:
// all ready nodes at a level run simultaneously.
func WithMaxConcurrency(maxConcurrency int) Option {
	return func(cfg *config) {
		cfg.maxConcurrency = maxConcurrency
	}
}

// WithMaxIterations sets the total node-execution budget for one request.
// Exceeding the budget fails the request with an IterationLimitError.
func WithMaxIterations(maxIterations int) Option {
	return func(cfg *config) {
		if maxIterations > 0 {
			cfg.maxIterations = maxIterations
		}
	}
}

// WithLogger sets the structured logger used during execution.
func WithLogger(logger observability.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}
