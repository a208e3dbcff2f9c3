// Package workflow assembles the standard analysis topology and drives one
// request through it: three analysts fanning in to a supervisor, executed
// level-parallel over a shared aggregate.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fintel-ai/fintel/agents"
	"github.com/fintel-ai/fintel/core/graph"
	"github.com/fintel-ai/fintel/core/state"
	"github.com/fintel-ai/fintel/providers/marketdata"
	"github.com/fintel-ai/fintel/providers/observability"
	"github.com/fintel-ai/fintel/providers/retrieval"
	"github.com/fintel-ai/fintel/providers/valuation"
)

// Dependencies are the collaborators the pipeline wires into its nodes.
// Generator and Fetcher/Calculator are required; Retriever may be nil.
type Dependencies struct {
	Generator  agents.Generator
	Retriever  retrieval.Retriever
	Fetcher    marketdata.Fetcher
	Calculator valuation.Calculator
	Logger     observability.Logger
}

// Option customizes pipeline construction.
type Option func(*settings)

type settings struct {
	sequentialAnalysts bool
	maxConcurrency     int
	maxIterations      int
	topK               int
}

// WithSequentialAnalysts chains the analysts (financial, then market, then
// valuation) instead of running them in parallel. The default topology fans
// the three out concurrently; this option reproduces strictly ordered runs
// for comparison and debugging.
func WithSequentialAnalysts() Option {
	return func(s *settings) { s.sequentialAnalysts = true }
}

// WithMaxConcurrency bounds nodes running in parallel within one level.
func WithMaxConcurrency(maxConcurrency int) Option {
	return func(s *settings) { s.maxConcurrency = maxConcurrency }
}

// WithMaxIterations bounds total node executions per request.
func WithMaxIterations(maxIterations int) Option {
	return func(s *settings) { s.maxIterations = maxIterations }
}

// WithTopK sets the number of report chunks the financial analyst retrieves.
func WithTopK(topK int) Option {
	return func(s *settings) { s.topK = topK }
}

// Pipeline is the ready-to-run analysis workflow. It is immutable after New
// and safe for concurrent requests: each Run works on its own aggregate.
type Pipeline struct {
	graph    *graph.Graph
	analysts map[string]graph.Node
	logger   observability.Logger
}

// New builds the standard topology and validates it. Construction fails with
// a *graph.ConfigurationError if the wiring is invalid.
func New(deps Dependencies, opts ...Option) (*Pipeline, error) {
	cfg := &settings{maxIterations: graph.DefaultMaxIterations}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := deps.Logger
	if logger == nil {
		logger = observability.NoopLogger{}
	}

	financial := agents.NewFinancialAnalyst(deps.Generator, deps.Retriever, logger)
	if cfg.topK > 0 {
		financial.WithTopK(cfg.topK)
	}
	market := agents.NewMarketAnalyst(deps.Generator, deps.Fetcher, logger)
	valuationAnalyst := agents.NewValuationAnalyst(deps.Generator, deps.Calculator, logger)
	supervisor := agents.NewSupervisor(deps.Generator, logger)

	builder := graph.NewBuilder(
		graph.WithMaxConcurrency(cfg.maxConcurrency),
		graph.WithMaxIterations(cfg.maxIterations),
		graph.WithLogger(logger),
	).
		AddNode(financial).
		AddNode(market).
		AddNode(valuationAnalyst).
		AddNode(supervisor).
		AddEdge(agents.FinancialAnalystID, agents.SupervisorID).
		AddEdge(agents.MarketAnalystID, agents.SupervisorID).
		AddEdge(agents.ValuationAnalystID, agents.SupervisorID)

	if cfg.sequentialAnalysts {
		builder.
			AddEdge(agents.FinancialAnalystID, agents.MarketAnalystID).
			AddEdge(agents.MarketAnalystID, agents.ValuationAnalystID)
	}

	g, err := builder.Build()
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		graph: g,
		analysts: map[string]graph.Node{
			agents.FinancialAnalystID: financial,
			agents.MarketAnalystID:    market,
			agents.ValuationAnalystID: valuationAnalyst,
		},
		logger: logger,
	}, nil
}

// Response is the assembled result of one analysis request.
type Response struct {
	RequestID string `json:"request_id"`
	Ticker    string `json:"ticker"`
	Query     string `json:"query"`

	FinancialAnalysis string         `json:"financial_analysis"`
	MarketAnalysis    string         `json:"market_analysis"`
	ValuationAnalysis string         `json:"valuation_analysis"`
	MarketData        map[string]any `json:"market_data,omitempty"`
	ValuationData     map[string]any `json:"valuation_data,omitempty"`
	RAGContext        string         `json:"rag_context,omitempty"`

	FinalRecommendation *state.Recommendation `json:"final_recommendation,omitempty"`

	Messages      []state.Message `json:"messages,omitempty"`
	ExecutionTime float64         `json:"execution_time"`
}

// Run drives one full analysis. On cancellation the returned error is the
// context error and the response carries whatever the pipeline completed
// before the cancel was observed.
func (p *Pipeline) Run(ctx context.Context, ticker, query string) (*Response, error) {
	requestID := uuid.NewString()
	started := time.Now()

	p.logger.Info(ctx, "analysis started",
		observability.String("request_id", requestID),
		observability.String("ticker", ticker),
	)

	aggregate := state.NewAggregate(ticker, query)
	err := p.graph.Execute(ctx, aggregate)

	response := assemble(requestID, aggregate, time.Since(started))
	if err != nil {
		p.logger.Error(ctx, "analysis failed",
			observability.String("request_id", requestID),
			observability.String("ticker", ticker),
			observability.Error(err),
		)
		return response, err
	}

	p.logger.Info(ctx, "analysis completed",
		observability.String("request_id", requestID),
		observability.String("ticker", ticker),
		observability.Duration("elapsed", time.Since(started)),
	)
	return response, nil
}

// RunAnalyst executes a single analyst in isolation over a fresh aggregate.
// Only the three analyst node IDs are valid; the supervisor needs the full
// pipeline.
func (p *Pipeline) RunAnalyst(ctx context.Context, analystID, ticker, query string) (*Response, error) {
	node, ok := p.analysts[analystID]
	if !ok {
		return nil, fmt.Errorf("workflow: unknown analyst %q", analystID)
	}

	requestID := uuid.NewString()
	started := time.Now()

	aggregate := state.NewAggregate(ticker, query)
	update, err := node.Run(ctx, aggregate.Snapshot(node.Reads()...))
	if err != nil {
		return nil, fmt.Errorf("workflow: analyst %q failed: %w", analystID, err)
	}
	if err := aggregate.Apply(update); err != nil {
		return nil, fmt.Errorf("workflow: merge analyst %q update: %w", analystID, err)
	}

	return assemble(requestID, aggregate, time.Since(started)), nil
}

func assemble(requestID string, aggregate *state.Aggregate, elapsed time.Duration) *Response {
	return &Response{
		RequestID:           requestID,
		Ticker:              aggregate.Ticker,
		Query:               aggregate.Query,
		FinancialAnalysis:   aggregate.FinancialAnalysis,
		MarketAnalysis:      aggregate.MarketAnalysis,
		ValuationAnalysis:   aggregate.ValuationAnalysis,
		MarketData:          aggregate.MarketData,
		ValuationData:       aggregate.ValuationData,
		RAGContext:          aggregate.RAGContext,
		FinalRecommendation: aggregate.FinalRecommendation,
		Messages:            aggregate.Messages,
		ExecutionTime:       elapsed.Seconds(),
	}
}
