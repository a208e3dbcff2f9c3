package agents

import (
	"context"
	"errors"

	"github.com/fintel-ai/fintel/core/state"
	"github.com/fintel-ai/fintel/internal/utils"
	"github.com/fintel-ai/fintel/providers/marketdata"
	"github.com/fintel-ai/fintel/providers/observability"
)

// MarketAnalyst studies price action. It fetches the live quote with
// technical indicators and generates a technical analysis from it.
type MarketAnalyst struct {
	generator Generator
	fetcher   marketdata.Fetcher
	logger    observability.Logger
}

// NewMarketAnalyst creates the technical-analysis node.
func NewMarketAnalyst(generator Generator, fetcher marketdata.Fetcher, logger observability.Logger) *MarketAnalyst {
	return &MarketAnalyst{
		generator: generator,
		fetcher:   fetcher,
		logger:    ensureLogger(logger),
	}
}

func (a *MarketAnalyst) ID() string { return MarketAnalystID }

func (a *MarketAnalyst) Reads() []state.Field { return nil }

func (a *MarketAnalyst) Owns() []state.Field {
	return []state.Field{state.FieldMarketAnalysis, state.FieldMarketData}
}

func (a *MarketAnalyst) Run(ctx context.Context, snapshot state.Snapshot) (state.Update, error) {
	quote := a.fetcher.Fetch(ctx, snapshot.Ticker)
	if !marketdata.Succeeded(quote) {
		a.logger.Warn(ctx, "market data fetch failed",
			observability.String("ticker", snapshot.Ticker),
			observability.String("cause", errorText(quote)),
		)
		analysis := degraded("市场分析", snapshot.Ticker, errors.New(errorText(quote)))
		return state.Update{
			MarketAnalysis: stringPtr(analysis),
			MarketData:     map[string]any{},
			Messages:       []state.Message{message(MarketAnalystID, analysis)},
		}, nil
	}

	prompt := render(prompts.Market.User, map[string]string{
		"ticker": snapshot.Ticker,
		"query":  snapshot.Query,
		"data":   utils.TruncateString(utils.JSONToString(quote), utils.DefaultMaxStringLength),
	})

	analysis, err := a.generator.GenerateWithSystem(ctx, prompts.Market.System, prompt)
	if err != nil {
		a.logger.Warn(ctx, "market analysis degraded",
			observability.String("ticker", snapshot.Ticker),
			observability.Error(err),
		)
		analysis = degraded("市场分析", snapshot.Ticker, err)
	}

	return state.Update{
		MarketAnalysis: stringPtr(analysis),
		MarketData:     quote,
		Messages:       []state.Message{message(MarketAnalystID, analysis)},
	}, nil
}

func errorText(result map[string]any) string {
	if text, ok := result["error"].(string); ok {
		return text
	}
	return "unknown error"
}
