package agents

import (
	"context"
	"errors"

	"github.com/fintel-ai/fintel/core/state"
	"github.com/fintel-ai/fintel/internal/utils"
	"github.com/fintel-ai/fintel/providers/observability"
	"github.com/fintel-ai/fintel/providers/valuation"
)

// ValuationAnalyst judges intrinsic value. It runs the valuation models and
// generates an interpretation of their output.
type ValuationAnalyst struct {
	generator  Generator
	calculator valuation.Calculator
	logger     observability.Logger
}

// NewValuationAnalyst creates the valuation node.
func NewValuationAnalyst(generator Generator, calculator valuation.Calculator, logger observability.Logger) *ValuationAnalyst {
	return &ValuationAnalyst{
		generator:  generator,
		calculator: calculator,
		logger:     ensureLogger(logger),
	}
}

func (a *ValuationAnalyst) ID() string { return ValuationAnalystID }

func (a *ValuationAnalyst) Reads() []state.Field { return nil }

func (a *ValuationAnalyst) Owns() []state.Field {
	return []state.Field{state.FieldValuationAnalysis, state.FieldValuationData}
}

func (a *ValuationAnalyst) Run(ctx context.Context, snapshot state.Snapshot) (state.Update, error) {
	models := a.calculator.Valuate(ctx, snapshot.Ticker)
	if success, ok := models["success"].(bool); !ok || !success {
		a.logger.Warn(ctx, "valuation models failed",
			observability.String("ticker", snapshot.Ticker),
			observability.String("cause", errorText(models)),
		)
		analysis := degraded("估值分析", snapshot.Ticker, errors.New(errorText(models)))
		return state.Update{
			ValuationAnalysis: stringPtr(analysis),
			ValuationData:     map[string]any{},
			Messages:          []state.Message{message(ValuationAnalystID, analysis)},
		}, nil
	}

	prompt := render(prompts.Valuation.User, map[string]string{
		"ticker": snapshot.Ticker,
		"query":  snapshot.Query,
		"data":   utils.TruncateString(utils.JSONToString(models), utils.DefaultMaxStringLength),
	})

	analysis, err := a.generator.GenerateWithSystem(ctx, prompts.Valuation.System, prompt)
	if err != nil {
		a.logger.Warn(ctx, "valuation analysis degraded",
			observability.String("ticker", snapshot.Ticker),
			observability.Error(err),
		)
		analysis = degraded("估值分析", snapshot.Ticker, err)
	}

	return state.Update{
		ValuationAnalysis: stringPtr(analysis),
		ValuationData:     models,
		Messages:          []state.Message{message(ValuationAnalystID, analysis)},
	}, nil
}
