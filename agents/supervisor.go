package agents

import (
	"context"

	"github.com/fintel-ai/fintel/core/extract"
	"github.com/fintel-ai/fintel/core/state"
	"github.com/fintel-ai/fintel/internal/utils"
	"github.com/fintel-ai/fintel/providers/observability"
)

// Supervisor synthesizes the three analyst reports into the structured final
// recommendation. It always produces one: generation failure yields the
// neutral hold recommendation instead of an empty field.
type Supervisor struct {
	generator Generator
	logger    observability.Logger
}

// NewSupervisor creates the synthesis node.
func NewSupervisor(generator Generator, logger observability.Logger) *Supervisor {
	return &Supervisor{
		generator: generator,
		logger:    ensureLogger(logger),
	}
}

func (a *Supervisor) ID() string { return SupervisorID }

func (a *Supervisor) Reads() []state.Field {
	return []state.Field{
		state.FieldFinancialAnalysis,
		state.FieldMarketAnalysis,
		state.FieldValuationAnalysis,
	}
}

func (a *Supervisor) Owns() []state.Field {
	return []state.Field{state.FieldFinalRecommendation}
}

func (a *Supervisor) Run(ctx context.Context, snapshot state.Snapshot) (state.Update, error) {
	prompt := render(prompts.Supervisor.User, map[string]string{
		"ticker":    snapshot.Ticker,
		"query":     snapshot.Query,
		"financial": utils.TruncateString(snapshot.FinancialAnalysis, utils.DefaultMaxStringLength),
		"market":    utils.TruncateString(snapshot.MarketAnalysis, utils.DefaultMaxStringLength),
		"valuation": utils.TruncateString(snapshot.ValuationAnalysis, utils.DefaultMaxStringLength),
	})

	var recommendation *state.Recommendation
	raw, err := a.generator.GenerateWithSystem(ctx, prompts.Supervisor.System, prompt)
	if err != nil {
		a.logger.Warn(ctx, "final recommendation degraded",
			observability.String("ticker", snapshot.Ticker),
			observability.Error(err),
		)
		recommendation = state.NeutralRecommendation(degraded("综合建议生成", snapshot.Ticker, err))
		raw = recommendation.Reasoning
	} else {
		recommendation = extract.Recommendation(raw)
	}

	return state.Update{
		FinalRecommendation: recommendation,
		Messages:            []state.Message{message(SupervisorID, raw)},
	}, nil
}
