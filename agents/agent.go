// Package agents implements the analysis nodes that run inside the execution
// graph: three analysts (financial, market, valuation) and the supervisor
// that synthesizes their output into a final recommendation.
//
// Every node follows the containment rule: collaborator failures (generation,
// retrieval, data fetch) degrade that node's own fields and never surface as
// a Run error. A node that cannot produce real analysis still writes a
// deterministic placeholder naming the ticker and the failed step, so the
// pipeline always completes with a full aggregate.
package agents

import (
	"context"
	"fmt"

	"github.com/fintel-ai/fintel/core/state"
	"github.com/fintel-ai/fintel/providers/observability"
)

// Node IDs within the standard topology.
const (
	FinancialAnalystID = "financial_analyst"
	MarketAnalystID    = "market_analyst"
	ValuationAnalystID = "valuation_analyst"
	SupervisorID       = "supervisor"
)

// Generator is the text-generation collaborator contract nodes depend on.
// *llm.Client satisfies it.
type Generator interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// degraded builds the placeholder analysis written when a step fails.
func degraded(step, ticker string, cause error) string {
	return fmt.Sprintf("%s暂时不可用 [%s]: %v", step, ticker, cause)
}

func message(agent, content string) state.Message {
	return state.Message{Agent: agent, Content: content}
}

func stringPtr(value string) *string {
	return &value
}

func ensureLogger(logger observability.Logger) observability.Logger {
	if logger == nil {
		return observability.NoopLogger{}
	}
	return logger
}
