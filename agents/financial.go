package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/fintel-ai/fintel/core/state"
	"github.com/fintel-ai/fintel/internal/utils"
	"github.com/fintel-ai/fintel/providers/observability"
	"github.com/fintel-ai/fintel/providers/retrieval"
)

// DefaultTopK is the number of report chunks retrieved per analysis.
const DefaultTopK = 4

// FinancialAnalyst studies company fundamentals. It retrieves report chunks
// for the ticker, then generates an analysis grounded in that context.
type FinancialAnalyst struct {
	generator Generator
	retriever retrieval.Retriever
	topK      int
	logger    observability.Logger
}

// NewFinancialAnalyst creates the fundamentals node. The retriever may be nil
// when no report store is configured; analysis then proceeds without context.
func NewFinancialAnalyst(generator Generator, retriever retrieval.Retriever, logger observability.Logger) *FinancialAnalyst {
	return &FinancialAnalyst{
		generator: generator,
		retriever: retriever,
		topK:      DefaultTopK,
		logger:    ensureLogger(logger),
	}
}

// WithTopK overrides the number of retrieved chunks.
func (a *FinancialAnalyst) WithTopK(topK int) *FinancialAnalyst {
	if topK > 0 {
		a.topK = topK
	}
	return a
}

func (a *FinancialAnalyst) ID() string { return FinancialAnalystID }

func (a *FinancialAnalyst) Reads() []state.Field { return nil }

func (a *FinancialAnalyst) Owns() []state.Field {
	return []state.Field{state.FieldFinancialAnalysis, state.FieldRAGContext}
}

func (a *FinancialAnalyst) Run(ctx context.Context, snapshot state.Snapshot) (state.Update, error) {
	ragContext, err := a.retrieveContext(ctx, snapshot)
	if err != nil {
		a.logger.Warn(ctx, "report retrieval failed",
			observability.String("ticker", snapshot.Ticker),
			observability.Error(err),
		)
		analysis := degraded("财务分析", snapshot.Ticker, err)
		return state.Update{
			FinancialAnalysis: stringPtr(analysis),
			RAGContext:        stringPtr(degraded("研究资料检索", snapshot.Ticker, err)),
			Messages:          []state.Message{message(FinancialAnalystID, analysis)},
		}, nil
	}

	prompt := render(prompts.Financial.User, map[string]string{
		"ticker":  snapshot.Ticker,
		"query":   snapshot.Query,
		"context": utils.TruncateString(ragContext, utils.DefaultMaxStringLength),
	})

	analysis, err := a.generator.GenerateWithSystem(ctx, prompts.Financial.System, prompt)
	if err != nil {
		a.logger.Warn(ctx, "financial analysis degraded",
			observability.String("ticker", snapshot.Ticker),
			observability.Error(err),
		)
		analysis = degraded("财务分析", snapshot.Ticker, err)
	}

	return state.Update{
		FinancialAnalysis: stringPtr(analysis),
		RAGContext:        stringPtr(ragContext),
		Messages:          []state.Message{message(FinancialAnalystID, analysis)},
	}, nil
}

// retrieveContext gathers report chunks for the prompt. An absent retriever
// or an empty result is not a failure; the analysis proceeds with a
// placeholder context.
func (a *FinancialAnalyst) retrieveContext(ctx context.Context, snapshot state.Snapshot) (string, error) {
	if a.retriever == nil {
		return "(无可用研究资料)", nil
	}

	documents, err := a.retriever.Retrieve(ctx, snapshot.Query, snapshot.Ticker, a.topK)
	if err != nil {
		return "", err
	}
	if len(documents) == 0 {
		return "(无可用研究资料)", nil
	}

	sections := make([]string, 0, len(documents))
	for index, document := range documents {
		source := document.Metadata[retrieval.MetadataSource]
		if source == "" {
			source = "unknown"
		}
		sections = append(sections, fmt.Sprintf("[%d] 来源: %s\n%s", index+1, source, document.Content))
	}
	return strings.Join(sections, "\n\n"), nil
}
