package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fintel-ai/fintel/agents"
	"github.com/fintel-ai/fintel/core/state"
	"github.com/fintel-ai/fintel/providers/marketdata"
	"github.com/fintel-ai/fintel/providers/retrieval"
	"github.com/fintel-ai/fintel/providers/valuation"
)

// scriptedGenerator answers by matching a keyword in the system prompt, so
// each role gets its own deterministic response regardless of run order.
type scriptedGenerator struct {
	bySystemKeyword map[string]string
	err             error
}

func (g *scriptedGenerator) GenerateWithSystem(_ context.Context, systemPrompt, _ string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	for keyword, response := range g.bySystemKeyword {
		if strings.Contains(systemPrompt, keyword) {
			return response, nil
		}
	}
	return "generic analysis", nil
}

func testDependencies(generator agents.Generator) Dependencies {
	store := retrieval.NewMemoryStore()
	store.AddText("AAPL", "AAPL services segment keeps growing")

	fetcher := marketdata.NewStaticFetcher(map[string]map[string]any{
		"AAPL": {"current_price": 255.0, "currency": "USD"},
	})

	return Dependencies{
		Generator:  generator,
		Retriever:  store,
		Fetcher:    fetcher,
		Calculator: valuation.NewModelCalculator(fetcher),
	}
}

func standardGenerator() *scriptedGenerator {
	return &scriptedGenerator{bySystemKeyword: map[string]string{
		"财务分析师": "财务结论",
		"市场分析师": "市场结论",
		"估值分析师": "估值结论",
		"投资顾问":  `{"score": 7, "recommendation": "买入", "target_price": "270-285美元", "reasoning": "结论一致"}`,
	}}
}

func TestRunProducesCompleteResponse(t *testing.T) {
	pipeline, err := New(testDependencies(standardGenerator()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	response, err := pipeline.Run(context.Background(), "AAPL", "worth buying?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if response.FinancialAnalysis != "财务结论" {
		t.Errorf("FinancialAnalysis = %q", response.FinancialAnalysis)
	}
	if response.MarketAnalysis != "市场结论" {
		t.Errorf("MarketAnalysis = %q", response.MarketAnalysis)
	}
	if response.ValuationAnalysis != "估值结论" {
		t.Errorf("ValuationAnalysis = %q", response.ValuationAnalysis)
	}
	if response.FinalRecommendation == nil {
		t.Fatal("FinalRecommendation missing")
	}
	if value, numeric := response.FinalRecommendation.TargetPrice.Float(); !numeric || value != 277.5 {
		t.Errorf("TargetPrice = %v numeric=%v, want 277.5", value, numeric)
	}
	if response.RequestID == "" {
		t.Error("RequestID missing")
	}
	if len(response.Messages) != 4 {
		t.Errorf("len(Messages) = %d, want 4", len(response.Messages))
	}
}

func TestRunIsDeterministicAcrossRepeats(t *testing.T) {
	pipeline, err := New(testDependencies(standardGenerator()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var first []byte
	for run := 0; run < 3; run++ {
		response, err := pipeline.Run(context.Background(), "AAPL", "worth buying?")
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}

		encoded, err := json.Marshal(response.FinalRecommendation)
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = encoded
			continue
		}
		if string(encoded) != string(first) {
			t.Fatalf("run %d diverged:\n%s\n%s", run, first, encoded)
		}
	}
}

func TestRunCompletesUnderTotalCollaboratorFailure(t *testing.T) {
	generator := &scriptedGenerator{err: errors.New("provider returned status 500")}

	deps := Dependencies{
		Generator:  generator,
		Retriever:  retrieval.NewMemoryStore(),
		Fetcher:    marketdata.NewFailingFetcher(errors.New("quotes down")),
		Calculator: valuation.NewFailingCalculator(errors.New("models down")),
	}

	pipeline, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	response, err := pipeline.Run(context.Background(), "AAPL", "")
	if err != nil {
		t.Fatalf("total collaborator failure aborted the pipeline: %v", err)
	}

	for name, analysis := range map[string]string{
		"financial": response.FinancialAnalysis,
		"market":    response.MarketAnalysis,
		"valuation": response.ValuationAnalysis,
	} {
		if analysis == "" {
			t.Errorf("%s analysis empty, want a degraded placeholder", name)
		}
		if !strings.Contains(analysis, "AAPL") {
			t.Errorf("%s placeholder should name the ticker: %q", name, analysis)
		}
	}

	if response.FinalRecommendation == nil {
		t.Fatal("FinalRecommendation missing")
	}
	if response.FinalRecommendation.Recommendation != state.NeutralLabel {
		t.Errorf("fallback label = %q", response.FinalRecommendation.Recommendation)
	}
}

func TestRunCancellationReturnsPartialResponse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline, err := New(testDependencies(standardGenerator()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	response, err := pipeline.Run(ctx, "AAPL", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if response == nil {
		t.Fatal("cancellation should still return the partial response")
	}
	if response.FinalRecommendation != nil {
		t.Error("nothing ran, recommendation should be absent")
	}
}

func TestSequentialAnalystsOrdersMessages(t *testing.T) {
	pipeline, err := New(testDependencies(standardGenerator()), WithSequentialAnalysts())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	response, err := pipeline.Run(context.Background(), "AAPL", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		agents.FinancialAnalystID,
		agents.MarketAnalystID,
		agents.ValuationAnalystID,
		agents.SupervisorID,
	}
	if len(response.Messages) != len(want) {
		t.Fatalf("len(Messages) = %d, want %d", len(response.Messages), len(want))
	}
	for index, agent := range want {
		if response.Messages[index].Agent != agent {
			t.Errorf("Messages[%d].Agent = %q, want %q", index, response.Messages[index].Agent, agent)
		}
	}
}

func TestRunAnalystIsolation(t *testing.T) {
	pipeline, err := New(testDependencies(standardGenerator()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	response, err := pipeline.RunAnalyst(context.Background(), agents.MarketAnalystID, "AAPL", "trend?")
	if err != nil {
		t.Fatalf("RunAnalyst: %v", err)
	}

	if response.MarketAnalysis != "市场结论" {
		t.Errorf("MarketAnalysis = %q", response.MarketAnalysis)
	}
	if response.FinancialAnalysis != "" || response.FinalRecommendation != nil {
		t.Error("single-analyst run wrote fields it does not own")
	}

	if _, err := pipeline.RunAnalyst(context.Background(), "supervisor", "AAPL", ""); err == nil {
		t.Error("supervisor should not be runnable in isolation")
	}
}

func TestMaxIterationsBoundsPipeline(t *testing.T) {
	pipeline, err := New(testDependencies(standardGenerator()), WithMaxIterations(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = pipeline.Run(context.Background(), "AAPL", "")
	if err == nil {
		t.Fatal("a 4-node pipeline with budget 2 should fail")
	}
}
