package state

import (
	"testing"
)

func TestSchemaPolicies(t *testing.T) {
	tests := []struct {
		field  Field
		policy MergePolicy
	}{
		{FieldTicker, PolicyImmutable},
		{FieldQuery, PolicyImmutable},
		{FieldMessages, PolicyAccumulate},
		{FieldFinancialAnalysis, PolicyExclusive},
		{FieldRAGContext, PolicyExclusive},
		{FieldMarketAnalysis, PolicyExclusive},
		{FieldMarketData, PolicyExclusive},
		{FieldValuationAnalysis, PolicyExclusive},
		{FieldValuationData, PolicyExclusive},
		{FieldFinalRecommendation, PolicyExclusive},
	}

	for _, test := range tests {
		policy, ok := PolicyOf(test.field)
		if !ok {
			t.Errorf("PolicyOf(%q): field not in schema", test.field)
			continue
		}
		if policy != test.policy {
			t.Errorf("PolicyOf(%q) = %v, want %v", test.field, policy, test.policy)
		}
	}

	if _, ok := PolicyOf("nonexistent"); ok {
		t.Error("PolicyOf accepted an unknown field")
	}
}

func TestApplyExclusiveWriteOnce(t *testing.T) {
	aggregate := NewAggregate("AAPL", "how healthy is the balance sheet")

	analysis := "fundamentals look solid"
	if err := aggregate.Apply(Update{FinancialAnalysis: &analysis}); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	if aggregate.FinancialAnalysis != analysis {
		t.Errorf("FinancialAnalysis = %q, want %q", aggregate.FinancialAnalysis, analysis)
	}
	if !aggregate.Written(FieldFinancialAnalysis) {
		t.Error("Written(financial_analysis) = false after apply")
	}

	second := "a different take"
	err := aggregate.Apply(Update{FinancialAnalysis: &second})
	if err == nil {
		t.Fatal("second write to exclusive field did not fail")
	}
	if aggregate.FinancialAnalysis != analysis {
		t.Errorf("rejected apply mutated the field: %q", aggregate.FinancialAnalysis)
	}
}

func TestApplyAccumulatesMessagesInOrder(t *testing.T) {
	aggregate := NewAggregate("AAPL", "")

	updates := []Update{
		{Messages: []Message{{Agent: "financial_analyst", Content: "one"}}},
		{Messages: []Message{{Agent: "market_analyst", Content: "two"}}},
		{Messages: []Message{{Agent: "supervisor", Content: "three"}}},
	}
	for _, update := range updates {
		if err := aggregate.Apply(update); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	if len(aggregate.Messages) != 3 {
		t.Fatalf("len(Messages) = %d, want 3", len(aggregate.Messages))
	}
	for index, want := range []string{"one", "two", "three"} {
		if aggregate.Messages[index].Content != want {
			t.Errorf("Messages[%d].Content = %q, want %q", index, aggregate.Messages[index].Content, want)
		}
	}
}

func TestApplyRejectsWholeUpdateOnConflict(t *testing.T) {
	aggregate := NewAggregate("AAPL", "")

	analysis := "first"
	if err := aggregate.Apply(Update{MarketAnalysis: &analysis}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	conflicting := "second"
	valuationText := "valuation ok"
	err := aggregate.Apply(Update{
		MarketAnalysis:    &conflicting,
		ValuationAnalysis: &valuationText,
	})
	if err == nil {
		t.Fatal("conflicting update did not fail")
	}
	if aggregate.Written(FieldValuationAnalysis) {
		t.Error("partially applied a rejected update")
	}
}

func TestSnapshotRestriction(t *testing.T) {
	aggregate := NewAggregate("AAPL", "query text")

	financial := "fundamentals"
	market := "technicals"
	if err := aggregate.Apply(Update{
		FinancialAnalysis: &financial,
		MarketAnalysis:    &market,
		MarketData:        map[string]any{"current_price": 255.0},
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	snapshot := aggregate.Snapshot(FieldFinancialAnalysis)

	if snapshot.Ticker != "AAPL" || snapshot.Query != "query text" {
		t.Errorf("inputs missing from snapshot: %+v", snapshot)
	}
	if snapshot.FinancialAnalysis != financial {
		t.Errorf("FinancialAnalysis = %q, want %q", snapshot.FinancialAnalysis, financial)
	}
	if snapshot.MarketAnalysis != "" {
		t.Errorf("undeclared field leaked into snapshot: %q", snapshot.MarketAnalysis)
	}
	if snapshot.MarketData != nil {
		t.Errorf("undeclared map leaked into snapshot: %v", snapshot.MarketData)
	}
}

func TestSnapshotDeepCopiesMaps(t *testing.T) {
	aggregate := NewAggregate("AAPL", "")

	if err := aggregate.Apply(Update{
		MarketData: map[string]any{"current_price": 255.0},
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	snapshot := aggregate.Snapshot(FieldMarketData)
	snapshot.MarketData["current_price"] = 0.0

	if aggregate.MarketData["current_price"] != 255.0 {
		t.Errorf("snapshot mutation reached the aggregate: %v", aggregate.MarketData)
	}
}

func TestApplyCopiesSourceMap(t *testing.T) {
	aggregate := NewAggregate("AAPL", "")

	source := map[string]any{"current_price": 255.0}
	if err := aggregate.Apply(Update{MarketData: source}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	source["current_price"] = 1.0
	if aggregate.MarketData["current_price"] != 255.0 {
		t.Errorf("mutating the update source reached the aggregate: %v", aggregate.MarketData)
	}
}

func TestUpdateFields(t *testing.T) {
	text := "x"
	update := Update{
		FinancialAnalysis:   &text,
		MarketData:          map[string]any{},
		FinalRecommendation: NeutralRecommendation("fallback"),
		Messages:            []Message{{Agent: "a", Content: "b"}},
	}

	fields := update.Fields()
	want := []Field{FieldFinancialAnalysis, FieldMarketData, FieldFinalRecommendation}
	if len(fields) != len(want) {
		t.Fatalf("Fields() = %v, want %v", fields, want)
	}
	for index := range want {
		if fields[index] != want[index] {
			t.Errorf("Fields()[%d] = %q, want %q", index, fields[index], want[index])
		}
	}
}
