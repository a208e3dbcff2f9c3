// Package state defines the shared result record for one analysis request:
// the Aggregate, the per-field merge policy, and the typed partial updates
// nodes contribute. The Aggregate is owned by a single executor for the
// lifetime of one request and is never shared across requests.
package state

import "fmt"

// Field identifies one field of the Aggregate in the merge-policy schema.
type Field string

const (
	FieldTicker              Field = "ticker"
	FieldQuery               Field = "query"
	FieldMessages            Field = "messages"
	FieldFinancialAnalysis   Field = "financial_analysis"
	FieldRAGContext          Field = "rag_context"
	FieldMarketAnalysis      Field = "market_analysis"
	FieldMarketData          Field = "market_data"
	FieldValuationAnalysis   Field = "valuation_analysis"
	FieldValuationData       Field = "valuation_data"
	FieldFinalRecommendation Field = "final_recommendation"
)

// MergePolicy selects how a node's value for a field is integrated into the
// Aggregate.
type MergePolicy int

const (
	// PolicyImmutable marks request inputs: copied once at creation, never
	// merged.
	PolicyImmutable MergePolicy = iota

	// PolicyExclusive fields have exactly one designated writer and are
	// written at most once per request. The new value replaces the unset
	// initial value outright.
	PolicyExclusive

	// PolicyAccumulate fields are ordered sequences that only grow; new
	// elements are appended in the order the executor applies completed
	// updates.
	PolicyAccumulate
)

// schema is the authoritative field table. Ownership of exclusive fields is
// declared by nodes and validated at topology construction, not here.
var schema = map[Field]MergePolicy{
	FieldTicker:              PolicyImmutable,
	FieldQuery:               PolicyImmutable,
	FieldMessages:            PolicyAccumulate,
	FieldFinancialAnalysis:   PolicyExclusive,
	FieldRAGContext:          PolicyExclusive,
	FieldMarketAnalysis:      PolicyExclusive,
	FieldMarketData:          PolicyExclusive,
	FieldValuationAnalysis:   PolicyExclusive,
	FieldValuationData:       PolicyExclusive,
	FieldFinalRecommendation: PolicyExclusive,
}

// PolicyOf returns the merge policy for a field and whether the field exists
// in the schema.
func PolicyOf(field Field) (MergePolicy, bool) {
	policy, ok := schema[field]
	return policy, ok
}

// Message is one entry in the accumulated message history. Agent names the
// node that produced it.
type Message struct {
	Agent   string `json:"agent"`
	Content string `json:"content"`
}

// Aggregate is the evolving result record for a single request. It is
// created empty (inputs copied from the request), mutated monotonically by
// Apply, returned as the response payload, and then discarded.
type Aggregate struct {
	// Immutable inputs.
	Ticker string `json:"ticker"`
	Query  string `json:"query"`

	// Accumulated message history, ordered by merge application.
	Messages []Message `json:"messages"`

	// Exclusive analysis fields, one designated writer each.
	FinancialAnalysis   string          `json:"financial_analysis"`
	RAGContext          string          `json:"rag_context"`
	MarketAnalysis      string          `json:"market_analysis"`
	MarketData          map[string]any  `json:"market_data"`
	ValuationAnalysis   string          `json:"valuation_analysis"`
	ValuationData       map[string]any  `json:"valuation_data"`
	FinalRecommendation *Recommendation `json:"final_recommendation"`

	// Control fields reserved for cyclic topologies; the executor maintains
	// IterationCount, nothing reads NextAgent yet.
	NextAgent      string `json:"next_agent"`
	IterationCount int    `json:"iteration_count"`

	written map[Field]bool
}

// NewAggregate creates an empty aggregate for one request.
func NewAggregate(ticker, query string) *Aggregate {
	return &Aggregate{
		Ticker:  ticker,
		Query:   query,
		written: make(map[Field]bool),
	}
}

// Update is a node's partial contribution to the Aggregate. Only the fields a
// node owns may be populated; nil pointers and nil maps mean "not written".
// Messages are always accepted (accumulate policy).
type Update struct {
	Messages []Message

	FinancialAnalysis   *string
	RAGContext          *string
	MarketAnalysis      *string
	MarketData          map[string]any
	ValuationAnalysis   *string
	ValuationData       map[string]any
	FinalRecommendation *Recommendation
}

// Fields returns the exclusive fields this update writes, in schema order.
// Accumulate fields are not reported: any node may append to them.
func (u Update) Fields() []Field {
	fields := make([]Field, 0, 4)
	if u.FinancialAnalysis != nil {
		fields = append(fields, FieldFinancialAnalysis)
	}
	if u.RAGContext != nil {
		fields = append(fields, FieldRAGContext)
	}
	if u.MarketAnalysis != nil {
		fields = append(fields, FieldMarketAnalysis)
	}
	if u.MarketData != nil {
		fields = append(fields, FieldMarketData)
	}
	if u.ValuationAnalysis != nil {
		fields = append(fields, FieldValuationAnalysis)
	}
	if u.ValuationData != nil {
		fields = append(fields, FieldValuationData)
	}
	if u.FinalRecommendation != nil {
		fields = append(fields, FieldFinalRecommendation)
	}
	return fields
}

// Apply merges an update into the aggregate. Exclusive fields are write-once:
// a second write to the same field reports an error. Ownership conflicts are
// rejected earlier, at topology construction; this check backs the write-once
// invariant during a single run.
//
// Apply is not safe for concurrent use; the executor serializes calls.
func (a *Aggregate) Apply(update Update) error {
	for _, field := range update.Fields() {
		if a.written[field] {
			return fmt.Errorf("exclusive field %q written twice", field)
		}
	}

	if update.FinancialAnalysis != nil {
		a.FinancialAnalysis = *update.FinancialAnalysis
		a.written[FieldFinancialAnalysis] = true
	}
	if update.RAGContext != nil {
		a.RAGContext = *update.RAGContext
		a.written[FieldRAGContext] = true
	}
	if update.MarketAnalysis != nil {
		a.MarketAnalysis = *update.MarketAnalysis
		a.written[FieldMarketAnalysis] = true
	}
	if update.MarketData != nil {
		a.MarketData = copyMap(update.MarketData)
		a.written[FieldMarketData] = true
	}
	if update.ValuationAnalysis != nil {
		a.ValuationAnalysis = *update.ValuationAnalysis
		a.written[FieldValuationAnalysis] = true
	}
	if update.ValuationData != nil {
		a.ValuationData = copyMap(update.ValuationData)
		a.written[FieldValuationData] = true
	}
	if update.FinalRecommendation != nil {
		recommendation := *update.FinalRecommendation
		a.FinalRecommendation = &recommendation
		a.written[FieldFinalRecommendation] = true
	}

	a.Messages = append(a.Messages, update.Messages...)

	return nil
}

// Written reports whether an exclusive field has been set during this request.
func (a *Aggregate) Written(field Field) bool {
	return a.written[field]
}

// Snapshot produces a read-only copy of the aggregate restricted to the
// requested fields. Ticker and query are always included. Maps and slices are
// deep-copied so a node can never mutate the live aggregate.
func (a *Aggregate) Snapshot(fields ...Field) Snapshot {
	snapshot := Snapshot{
		Ticker: a.Ticker,
		Query:  a.Query,
	}

	for _, field := range fields {
		switch field {
		case FieldMessages:
			snapshot.Messages = append([]Message(nil), a.Messages...)
		case FieldFinancialAnalysis:
			snapshot.FinancialAnalysis = a.FinancialAnalysis
		case FieldRAGContext:
			snapshot.RAGContext = a.RAGContext
		case FieldMarketAnalysis:
			snapshot.MarketAnalysis = a.MarketAnalysis
		case FieldMarketData:
			snapshot.MarketData = copyMap(a.MarketData)
		case FieldValuationAnalysis:
			snapshot.ValuationAnalysis = a.ValuationAnalysis
		case FieldValuationData:
			snapshot.ValuationData = copyMap(a.ValuationData)
		case FieldFinalRecommendation:
			if a.FinalRecommendation != nil {
				recommendation := *a.FinalRecommendation
				snapshot.FinalRecommendation = &recommendation
			}
		}
	}

	return snapshot
}

// Snapshot is the read-only view handed to a node: the immutable inputs plus
// exactly the fields the node declared as dependencies.
type Snapshot struct {
	Ticker string
	Query  string

	Messages            []Message
	FinancialAnalysis   string
	RAGContext          string
	MarketAnalysis      string
	MarketData          map[string]any
	ValuationAnalysis   string
	ValuationData       map[string]any
	FinalRecommendation *Recommendation
}

func copyMap(source map[string]any) map[string]any {
	if source == nil {
		return nil
	}
	target := make(map[string]any, len(source))
	for key, value := range source {
		target[key] = value
	}
	return target
}
