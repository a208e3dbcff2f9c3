// Package retrieval is the context-retrieval collaborator: given a query and
// an optional ticker filter it returns scored document chunks from a report
// store. Two stores are provided — an in-memory token-overlap scorer and a
// SQLite FTS5 store — behind one contract. An empty result set is a valid,
// non-error outcome.
package retrieval

import "context"

// Document is one retrieved chunk of a financial report.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"relevance_score"`
}

// Retriever retrieves the topK most relevant documents for a query.
// The ticker filter is optional; an empty string means no filter.
type Retriever interface {
	Retrieve(ctx context.Context, query, ticker string, topK int) ([]Document, error)
}

// MetadataTicker is the metadata key carrying the document's ticker.
const MetadataTicker = "ticker"

// MetadataSource is the metadata key carrying the document's origin (file
// name, URL).
const MetadataSource = "source"
