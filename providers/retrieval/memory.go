package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// MemoryStore is an in-memory Retriever scoring documents by query-token
// overlap. It is the default store when no SQLite path is configured and the
// standard test double. Safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	documents []Document
}

var _ Retriever = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AddDocuments indexes pre-built documents.
func (s *MemoryStore) AddDocuments(documents ...Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append(s.documents, documents...)
}

// AddText indexes a plain text chunk under a ticker.
func (s *MemoryStore) AddText(ticker, content string) {
	s.AddDocuments(Document{
		Content:  content,
		Metadata: map[string]string{MetadataTicker: ticker},
	})
}

// Add implements the Ingestor contract used by IngestDirectory.
func (s *MemoryStore) Add(_ context.Context, ticker, source, content string) error {
	s.AddDocuments(Document{
		Content: content,
		Metadata: map[string]string{
			MetadataTicker: ticker,
			MetadataSource: source,
		},
	})
	return nil
}

// Clear drops every indexed document.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = nil
	return nil
}

// Len reports the number of indexed documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// Retrieve scores every document against the query tokens and returns the
// topK best matches, ordered by score descending with insertion order as the
// tiebreaker so results are deterministic. Documents for other tickers are
// excluded when a ticker filter is given.
func (s *MemoryStore) Retrieve(_ context.Context, query, ticker string, topK int) ([]Document, error) {
	if topK <= 0 {
		return nil, nil
	}

	queryTokens := tokenize(query + " " + ticker)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		document Document
		score    float64
		position int
	}

	matches := make([]scored, 0)
	for position, document := range s.documents {
		if ticker != "" {
			documentTicker := document.Metadata[MetadataTicker]
			if documentTicker != "" && !strings.EqualFold(documentTicker, ticker) {
				continue
			}
		}

		score := overlapScore(queryTokens, tokenize(document.Content))
		if score <= 0 {
			continue
		}

		matches = append(matches, scored{document: document, score: score, position: position})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].position < matches[j].position
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	results := make([]Document, 0, len(matches))
	for _, match := range matches {
		document := match.document
		document.Score = match.score
		results = append(results, document)
	}
	return results, nil
}

// tokenize lowercases and splits on non-letter/digit boundaries; CJK
// characters become single-rune tokens so Chinese queries match without
// word segmentation.
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens[current.String()] = true
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens[string(r)] = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return tokens
}

// overlapScore is the fraction of query tokens present in the document.
func overlapScore(queryTokens, documentTokens map[string]bool) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	hits := 0
	for token := range queryTokens {
		if documentTokens[token] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}
