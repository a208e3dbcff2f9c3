package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

// SQLiteStore is a Retriever backed by a SQLite FTS5 full-text index. It
// persists report chunks across process restarts, standing in for the
// original deployment's vector store.
type SQLiteStore struct {
	db *sql.DB
}

var _ Retriever = (*SQLiteStore)(nil)

const createReportsTable = `
CREATE VIRTUAL TABLE IF NOT EXISTS reports USING fts5(
	ticker,
	source,
	content
);`

// OpenSQLiteStore opens (creating if needed) the report index at path.
// Use ":memory:" for an ephemeral index.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("retrieval: open sqlite store: %w", err)
	}

	if _, err := db.Exec(createReportsTable); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("retrieval: create reports table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Add indexes one report chunk.
func (s *SQLiteStore) Add(ctx context.Context, ticker, source, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (ticker, source, content) VALUES (?, ?, ?)`,
		ticker, source, content,
	)
	if err != nil {
		return fmt.Errorf("retrieval: index report chunk: %w", err)
	}
	return nil
}

// Clear drops every indexed chunk.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reports`); err != nil {
		return fmt.Errorf("retrieval: clear reports: %w", err)
	}
	return nil
}

// Count reports the number of indexed chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM reports`).Scan(&count); err != nil {
		return 0, fmt.Errorf("retrieval: count reports: %w", err)
	}
	return count, nil
}

// Retrieve runs an FTS5 match over the indexed chunks, ordered by rank.
// Relevance is the negated FTS5 rank so that larger means more relevant.
func (s *SQLiteStore) Retrieve(ctx context.Context, query, ticker string, topK int) ([]Document, error) {
	if topK <= 0 {
		return nil, nil
	}

	match := buildMatchExpression(query)
	if match == "" {
		return nil, nil
	}

	statement := `SELECT ticker, source, content, rank FROM reports WHERE reports MATCH ?`
	args := []any{match}
	if ticker != "" {
		statement += ` AND ticker = ?`
		args = append(args, ticker)
	}
	statement += ` ORDER BY rank LIMIT ?`
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("retrieval: query reports: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	documents := make([]Document, 0, topK)
	for rows.Next() {
		var documentTicker, source, content string
		var rank float64
		if err := rows.Scan(&documentTicker, &source, &content, &rank); err != nil {
			return nil, fmt.Errorf("retrieval: scan report row: %w", err)
		}

		documents = append(documents, Document{
			Content: content,
			Metadata: map[string]string{
				MetadataTicker: documentTicker,
				MetadataSource: source,
			},
			Score: -rank,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retrieval: iterate report rows: %w", err)
	}

	return documents, nil
}

// buildMatchExpression turns a free-form query into a safe FTS5 expression:
// each token is double-quoted and tokens are OR-joined, so user punctuation
// cannot produce a syntax error.
func buildMatchExpression(query string) string {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return ""
	}

	quoted := make([]string, 0, len(tokens))
	for token := range tokens {
		quoted = append(quoted, `"`+strings.ReplaceAll(token, `"`, ``)+`"`)
	}
	// Map iteration order does not matter: OR is commutative and ranking
	// depends only on the token set.
	return strings.Join(quoted, " OR ")
}
