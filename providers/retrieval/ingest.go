package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// chunkSize bounds each indexed chunk; chunks split on paragraph boundaries
// where possible.
const chunkSize = 1000

// Ingestor is the subset of store behavior ingestion needs. Both SQLiteStore
// and MemoryStore satisfy it.
type Ingestor interface {
	Add(ctx context.Context, ticker, source, content string) error
}

// IngestDirectory walks a report directory and indexes every supported file.
// HTML filings are converted to markdown before chunking; .md and .txt files
// are chunked as-is. The ticker is taken from the file name's prefix up to
// the first underscore or dot (e.g. "AAPL_2024_annual.html" → "AAPL").
// Returns the number of chunks indexed.
func IngestDirectory(ctx context.Context, store Ingestor, directory string) (int, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return 0, fmt.Errorf("retrieval: read report directory: %w", err)
	}

	indexed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		extension := strings.ToLower(filepath.Ext(name))

		var text string
		switch extension {
		case ".html", ".htm":
			raw, err := os.ReadFile(filepath.Join(directory, name))
			if err != nil {
				return indexed, fmt.Errorf("retrieval: read report %s: %w", name, err)
			}
			markdown, err := htmltomarkdown.ConvertString(string(raw))
			if err != nil {
				return indexed, fmt.Errorf("retrieval: convert report %s: %w", name, err)
			}
			text = markdown
		case ".md", ".txt":
			raw, err := os.ReadFile(filepath.Join(directory, name))
			if err != nil {
				return indexed, fmt.Errorf("retrieval: read report %s: %w", name, err)
			}
			text = string(raw)
		default:
			continue
		}

		ticker := tickerFromFilename(name)
		for _, chunk := range splitChunks(text, chunkSize) {
			if err := store.Add(ctx, ticker, name, chunk); err != nil {
				return indexed, err
			}
			indexed++
		}
	}

	return indexed, nil
}

// tickerFromFilename extracts the leading ticker from a report file name.
func tickerFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if index := strings.IndexByte(base, '_'); index > 0 {
		base = base[:index]
	}
	return strings.ToUpper(base)
}

// splitChunks splits text into chunks of at most maxLen bytes, preferring
// paragraph boundaries and skipping blank chunks.
func splitChunks(text string, maxLen int) []string {
	paragraphs := strings.Split(text, "\n\n")
	chunks := make([]string, 0)

	var current strings.Builder
	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, paragraph := range paragraphs {
		if current.Len() > 0 && current.Len()+len(paragraph) > maxLen {
			flush()
		}

		// A single oversized paragraph is split hard.
		for len(paragraph) > maxLen {
			current.WriteString(paragraph[:maxLen])
			flush()
			paragraph = paragraph[maxLen:]
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	flush()

	return chunks
}
