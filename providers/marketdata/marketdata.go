// Package marketdata is the structured-data collaborator for market quotes.
// The contract is deliberately failure-tolerant: Fetch always returns a
// mapping, and failures are encoded inside it as an error marker
// ("success": false plus "error") instead of a Go error, so analysis nodes
// never have to distinguish transport failures from missing data.
package marketdata

import (
	"context"
	"math"
)

// Fetcher returns a mapping of named market metrics for a ticker.
type Fetcher interface {
	Fetch(ctx context.Context, ticker string) map[string]any
}

// ErrorResult builds the standard failure mapping.
func ErrorResult(ticker string, cause error) map[string]any {
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	return map[string]any{
		"stock_ticker": ticker,
		"error":        message,
		"success":      false,
	}
}

// Succeeded reports whether a fetch result carries real data.
func Succeeded(result map[string]any) bool {
	success, ok := result["success"].(bool)
	return ok && success
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
