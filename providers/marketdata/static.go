package marketdata

import (
	"context"
	"errors"
)

// StaticFetcher serves quotes from a fixed mapping. It backs offline runs and
// tests; unknown tickers produce the standard error marker.
type StaticFetcher struct {
	quotes map[string]map[string]any
	err    error
}

var _ Fetcher = (*StaticFetcher)(nil)

// NewStaticFetcher creates a fetcher over per-ticker quote mappings.
func NewStaticFetcher(quotes map[string]map[string]any) *StaticFetcher {
	return &StaticFetcher{quotes: quotes}
}

// NewFailingFetcher creates a fetcher whose every Fetch yields an error
// marker with the given cause.
func NewFailingFetcher(cause error) *StaticFetcher {
	if cause == nil {
		cause = errors.New("fetcher unavailable")
	}
	return &StaticFetcher{err: cause}
}

func (f *StaticFetcher) Fetch(_ context.Context, ticker string) map[string]any {
	if f.err != nil {
		return ErrorResult(ticker, f.err)
	}

	quote, ok := f.quotes[ticker]
	if !ok {
		return ErrorResult(ticker, errors.New("no data for ticker"))
	}

	// Copy so callers cannot mutate the fixture.
	result := make(map[string]any, len(quote)+2)
	for key, value := range quote {
		result[key] = value
	}
	if _, ok := result["stock_ticker"]; !ok {
		result["stock_ticker"] = ticker
	}
	result["success"] = true
	return result
}
