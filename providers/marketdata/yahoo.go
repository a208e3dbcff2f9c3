package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fintel-ai/fintel/internal/utils"
)

// DefaultYahooBaseURL is the public Yahoo Finance chart endpoint.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher fetches quotes from the Yahoo Finance chart API. It requests
// three months of daily candles so moving-average indicators can be derived
// from the same response.
type YahooFetcher struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

var _ Fetcher = (*YahooFetcher)(nil)

// NewYahooFetcher creates a fetcher against the public endpoint.
func NewYahooFetcher() *YahooFetcher {
	return &YahooFetcher{
		baseURL: DefaultYahooBaseURL,
		now:     time.Now,
	}
}

// WithBaseURL overrides the endpoint (test servers).
func (f *YahooFetcher) WithBaseURL(baseURL string) *YahooFetcher {
	if baseURL != "" {
		f.baseURL = baseURL
	}
	return f
}

// WithHttpClient sets the HTTP client used for outbound requests.
func (f *YahooFetcher) WithHttpClient(httpClient *http.Client) *YahooFetcher {
	f.httpClient = httpClient
	return f
}

// chartResponse mirrors the subset of the Yahoo chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency             string  `json:"currency"`
				Symbol               string  `json:"symbol"`
				LongName             string  `json:"longName"`
				ShortName            string  `json:"shortName"`
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
				RegularMarketVolume  int64   `json:"regularMarketVolume"`
				ChartPreviousClose   float64 `json:"chartPreviousClose"`
				PreviousClose        float64 `json:"previousClose"`
				FiftyTwoWeekHigh     float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow      float64 `json:"fiftyTwoWeekLow"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns the quote mapping for a ticker. All failures (transport,
// unknown symbol, empty payload) are folded into an error-marker mapping.
func (f *YahooFetcher) Fetch(ctx context.Context, ticker string) map[string]any {
	requestURL := fmt.Sprintf("%s/v8/finance/chart/%s?range=3mo&interval=1d", f.baseURL, url.PathEscape(ticker))

	response, err := utils.DoGetSync[chartResponse](ctx, f.httpClient, requestURL, map[string]string{
		// Yahoo rejects requests without a browser-ish user agent.
		"User-Agent": "Mozilla/5.0 (compatible; fintel/1.0)",
	})
	if err != nil {
		return ErrorResult(ticker, err)
	}

	if response.Chart.Error != nil {
		return ErrorResult(ticker, fmt.Errorf("%s: %s", response.Chart.Error.Code, response.Chart.Error.Description))
	}
	if len(response.Chart.Result) == 0 {
		return ErrorResult(ticker, errors.New("empty chart result"))
	}

	result := response.Chart.Result[0]
	meta := result.Meta

	name := meta.LongName
	if name == "" {
		name = meta.ShortName
	}

	previousClose := meta.PreviousClose
	if previousClose == 0 {
		previousClose = meta.ChartPreviousClose
	}

	changeAmount := meta.RegularMarketPrice - previousClose
	changePercent := 0.0
	if previousClose != 0 {
		changePercent = changeAmount / previousClose * 100
	}

	quote := map[string]any{
		"stock_ticker":   ticker,
		"stock_name":     name,
		"current_price":  round2(meta.RegularMarketPrice),
		"high":           round2(meta.RegularMarketDayHigh),
		"low":            round2(meta.RegularMarketDayLow),
		"volume":         meta.RegularMarketVolume,
		"previous_close": round2(previousClose),
		"change_amount":  round2(changeAmount),
		"change_percent": round2(changePercent),
		"52week_high":    round2(meta.FiftyTwoWeekHigh),
		"52week_low":     round2(meta.FiftyTwoWeekLow),
		"currency":       meta.Currency,
		"timestamp":      f.now().Format(time.RFC3339),
		"success":        true,
	}

	if closes := closeSeries(result.Indicators.Quote); len(closes) > 0 {
		quote["indicators"] = TechnicalIndicators(closes)
	}

	return quote
}

// closeSeries flattens the close candles, skipping null entries (market
// holidays yield nulls in Yahoo's arrays).
func closeSeries(quotes []struct {
	Open  []*float64 `json:"open"`
	High  []*float64 `json:"high"`
	Low   []*float64 `json:"low"`
	Close []*float64 `json:"close"`
}) []float64 {
	if len(quotes) == 0 {
		return nil
	}

	closes := make([]float64, 0, len(quotes[0].Close))
	for _, value := range quotes[0].Close {
		if value != nil {
			closes = append(closes, *value)
		}
	}
	return closes
}
