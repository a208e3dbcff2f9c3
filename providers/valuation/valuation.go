// Package valuation is the structured-data collaborator for intrinsic value
// estimates. Like marketdata, it never returns Go errors from its main
// operation: failures become error markers inside the result mapping.
package valuation

import (
	"context"
	"errors"
	"math"

	"github.com/fintel-ai/fintel/providers/marketdata"
)

// Calculator produces a valuation summary for a ticker.
type Calculator interface {
	Valuate(ctx context.Context, ticker string) map[string]any
}

// Assumptions drive the deterministic valuation models. The defaults are
// deliberately conservative sector-agnostic figures.
type Assumptions struct {
	TargetPE      float64 // fair price-to-earnings multiple
	TargetPB      float64 // fair price-to-book multiple
	EarningsYield float64 // earnings as a fraction of price
	BookRatio     float64 // book value as a fraction of price
	GrowthRate    float64 // annual free-cash-flow growth for DCF
	DiscountRate  float64 // DCF discount rate
	Years         int     // DCF projection horizon
}

// DefaultAssumptions returns the standard model parameters.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		TargetPE:      22,
		TargetPB:      3.5,
		EarningsYield: 0.05,
		BookRatio:     0.30,
		GrowthRate:    0.08,
		DiscountRate:  0.10,
		Years:         5,
	}
}

// ModelCalculator derives PE, PB and DCF estimates from the current market
// quote. It is deterministic: identical quotes yield identical valuations.
type ModelCalculator struct {
	fetcher     marketdata.Fetcher
	assumptions Assumptions
}

var _ Calculator = (*ModelCalculator)(nil)

// NewModelCalculator creates a calculator over a market quote source.
func NewModelCalculator(fetcher marketdata.Fetcher) *ModelCalculator {
	return &ModelCalculator{
		fetcher:     fetcher,
		assumptions: DefaultAssumptions(),
	}
}

// WithAssumptions overrides the model parameters.
func (c *ModelCalculator) WithAssumptions(assumptions Assumptions) *ModelCalculator {
	c.assumptions = assumptions
	return c
}

// Valuate runs every model and aggregates them into a comprehensive summary
// with an average target price and a low/high range.
func (c *ModelCalculator) Valuate(ctx context.Context, ticker string) map[string]any {
	quote := c.fetcher.Fetch(ctx, ticker)
	if !marketdata.Succeeded(quote) {
		return errorResult(ticker, quote)
	}

	price, ok := numericValue(quote["current_price"])
	if !ok || price <= 0 {
		return map[string]any{
			"stock_ticker": ticker,
			"error":        "quote has no usable current price",
			"success":      false,
		}
	}

	peTarget := c.peValuation(price)
	pbTarget := c.pbValuation(price)
	dcfTarget := c.dcfValuation(price)

	targets := []float64{peTarget, pbTarget, dcfTarget}
	average := round2(mean(targets))
	low, high := bounds(targets)

	return map[string]any{
		"stock_ticker":  ticker,
		"current_price": round2(price),
		"methods": map[string]any{
			"pe_valuation": map[string]any{
				"target_price": peTarget,
				"target_pe":    c.assumptions.TargetPE,
			},
			"pb_valuation": map[string]any{
				"target_price": pbTarget,
				"target_pb":    c.assumptions.TargetPB,
			},
			"dcf_valuation": map[string]any{
				"target_price":  dcfTarget,
				"growth_rate":   c.assumptions.GrowthRate,
				"discount_rate": c.assumptions.DiscountRate,
				"years":         c.assumptions.Years,
			},
		},
		"average_target_price": average,
		"valuation_range": map[string]any{
			"low":  round2(low),
			"high": round2(high),
		},
		"upside_percent": round2((average - price) / price * 100),
		"success":        true,
	}
}

// peValuation prices implied earnings at the target multiple.
func (c *ModelCalculator) peValuation(price float64) float64 {
	earningsPerShare := price * c.assumptions.EarningsYield
	return round2(earningsPerShare * c.assumptions.TargetPE)
}

// pbValuation prices implied book value at the target multiple.
func (c *ModelCalculator) pbValuation(price float64) float64 {
	bookPerShare := price * c.assumptions.BookRatio
	return round2(bookPerShare * c.assumptions.TargetPB)
}

// dcfValuation discounts a growing cash-flow stream plus a terminal value
// back to the present.
func (c *ModelCalculator) dcfValuation(price float64) float64 {
	cashFlow := price * c.assumptions.EarningsYield
	present := 0.0
	for year := 1; year <= c.assumptions.Years; year++ {
		cashFlow *= 1 + c.assumptions.GrowthRate
		present += cashFlow / math.Pow(1+c.assumptions.DiscountRate, float64(year))
	}

	terminal := cashFlow * (1 + c.assumptions.GrowthRate) /
		(c.assumptions.DiscountRate - c.assumptions.GrowthRate)
	present += terminal / math.Pow(1+c.assumptions.DiscountRate, float64(c.assumptions.Years))

	return round2(present)
}

// StaticCalculator serves fixed valuations per ticker, for offline runs and
// tests.
type StaticCalculator struct {
	valuations map[string]map[string]any
	err        error
}

var _ Calculator = (*StaticCalculator)(nil)

// NewStaticCalculator creates a calculator over per-ticker fixtures.
func NewStaticCalculator(valuations map[string]map[string]any) *StaticCalculator {
	return &StaticCalculator{valuations: valuations}
}

// NewFailingCalculator creates a calculator whose every Valuate yields an
// error marker with the given cause.
func NewFailingCalculator(cause error) *StaticCalculator {
	if cause == nil {
		cause = errors.New("calculator unavailable")
	}
	return &StaticCalculator{err: cause}
}

func (c *StaticCalculator) Valuate(_ context.Context, ticker string) map[string]any {
	if c.err != nil {
		return map[string]any{
			"stock_ticker": ticker,
			"error":        c.err.Error(),
			"success":      false,
		}
	}

	valuation, ok := c.valuations[ticker]
	if !ok {
		return map[string]any{
			"stock_ticker": ticker,
			"error":        "no valuation for ticker",
			"success":      false,
		}
	}

	result := make(map[string]any, len(valuation)+2)
	for key, value := range valuation {
		result[key] = value
	}
	if _, ok := result["stock_ticker"]; !ok {
		result["stock_ticker"] = ticker
	}
	result["success"] = true
	return result
}

func errorResult(ticker string, quote map[string]any) map[string]any {
	message := "market data unavailable"
	if text, ok := quote["error"].(string); ok && text != "" {
		message = text
	}
	return map[string]any{
		"stock_ticker": ticker,
		"error":        message,
		"success":      false,
	}
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

func bounds(values []float64) (low, high float64) {
	low, high = values[0], values[0]
	for _, value := range values[1:] {
		if value < low {
			low = value
		}
		if value > high {
			high = value
		}
	}
	return low, high
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
