package marketdata

// Trend labels mirror the bilingual convention used across the analysis
// surfaces (Chinese primary, English alias alongside).
const (
	TrendUp     = "上涨趋势"
	TrendUpEn   = "uptrend"
	TrendDown   = "下跌趋势"
	TrendDownEn = "downtrend"
)

// TechnicalIndicators derives moving averages and a trend signal from a
// chronological close-price series (oldest first). Averages whose window
// exceeds the available history are omitted.
func TechnicalIndicators(closes []float64) map[string]any {
	indicators := make(map[string]any)
	if len(closes) == 0 {
		return indicators
	}

	current := closes[len(closes)-1]
	indicators["current_price"] = round2(current)

	windows := []struct {
		key  string
		size int
	}{
		{"ma5", 5},
		{"ma10", 10},
		{"ma20", 20},
		{"ma50", 50},
	}

	for _, window := range windows {
		if average, ok := movingAverage(closes, window.size); ok {
			indicators[window.key] = round2(average)
		}
	}

	// Price above the 20-day average reads as an uptrend; fall back to the
	// shortest available window when history is thin.
	reference, ok := movingAverage(closes, 20)
	if !ok {
		reference, ok = movingAverage(closes, 5)
	}
	if ok {
		if current >= reference {
			indicators["trend"] = TrendUp
			indicators["trend_en"] = TrendUpEn
		} else {
			indicators["trend"] = TrendDown
			indicators["trend_en"] = TrendDownEn
		}
	}

	return indicators
}

func movingAverage(closes []float64, window int) (float64, bool) {
	if window <= 0 || len(closes) < window {
		return 0, false
	}

	sum := 0.0
	for _, value := range closes[len(closes)-window:] {
		sum += value
	}
	return sum / float64(window), true
}
