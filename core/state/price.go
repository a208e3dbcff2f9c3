package state

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
)

// Price is a numeric-or-text value for target_price / stop_loss. LLM output
// for these fields ranges from plain numbers to annotated strings
// ("$280", "270-285美元") to free text that carries no number at all
// ("无法确定"); consumers must accept either form, so the JSON encoding is a
// number when the value normalized and the original string otherwise.
type Price struct {
	value   float64
	text    string
	numeric bool
	present bool
}

var priceNumberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// currency symbols and unit words stripped before number extraction
var priceUnitReplacer = strings.NewReplacer(
	"$", " ", "¥", " ", "€", " ", "£", " ", "￥", " ",
	"USD", " ", "usd", " ", "CNY", " ", "cny", " ", "HKD", " ", "hkd", " ",
	"美元", " ", "美金", " ", "人民币", " ", "港元", " ", "港币", " ", "元", " ",
)

// PriceFromFloat wraps an already-numeric value; no normalization applies.
func PriceFromFloat(value float64) Price {
	return Price{value: value, numeric: true, present: true}
}

// PriceFromText normalizes a textual price: currency symbols and unit words
// are stripped, every numeric substring (integer or decimal) is extracted,
// and the result is the arithmetic mean of those numbers rounded to two
// decimal places. This covers both single annotated values and ranges
// written as two numbers. When no number is found the original text is
// preserved verbatim.
func PriceFromText(raw string) Price {
	stripped := priceUnitReplacer.Replace(raw)
	matches := priceNumberPattern.FindAllString(stripped, -1)
	if len(matches) == 0 {
		return Price{text: raw, present: raw != ""}
	}

	var sum float64
	for _, match := range matches {
		var value float64
		if err := json.Unmarshal([]byte(match), &value); err != nil {
			return Price{text: raw, present: raw != ""}
		}
		sum += value
	}

	mean := sum / float64(len(matches))
	return Price{value: math.Round(mean*100) / 100, numeric: true, present: true}
}

// NormalizePrice converts any JSON-decoded value into a Price: numbers stay
// numeric, strings go through text normalization, anything else is absent.
func NormalizePrice(raw any) Price {
	switch value := raw.(type) {
	case float64:
		return PriceFromFloat(value)
	case int:
		return PriceFromFloat(float64(value))
	case string:
		return PriceFromText(value)
	default:
		return Price{}
	}
}

// IsZero reports whether the price carries no value at all.
func (p Price) IsZero() bool { return !p.present }

// Float returns the numeric value and whether the price is numeric.
func (p Price) Float() (float64, bool) { return p.value, p.numeric }

// Text returns the preserved original text for non-numeric prices.
func (p Price) Text() string { return p.text }

// String renders the price for prompts and logs.
func (p Price) String() string {
	if !p.present {
		return ""
	}
	if p.numeric {
		encoded, _ := json.Marshal(p.value)
		return string(encoded)
	}
	return p.text
}

// MarshalJSON encodes numeric prices as JSON numbers, textual prices as JSON
// strings, and absent prices as null.
func (p Price) MarshalJSON() ([]byte, error) {
	if !p.present {
		return []byte("null"), nil
	}
	if p.numeric {
		return json.Marshal(p.value)
	}
	return json.Marshal(p.text)
}

// UnmarshalJSON accepts a number, a string (normalized on the way in), or
// null.
func (p *Price) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*p = Price{}
		return nil
	}

	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		*p = PriceFromFloat(number)
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*p = PriceFromText(text)
		return nil
	}

	// Unexpected shape (object, array): treat as absent rather than failing
	// the whole recommendation parse.
	*p = Price{}
	return nil
}
