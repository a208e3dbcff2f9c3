// Package extract turns the supervisor's free-form generated text into the
// structured final recommendation. Generated text usually embeds one JSON
// object surrounded by prose; extraction locates the object span, parses it
// (repairing malformed JSON when needed), and falls back to a neutral
// recommendation carrying the raw text as reasoning when no object can be
// recovered.
package extract

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/fintel-ai/fintel/core/state"
)

// Recommendation extracts the structured recommendation embedded in raw
// generated text. It never fails: a parse error or missing delimiters yields
// the neutral fallback (hold label, midpoint score, empty risks and
// opportunities, reasoning set to the full raw text).
//
// Price fields are normalized during decoding via state.Price: numeric
// values pass through, annotated strings and ranges collapse to the mean of
// their numbers, and number-free text is preserved verbatim.
func Recommendation(raw string) *state.Recommendation {
	span, ok := objectSpan(raw)
	if !ok {
		return state.NeutralRecommendation(raw)
	}

	recommendation, err := parseRecommendation(span)
	if err != nil {
		// The widest span can swallow stray braces from surrounding prose;
		// retry with the span closed at the matching brace of the first
		// opening delimiter.
		if balanced, found := balancedSpan(raw); found && balanced != span {
			recommendation, err = parseRecommendation(balanced)
		}
		if err != nil {
			return state.NeutralRecommendation(raw)
		}
	}

	normalize(recommendation)
	return recommendation
}

// objectSpan returns the widest candidate object: from the first opening
// brace to the last closing brace after it.
func objectSpan(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(raw, '}')
	if end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// balancedSpan returns the span from the first opening brace to its matching
// closing brace, tracking JSON string literals so braces inside strings do
// not affect the depth.
func balancedSpan(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for index := start; index < len(raw); index++ {
		char := raw[index]

		if inString {
			switch {
			case escaped:
				escaped = false
			case char == '\\':
				escaped = true
			case char == '"':
				inString = false
			}
			continue
		}

		switch char {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : index+1], true
			}
		}
	}

	return "", false
}

// parseRecommendation decodes a candidate JSON span, repairing it first when
// strict decoding fails.
func parseRecommendation(span string) (*state.Recommendation, error) {
	recommendation := &state.Recommendation{}

	err := json.Unmarshal([]byte(span), recommendation)
	if err == nil {
		return recommendation, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(span)
	if repairErr != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(repaired), recommendation); err != nil {
		return nil, err
	}

	return recommendation, nil
}

// normalize clamps the score into the 1–10 scale, canonicalizes the label,
// and replaces nil sequences with empty ones so the response shape is stable.
func normalize(recommendation *state.Recommendation) {
	switch {
	case recommendation.Score == 0:
		recommendation.Score = state.NeutralScore
	case recommendation.Score < 1:
		recommendation.Score = 1
	case recommendation.Score > 10:
		recommendation.Score = 10
	}

	recommendation.Recommendation = CanonicalLabel(recommendation.Recommendation)

	if recommendation.Risks == nil {
		recommendation.Risks = []string{}
	}
	if recommendation.Opportunities == nil {
		recommendation.Opportunities = []string{}
	}
}
