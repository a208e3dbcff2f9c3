package extract

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/fintel-ai/fintel/core/state"
)

// labelAliases maps recognized recommendation spellings to their canonical
// Chinese label. The English aliases cover models that answer in English
// despite the Chinese prompt.
var labelAliases = map[string]string{
	"强烈买入":        "强烈买入",
	"买入":          "买入",
	"持有":          "持有",
	"卖出":          "卖出",
	"强烈卖出":        "强烈卖出",
	"strong buy":  "强烈买入",
	"buy":         "买入",
	"hold":        "持有",
	"neutral":     "持有",
	"sell":        "卖出",
	"strong sell": "强烈卖出",
}

// minLabelSimilarity is the similarity floor below which a label is kept
// as written rather than snapped to a canonical one.
const minLabelSimilarity = 0.6

// CanonicalLabel maps a free-form recommendation label onto the canonical
// set (强烈买入/买入/持有/卖出/强烈卖出). Exact and case-insensitive alias
// matches win; otherwise the nearest alias by levenshtein similarity is used
// when it is close enough. An empty label becomes the neutral hold label;
// an unrecognizable one is preserved as written.
func CanonicalLabel(label string) string {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return state.NeutralLabel
	}

	lowered := strings.ToLower(trimmed)
	if canonical, ok := labelAliases[lowered]; ok {
		return canonical
	}

	bestSimilarity := 0.0
	bestCanonical := ""
	for alias, canonical := range labelAliases {
		similarity := labelSimilarity(lowered, alias)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			bestCanonical = canonical
		}
	}

	if bestSimilarity >= minLabelSimilarity {
		return bestCanonical
	}
	return trimmed
}

// labelSimilarity scores two strings in [0,1] from their edit distance.
func labelSimilarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}
