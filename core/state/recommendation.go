package state

// Recommendation is the structured final decision produced by the supervisor
// node. Score is on a 1–10 scale; Recommendation is a label such as
// 强烈买入 / 买入 / 持有 / 卖出 / 强烈卖出.
type Recommendation struct {
	Score          float64  `json:"score"`
	Recommendation string   `json:"recommendation"`
	TargetPrice    Price    `json:"target_price"`
	StopLoss       Price    `json:"stop_loss"`
	Reasoning      string   `json:"reasoning"`
	Risks          []string `json:"risks"`
	Opportunities  []string `json:"opportunities"`
}

const (
	// NeutralLabel is the hold recommendation used when extraction falls back.
	NeutralLabel = "持有"

	// NeutralScore is the midpoint default on the 1–10 scale.
	NeutralScore = 5
)

// NeutralRecommendation builds the fallback recommendation: hold label,
// midpoint score, empty risk/opportunity lists, with the supplied reasoning.
func NeutralRecommendation(reasoning string) *Recommendation {
	return &Recommendation{
		Score:          NeutralScore,
		Recommendation: NeutralLabel,
		Reasoning:      reasoning,
		Risks:          []string{},
		Opportunities:  []string{},
	}
}
