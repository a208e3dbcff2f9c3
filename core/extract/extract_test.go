package extract

import (
	"testing"

	"github.com/fintel-ai/fintel/core/state"
)

func TestRecommendationEmbeddedInProse(t *testing.T) {
	raw := `根据三位分析师的结论，我的最终建议如下：

{"score": 7.5, "recommendation": "买入", "target_price": "270-285美元",
 "stop_loss": 240, "reasoning": "基本面稳健，估值合理",
 "risks": ["宏观利率风险"], "opportunities": ["服务业务增长"]}

以上建议仅供参考。`

	recommendation := Recommendation(raw)

	if recommendation.Score != 7.5 {
		t.Errorf("Score = %v, want 7.5", recommendation.Score)
	}
	if recommendation.Recommendation != "买入" {
		t.Errorf("Recommendation = %q, want 买入", recommendation.Recommendation)
	}
	if value, numeric := recommendation.TargetPrice.Float(); !numeric || value != 277.5 {
		t.Errorf("TargetPrice = %v numeric=%v, want 277.5", value, numeric)
	}
	if value, numeric := recommendation.StopLoss.Float(); !numeric || value != 240 {
		t.Errorf("StopLoss = %v numeric=%v, want 240", value, numeric)
	}
	if len(recommendation.Risks) != 1 || len(recommendation.Opportunities) != 1 {
		t.Errorf("lists = %v / %v", recommendation.Risks, recommendation.Opportunities)
	}
}

func TestRecommendationNoDelimitersFallsBackNeutral(t *testing.T) {
	raw := "市场波动较大，建议谨慎观望，等待更明确的信号。"

	recommendation := Recommendation(raw)

	if recommendation.Recommendation != state.NeutralLabel {
		t.Errorf("Recommendation = %q, want %q", recommendation.Recommendation, state.NeutralLabel)
	}
	if recommendation.Score != state.NeutralScore {
		t.Errorf("Score = %v, want %v", recommendation.Score, state.NeutralScore)
	}
	if recommendation.Reasoning != raw {
		t.Errorf("Reasoning should carry the raw text, got %q", recommendation.Reasoning)
	}
	if recommendation.Risks == nil || recommendation.Opportunities == nil {
		t.Error("fallback lists should be empty, not nil")
	}
}

func TestRecommendationUnparseableFallsBackNeutral(t *testing.T) {
	raw := "结论是 {完全不是 JSON 的内容"

	recommendation := Recommendation(raw)

	if recommendation.Recommendation != state.NeutralLabel || recommendation.Reasoning != raw {
		t.Errorf("unexpected fallback: %+v", recommendation)
	}
}

func TestRecommendationStrayBracesAfterObject(t *testing.T) {
	// The widest span includes the stray closing brace from the trailing
	// prose; the balanced-span retry must recover the object.
	raw := `{"score": 6, "recommendation": "持有", "reasoning": "观望"}
附注：历史区间为 {240-260}。`

	recommendation := Recommendation(raw)

	if recommendation.Score != 6 {
		t.Errorf("Score = %v, want 6", recommendation.Score)
	}
	if recommendation.Recommendation != "持有" {
		t.Errorf("Recommendation = %q, want 持有", recommendation.Recommendation)
	}
}

func TestRecommendationRepairsMalformedJSON(t *testing.T) {
	// Trailing comma and unquoted key, the common model output defects.
	raw := `{"score": 8, recommendation: "买入", "reasoning": "强劲增长",}`

	recommendation := Recommendation(raw)

	if recommendation.Score != 8 || recommendation.Recommendation != "买入" {
		t.Errorf("repair failed: %+v", recommendation)
	}
}

func TestRecommendationScoreClamping(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"above scale", `{"score": 15, "recommendation": "买入"}`, 10},
		{"below scale", `{"score": 0.2, "recommendation": "卖出"}`, 1},
		{"missing", `{"recommendation": "持有"}`, state.NeutralScore},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Recommendation(test.raw).Score; got != test.want {
				t.Errorf("Score = %v, want %v", got, test.want)
			}
		})
	}
}

func TestRecommendationTextualPricePreserved(t *testing.T) {
	raw := `{"score": 5, "recommendation": "持有", "target_price": "无法确定"}`

	recommendation := Recommendation(raw)

	if _, numeric := recommendation.TargetPrice.Float(); numeric {
		t.Fatal("number-free price should stay textual")
	}
	if recommendation.TargetPrice.Text() != "无法确定" {
		t.Errorf("TargetPrice text = %q", recommendation.TargetPrice.Text())
	}
}

func TestCanonicalLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "持有"},
		{"买入", "买入"},
		{"  持有  ", "持有"},
		{"BUY", "买入"},
		{"Strong Buy", "强烈买入"},
		{"neutral", "持有"},
		{"hold", "持有"},
		{"selll", "卖出"},
		{"建议逢低分批建仓并长期持有该标的", "建议逢低分批建仓并长期持有该标的"},
	}

	for _, test := range tests {
		if got := CanonicalLabel(test.in); got != test.want {
			t.Errorf("CanonicalLabel(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}
