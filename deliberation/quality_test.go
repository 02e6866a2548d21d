package deliberation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/tradecrew/decision"
)

func TestQualityEmpty(t *testing.T) {
	r := Quality(nil)
	assert.Zero(t, r.Overall)
	assert.Equal(t, "No votes", r.Interpretation)

	r = Quality([]Vote{{AgentID: "a", Abstained: true}})
	assert.Zero(t, r.Overall)
}

func TestQualityAlignedHighConviction(t *testing.T) {
	reasoning := "Deep analysis of the trend and support levels shows a clear opportunity because risk is contained near resistance. " +
		"Momentum indicator readings confirm the breakout thesis across timeframes."
	votes := []Vote{
		{AgentID: "a", Action: decision.ActionBuy, Symbol: "AAPL", Confidence: 90, Weight: 2, Reasoning: reasoning, Seq: 1},
		{AgentID: "b", Action: decision.ActionBuy, Symbol: "AAPL", Confidence: 85, Weight: 1.5, Reasoning: reasoning, Seq: 2},
		{AgentID: "c", Action: decision.ActionBuy, Symbol: "AAPL", Confidence: 80, Weight: 1, Reasoning: reasoning, Seq: 3},
	}

	r := Quality(votes)

	assert.Equal(t, 100.0, r.TopPerformerAgreement)
	assert.Equal(t, 100.0, r.SymbolAgreement)
	assert.Greater(t, r.Conviction, 80.0)
	assert.Greater(t, r.ReasoningQuality, 80.0)
	assert.GreaterOrEqual(t, r.Overall, 80.0)
	assert.True(t, strings.HasPrefix(r.Interpretation, "Excellent"))
}

func TestQualitySplitLowConviction(t *testing.T) {
	votes := []Vote{
		{AgentID: "a", Action: decision.ActionBuy, Symbol: "AAPL", Confidence: 20, Weight: 1, Reasoning: "", Seq: 1},
		{AgentID: "b", Action: decision.ActionSell, Symbol: "TSLA", Confidence: 25, Weight: 1, Reasoning: "no", Seq: 2},
		{AgentID: "c", Action: decision.ActionHold, Symbol: "", Confidence: 10, Weight: 1, Reasoning: "", Seq: 3},
	}

	r := Quality(votes)

	assert.InDelta(t, 33.33, r.TopPerformerAgreement, 0.1)
	assert.InDelta(t, 50.0, r.SymbolAgreement, 0.001)
	assert.Less(t, r.Conviction, 30.0)
	assert.Less(t, r.Overall, 40.0)
	assert.True(t, strings.HasPrefix(r.Interpretation, "Low"))
}

func TestQualitySymbolAgreementWithoutSymbols(t *testing.T) {
	votes := []Vote{
		{AgentID: "a", Action: decision.ActionHold, Confidence: 70, Weight: 1, Seq: 1},
		{AgentID: "b", Action: decision.ActionHold, Confidence: 60, Weight: 1, Seq: 2},
	}

	r := Quality(votes)
	assert.Equal(t, 100.0, r.SymbolAgreement, "no symbols at all reads as full agreement")
}

func TestQualityTopPerformerAgreementUsesWeight(t *testing.T) {
	// The three heaviest voters all say BUY; the two light dissenters do
	// not dilute the top-performer metric.
	votes := []Vote{
		{AgentID: "a", Action: decision.ActionBuy, Confidence: 70, Weight: 3.0, Seq: 1},
		{AgentID: "b", Action: decision.ActionBuy, Confidence: 70, Weight: 2.5, Seq: 2},
		{AgentID: "c", Action: decision.ActionBuy, Confidence: 70, Weight: 2.0, Seq: 3},
		{AgentID: "d", Action: decision.ActionSell, Confidence: 70, Weight: 0.5, Seq: 4},
		{AgentID: "e", Action: decision.ActionSell, Confidence: 70, Weight: 0.5, Seq: 5},
	}

	r := Quality(votes)
	assert.Equal(t, 100.0, r.TopPerformerAgreement)
}

func TestQualityReasoningScoring(t *testing.T) {
	// 200+ characters and all eight keywords max the reasoning score.
	full := strings.Repeat("x", 200) +
		" because analysis indicator risk opportunity trend support resistance"
	votes := []Vote{
		{AgentID: "a", Action: decision.ActionBuy, Confidence: 50, Weight: 1, Reasoning: full, Seq: 1},
	}
	assert.Equal(t, 100.0, Quality(votes).ReasoningQuality)

	// Empty reasoning scores zero.
	votes[0].Reasoning = ""
	assert.Equal(t, 0.0, Quality(votes).ReasoningQuality)
}
