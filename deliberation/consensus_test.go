package deliberation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/tradecrew/decision"
)

func vote(agent string, action decision.Action, symbol string, weight float64, seq int) Vote {
	return Vote{
		AgentID:    agent,
		AgentName:  agent,
		Action:     action,
		Symbol:     symbol,
		Confidence: 75,
		Weight:     weight,
		Seq:        seq,
	}
}

func TestResolveWeightedPlurality(t *testing.T) {
	// BUY carries 3+1 of 5 total weight: consensus score 80.
	votes := []Vote{
		vote("a", decision.ActionBuy, "AAPL", 3, 1),
		vote("b", decision.ActionSell, "AAPL", 1, 2),
		vote("c", decision.ActionBuy, "AAPL", 1, 3),
	}

	tally := Resolve(votes)

	assert.Equal(t, decision.ActionBuy, tally.Winner)
	assert.InDelta(t, 80.0, tally.Score, 0.001)
	assert.Equal(t, "AAPL", tally.Symbol)
	assert.Equal(t, 5.0, tally.TotalWeight)
	assert.Equal(t, 3, tally.Votes)
	assert.Equal(t, 0, tally.Abstained)
	assert.Equal(t, 4.0, tally.Scores[decision.ActionBuy])
	assert.Equal(t, 1.0, tally.Scores[decision.ActionSell])
}

func TestResolveEvenSplit(t *testing.T) {
	// 50/50 by weight: the winner still resolves (risk-averse order) but
	// the score stays at 50.
	votes := []Vote{
		vote("a", decision.ActionBuy, "AAPL", 2, 1),
		vote("b", decision.ActionSell, "AAPL", 2, 2),
	}

	tally := Resolve(votes)

	assert.Equal(t, decision.ActionSell, tally.Winner, "equal totals prefer SELL")
	assert.InDelta(t, 50.0, tally.Score, 0.001)
}

func TestResolveTieBreakOrder(t *testing.T) {
	tests := []struct {
		name   string
		votes  []Vote
		winner decision.Action
	}{
		{
			name: "sell beats buy",
			votes: []Vote{
				vote("a", decision.ActionBuy, "", 1, 1),
				vote("b", decision.ActionSell, "", 1, 2),
			},
			winner: decision.ActionSell,
		},
		{
			name: "sell beats hold",
			votes: []Vote{
				vote("a", decision.ActionHold, "", 1, 1),
				vote("b", decision.ActionSell, "", 1, 2),
			},
			winner: decision.ActionSell,
		},
		{
			name: "buy beats hold",
			votes: []Vote{
				vote("a", decision.ActionHold, "", 1, 1),
				vote("b", decision.ActionBuy, "", 1, 2),
			},
			winner: decision.ActionBuy,
		},
		{
			name: "three way tie picks sell",
			votes: []Vote{
				vote("a", decision.ActionBuy, "", 1, 1),
				vote("b", decision.ActionSell, "", 1, 2),
				vote("c", decision.ActionHold, "", 1, 3),
			},
			winner: decision.ActionSell,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.winner, Resolve(tt.votes).Winner)
		})
	}
}

func TestResolveSymbolByWeight(t *testing.T) {
	votes := []Vote{
		vote("a", decision.ActionBuy, "AAPL", 1, 1),
		vote("b", decision.ActionBuy, "MSFT", 2, 2),
		vote("c", decision.ActionBuy, "AAPL", 0.5, 3),
	}

	tally := Resolve(votes)
	assert.Equal(t, "MSFT", tally.Symbol, "symbol with the most backing weight wins")
}

func TestResolveSymbolTieBreaks(t *testing.T) {
	t.Run("tied symbols resolve to highest weighted voter", func(t *testing.T) {
		votes := []Vote{
			vote("a", decision.ActionBuy, "AAPL", 1.5, 1),
			vote("b", decision.ActionBuy, "MSFT", 2.0, 2),
			vote("c", decision.ActionBuy, "AAPL", 0.5, 3),
		}
		// AAPL and MSFT both total 2.0; b is the single heaviest backer.
		assert.Equal(t, "MSFT", Resolve(votes).Symbol)
	})

	t.Run("equal voters resolve to earliest submission", func(t *testing.T) {
		votes := []Vote{
			vote("a", decision.ActionBuy, "MSFT", 1, 1),
			vote("b", decision.ActionBuy, "AAPL", 1, 2),
		}
		assert.Equal(t, "MSFT", Resolve(votes).Symbol)
	})

	t.Run("losing action symbols are ignored", func(t *testing.T) {
		votes := []Vote{
			vote("a", decision.ActionBuy, "AAPL", 3, 1),
			vote("b", decision.ActionSell, "TSLA", 1, 2),
		}
		assert.Equal(t, "AAPL", Resolve(votes).Symbol)
	})

	t.Run("no symbol among winners", func(t *testing.T) {
		votes := []Vote{
			vote("a", decision.ActionHold, "", 2, 1),
			vote("b", decision.ActionBuy, "AAPL", 1, 2),
		}
		tally := Resolve(votes)
		assert.Equal(t, decision.ActionHold, tally.Winner)
		assert.Empty(t, tally.Symbol)
	})
}

func TestResolveAbstentions(t *testing.T) {
	votes := []Vote{
		vote("a", decision.ActionBuy, "AAPL", 2, 1),
		{AgentID: "b", AgentName: "b", Abstained: true, Seq: 2},
		vote("c", decision.ActionBuy, "AAPL", 1, 3),
	}

	tally := Resolve(votes)

	assert.Equal(t, 2, tally.Votes)
	assert.Equal(t, 1, tally.Abstained)
	assert.Equal(t, 3.0, tally.TotalWeight, "abstentions carry no weight")
	assert.InDelta(t, 100.0, tally.Score, 0.001, "abstainers are out of the denominator")
}

func TestResolveNoVotes(t *testing.T) {
	assert.Equal(t, 0, Resolve(nil).Votes)

	tally := Resolve([]Vote{{AgentID: "a", Abstained: true, Seq: 1}})
	assert.Equal(t, 0, tally.Votes)
	assert.Equal(t, 1, tally.Abstained)
	assert.Empty(t, tally.Winner)
	assert.Zero(t, tally.Score)
}

func TestSynthesize(t *testing.T) {
	votes := []Vote{
		{AgentID: "a", Action: decision.ActionBuy, Symbol: "AAPL", Confidence: 90, Weight: 3, Seq: 1},
		{AgentID: "b", Action: decision.ActionSell, Symbol: "AAPL", Confidence: 40, Weight: 1, Seq: 2},
		{AgentID: "c", Action: decision.ActionBuy, Symbol: "AAPL", Confidence: 60, Weight: 1, Seq: 3},
	}
	tally := Resolve(votes)
	require.Equal(t, decision.ActionBuy, tally.Winner)

	d := synthesize(tally, votes, "")

	assert.Equal(t, decision.ActionBuy, d.Action)
	assert.Equal(t, "AAPL", d.Symbol)
	// Weighted mean of the winning votes: (90*3 + 60*1) / 4 = 82.5 -> 83.
	assert.Equal(t, 83, d.Confidence)
	assert.Contains(t, d.Reasoning, "BUY")
	assert.Contains(t, d.Reasoning, "AAPL")
	assert.Contains(t, d.Reasoning, "80.0%")
	assert.False(t, d.Mediated)
}

func TestSynthesizeSessionSymbolFallback(t *testing.T) {
	votes := []Vote{
		{AgentID: "a", Action: decision.ActionHold, Confidence: 70, Weight: 1, Seq: 1},
		{AgentID: "b", Action: decision.ActionHold, Confidence: 50, Weight: 1, Seq: 2},
	}
	tally := Resolve(votes)
	require.Empty(t, tally.Symbol)

	d := synthesize(tally, votes, "TSLA")
	assert.Equal(t, "TSLA", d.Symbol)
	assert.Contains(t, d.Reasoning, "HOLD (TSLA)")

	d = synthesize(tally, votes, "")
	assert.Empty(t, d.Symbol)
	assert.Contains(t, d.Reasoning, "HOLD (no symbol)")
}
