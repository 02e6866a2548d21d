package deliberation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/tradecrew/decision"
)

func TestMediationBrief(t *testing.T) {
	snap := Snapshot{
		ID:             "s1",
		Symbol:         "AAPL",
		AssetClass:     "stock",
		Status:         StatusMediating,
		ConsensusScore: 50,
		Messages: []Message{
			{
				AgentName: "Alpha",
				Round:     1,
				Seq:       1,
				Text:      "Buy the breakout.",
				Record: decision.Record{
					Action:      decision.ActionBuy,
					Symbol:      "AAPL",
					Confidence:  80,
					MessageType: decision.MessagePosition,
				},
			},
		},
		Votes: []Vote{
			{AgentName: "Alpha", Action: decision.ActionBuy, Symbol: "AAPL", Confidence: 80, Weight: 1, Seq: 2},
			{AgentName: "Beta", Action: decision.ActionSell, Symbol: "AAPL", Confidence: 80, Weight: 1, Seq: 3},
		},
	}

	brief := snap.MediationBrief()

	assert.Contains(t, brief, "requires arbitration")
	assert.Contains(t, brief, "TARGET: AAPL (stock)")
	assert.Contains(t, brief, "CONSENSUS SCORE: 50.0")
	assert.Contains(t, brief, "FULL DISCUSSION:")
	assert.Contains(t, brief, "=== ROUND 1 ===")
	assert.Contains(t, brief, "VOTING RESULTS:")
	assert.Contains(t, brief, "=== VOTE SUMMARY ===")
	assert.Contains(t, brief, "Alpha: BUY AAPL (weight: 1.00, confidence: 80%)")
	assert.Contains(t, brief, "BUY, SELL or HOLD")
}

func TestMediationBriefWithoutSymbol(t *testing.T) {
	snap := Snapshot{ID: "s1", Status: StatusMediating, ConsensusScore: 40}

	brief := snap.MediationBrief()
	assert.NotContains(t, brief, "TARGET:")
	assert.Contains(t, brief, "No discussion yet.")
	assert.Contains(t, brief, "No votes cast yet.")
}

func TestSnapshotDuration(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	end := start.Add(42 * time.Second)

	done := Snapshot{StartedAt: start, EndedAt: &end}
	assert.Equal(t, 42*time.Second, done.Duration())

	running := Snapshot{StartedAt: time.Now().UTC().Add(-time.Minute)}
	assert.GreaterOrEqual(t, running.Duration(), time.Minute)
}
