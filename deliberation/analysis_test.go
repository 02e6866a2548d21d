package deliberation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/tradecrew/decision"
)

func discussionMsg(agent string, round, seq int, msgType decision.MessageType, action decision.Action, confidence int) Message {
	return Message{
		ID:        agent,
		AgentID:   agent,
		AgentName: agent,
		Round:     round,
		Seq:       seq,
		Text:      "text",
		Record: decision.Record{
			Action:      action,
			Confidence:  confidence,
			MessageType: msgType,
			Sentiment:   decision.SentimentNeutral,
		},
	}
}

func TestAnalyzeDiscussionEmpty(t *testing.T) {
	a := AnalyzeDiscussion(nil)
	assert.Zero(t, a.TotalMessages)
	assert.Empty(t, a.MostActiveAgent)
	assert.InDelta(t, 50.0, a.CollaborationScore, 0.001)
}

func TestAnalyzeDiscussion(t *testing.T) {
	messages := []Message{
		discussionMsg("alpha", 1, 1, decision.MessagePosition, decision.ActionBuy, 70),
		discussionMsg("beta", 1, 2, decision.MessagePosition, decision.ActionSell, 60),
		discussionMsg("alpha", 2, 3, decision.MessageRebuttal, decision.ActionBuy, 75),
		discussionMsg("beta", 2, 4, decision.MessageAgreement, decision.ActionBuy, 65),
		discussionMsg("alpha", 3, 5, decision.MessageAgreement, decision.ActionBuy, 80),
		discussionMsg("gamma", 3, 6, decision.MessageQuestion, decision.ActionHold, 0),
	}

	a := AnalyzeDiscussion(messages)

	assert.Equal(t, 6, a.TotalMessages)
	assert.Equal(t, 2, a.Agreements)
	assert.Equal(t, 1, a.Rebuttals)
	assert.InDelta(t, 66.66, a.CollaborationScore, 0.1)
	assert.Equal(t, "alpha", a.MostActiveAgent)
	assert.Equal(t, 2, a.MessageTypes[decision.MessagePosition])
	assert.Equal(t, 1, a.MessageTypes[decision.MessageQuestion])
	// The defaulted HOLD with zero confidence states no position.
	assert.Equal(t, 4, a.ProposedActions[decision.ActionBuy])
	assert.Equal(t, 1, a.ProposedActions[decision.ActionSell])
	assert.Zero(t, a.ProposedActions[decision.ActionHold])
}

func TestAnalyzeDiscussionNoInteractiveMessages(t *testing.T) {
	messages := []Message{
		discussionMsg("alpha", 1, 1, decision.MessagePosition, decision.ActionBuy, 70),
		discussionMsg("beta", 1, 2, decision.MessageQuestion, decision.ActionHold, 0),
	}

	a := AnalyzeDiscussion(messages)
	assert.InDelta(t, 50.0, a.CollaborationScore, 0.001, "no agreements or rebuttals reads neutral")
}

func TestAnalyzeDiscussionMostActiveTie(t *testing.T) {
	messages := []Message{
		discussionMsg("beta", 1, 1, decision.MessagePosition, decision.ActionBuy, 70),
		discussionMsg("alpha", 1, 2, decision.MessagePosition, decision.ActionBuy, 70),
		discussionMsg("beta", 2, 3, decision.MessagePosition, decision.ActionBuy, 70),
		discussionMsg("alpha", 2, 4, decision.MessagePosition, decision.ActionBuy, 70),
	}

	assert.Equal(t, "beta", AnalyzeDiscussion(messages).MostActiveAgent,
		"ties resolve to the earliest contributor")
}
