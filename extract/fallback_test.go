package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/tradecrew/decision"
)

func TestFallbackVoteExtraction(t *testing.T) {
	f := NewFallback(nil)

	tests := []struct {
		name       string
		text       string
		action     decision.Action
		symbol     string
		confidence int
	}{
		{
			name:       "explicit buy with confidence",
			text:       "I recommend we buy AAPL here, confidence 85% based on the breakout.",
			action:     decision.ActionBuy,
			symbol:     "AAPL",
			confidence: 85,
		},
		{
			name:       "strong sell",
			text:       "Strong sell. TSLA looks overvalued and momentum is breaking down at 72%.",
			action:     decision.ActionSell,
			symbol:     "TSLA",
			confidence: 72,
		},
		{
			name:       "hold without percent gets density confidence",
			text:       "Hold for now, wait for the next earnings report.",
			action:     decision.ActionHold,
			symbol:     "",
			confidence: 55,
		},
		{
			name:       "no signal defaults to hold zero",
			text:       "The weather in London is pleasant today.",
			action:     decision.ActionHold,
			symbol:     "",
			confidence: 0,
		},
		{
			name:       "empty input",
			text:       "",
			action:     decision.ActionHold,
			symbol:     "",
			confidence: 0,
		},
		{
			name:       "conflicting equal evidence stays neutral",
			text:       "Some say buy, others say sell.",
			action:     decision.ActionHold,
			symbol:     "",
			confidence: 0,
		},
		{
			name:       "crypto pair ticker",
			text:       "Going long BTCUSDT, bullish structure, 60% conviction.",
			action:     decision.ActionBuy,
			symbol:     "BTCUSDT",
			confidence: 60,
		},
		{
			name:       "stopwords are not tickers",
			text:       "SELL NOW, the FED and CPI data are against us.",
			action:     decision.ActionSell,
			symbol:     "",
			confidence: 45,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.Extract(context.Background(), Request{
				Kind:    decision.KindVote,
				AgentID: "agent-1",
				Text:    tt.text,
			})

			assert.Equal(t, tt.action, rec.Action)
			assert.Equal(t, tt.symbol, rec.Symbol)
			assert.Equal(t, tt.confidence, rec.Confidence)
			assert.Equal(t, decision.SourceFallback, rec.Source)
			assert.False(t, rec.FromCache)
			assert.Empty(t, rec.MessageType, "vote records carry no discussion fields")
		})
	}
}

func TestFallbackDiscussionExtraction(t *testing.T) {
	f := NewFallback(nil)

	tests := []struct {
		name        string
		text        string
		messageType decision.MessageType
		sentiment   decision.Sentiment
		mentions    []string
	}{
		{
			name:        "agreement with mention",
			text:        "I agree with @momentum, the setup is bullish.",
			messageType: decision.MessageAgreement,
			sentiment:   decision.SentimentBullish,
			mentions:    []string{"momentum"},
		},
		{
			name:        "rebuttal",
			text:        "I disagree, that thesis is flawed. Downside risk dominates.",
			messageType: decision.MessageRebuttal,
			sentiment:   decision.SentimentBearish,
		},
		{
			name:        "compromise",
			text:        "Perhaps a middle ground: half position now, half after earnings.",
			messageType: decision.MessageCompromise,
			sentiment:   decision.SentimentNeutral,
		},
		{
			name:        "question",
			text:        "What is your stop level?",
			messageType: decision.MessageQuestion,
			sentiment:   decision.SentimentNeutral,
		},
		{
			name:        "plain statement is a position",
			text:        "My thesis: accumulate on dips while the trend is intact.",
			messageType: decision.MessagePosition,
			sentiment:   decision.SentimentBullish,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.Extract(context.Background(), Request{
				Kind:    decision.KindDiscussion,
				AgentID: "agent-1",
				Text:    tt.text,
			})

			assert.Equal(t, tt.messageType, rec.MessageType)
			assert.Equal(t, tt.sentiment, rec.Sentiment)
			assert.Equal(t, tt.mentions, rec.MentionedAgents)
			assert.Equal(t, decision.SourceFallback, rec.Source)
		})
	}
}

func TestFallbackKeyPoints(t *testing.T) {
	f := NewFallback(nil)

	text := "The chart looks constructive. I would buy under 150 with 70% conviction. " +
		"Unrelated small talk here. Support held twice, which is bullish. " +
		"Momentum is turning up too, another buy signal. Final filler sentence."

	rec := f.Extract(context.Background(), Request{
		Kind:    decision.KindDiscussion,
		AgentID: "agent-1",
		Text:    text,
	})

	require.NotEmpty(t, rec.KeyPoints)
	assert.LessOrEqual(t, len(rec.KeyPoints), 3)
	assert.Contains(t, rec.KeyPoints[0], "buy under 150")
	for _, p := range rec.KeyPoints {
		assert.NotContains(t, p, "small talk")
		assert.LessOrEqual(t, len([]rune(p)), 200)
	}
}

func TestFallbackMediationExtraction(t *testing.T) {
	f := NewFallback(nil)

	rec := f.Extract(context.Background(), Request{
		Kind:    decision.KindMediation,
		AgentID: "mediator",
		Text:    "Final ruling: buy NVDA with a reduced size, 65% confidence.",
	})

	assert.Equal(t, decision.ActionBuy, rec.Action)
	assert.Equal(t, "NVDA", rec.Symbol)
	assert.Equal(t, 65, rec.Confidence)
	assert.Empty(t, rec.MessageType)
	assert.Empty(t, rec.MentionedAgents)
}

func TestFallbackDeterministic(t *testing.T) {
	f := NewFallback(nil)
	req := Request{
		Kind:    decision.KindDiscussion,
		AgentID: "agent-1",
		Text:    "I agree with @value, buy MSFT at 80% confidence. Breakout confirmed!",
	}

	first := f.Extract(context.Background(), req)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, f.Extract(context.Background(), req))
	}
}
