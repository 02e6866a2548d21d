package extract

import (
	"strings"
	"text/template"

	"github.com/BaSui01/tradecrew/decision"
)

// SystemPrompt is the instruction sent as the system message of every
// extraction completion.
const SystemPrompt = "You are a precise data extraction system for trading decisions. " +
	"Reply with a single JSON object and nothing else."

type promptData struct {
	AgentName string
	Text      string
}

var votePrompt = template.Must(template.New("vote").Parse(`Extract the following information from this agent's vote.

AGENT: {{.AgentName}}
VOTE:
{{.Text}}

Return ONLY a JSON object with these exact fields:
{
  "action": "BUY" | "SELL" | "HOLD",
  "symbol": "TICKER" or null,
  "confidence": 0-100 (number),
  "reasoning": "brief explanation or quote from the vote"
}

Rules:
- symbol is an uppercase ticker (e.g. "AAPL", "BTCUSDT") or null when not specified
- confidence is a number between 0 and 100
- reasoning stays under 200 characters

Return ONLY valid JSON, no markdown and no explanation.`))

var discussionPrompt = template.Must(template.New("discussion").Parse(`Extract information from this agent's discussion message.

AGENT: {{.AgentName}}
MESSAGE:
{{.Text}}

Return ONLY a JSON object:
{
  "action": "BUY" | "SELL" | "HOLD" or null,
  "symbol": "TICKER" or null,
  "confidence": 0-100 or null,
  "message_type": "POSITION" | "REBUTTAL" | "AGREEMENT" | "COMPROMISE" | "QUESTION",
  "sentiment": "BULLISH" | "BEARISH" | "NEUTRAL",
  "mentioned_agents": ["agent1", "agent2"] or [],
  "key_points": ["point1", "point2"]
}

Message type definitions:
- POSITION: initial stance or clear position statement
- REBUTTAL: disagreement or counter-argument
- AGREEMENT: supporting another agent's position
- COMPROMISE: proposing middle ground
- QUESTION: asking for clarification

Return ONLY valid JSON.`))

var mediationPrompt = template.Must(template.New("mediation").Parse(`Extract the mediator's final trading decision.

MEDIATOR: {{.AgentName}}
DECISION:
{{.Text}}

Return ONLY a JSON object:
{
  "action": "BUY" | "SELL" | "HOLD",
  "symbol": "TICKER" or null,
  "confidence": 0-100 (number),
  "reasoning": "brief explanation"
}

Return ONLY valid JSON.`))

// BuildPrompt renders the kind-specific extraction instruction for one
// piece of agent text. The returned strings are the system and user
// messages of the completion.
func BuildPrompt(kind decision.Kind, agentName, text string) (system, user string) {
	tmpl := votePrompt
	switch kind {
	case decision.KindDiscussion:
		tmpl = discussionPrompt
	case decision.KindMediation:
		tmpl = mediationPrompt
	}

	var b strings.Builder
	// Static templates over plain string fields cannot fail to execute.
	_ = tmpl.Execute(&b, promptData{AgentName: agentName, Text: text})
	return SystemPrompt, b.String()
}
