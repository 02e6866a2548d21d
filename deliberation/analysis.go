package deliberation

import (
	"github.com/BaSui01/tradecrew/decision"
)

// DiscussionAnalysis summarizes the dynamics of a session's message
// history for reporting layers.
type DiscussionAnalysis struct {
	TotalMessages int                          `json:"total_messages"`
	MessageTypes  map[decision.MessageType]int `json:"message_types"`
	Agreements    int                          `json:"agreements"`
	Rebuttals     int                          `json:"rebuttals"`
	// CollaborationScore is the share of agreements among interactive
	// messages (agreements plus rebuttals), 0-100. With no interactive
	// messages it reads a neutral 50.
	CollaborationScore float64                 `json:"collaboration_score"`
	ProposedActions    map[decision.Action]int `json:"proposed_actions"`
	MostActiveAgent    string                  `json:"most_active_agent,omitempty"`
}

// hasStance reports whether a record states an actual position rather
// than the no-signal default.
func hasStance(rec decision.Record) bool {
	return rec.Confidence > 0 || rec.Action != decision.ActionHold
}

// AnalyzeDiscussion computes the discussion metrics over a message
// history. It is deterministic: ties for most active agent resolve to the
// earliest contributor.
func AnalyzeDiscussion(messages []Message) DiscussionAnalysis {
	a := DiscussionAnalysis{
		TotalMessages:   len(messages),
		MessageTypes:    make(map[decision.MessageType]int),
		ProposedActions: make(map[decision.Action]int),
	}
	if len(messages) == 0 {
		a.CollaborationScore = 50
		return a
	}

	activity := make(map[string]int)
	var mostActive string
	bestCount := 0

	for _, m := range messages {
		if m.Record.MessageType != "" {
			a.MessageTypes[m.Record.MessageType]++
		}
		if hasStance(m.Record) {
			a.ProposedActions[m.Record.Action]++
		}

		activity[m.AgentName]++
		if activity[m.AgentName] > bestCount {
			bestCount = activity[m.AgentName]
			mostActive = m.AgentName
		}
	}

	a.Agreements = a.MessageTypes[decision.MessageAgreement]
	a.Rebuttals = a.MessageTypes[decision.MessageRebuttal]
	a.MostActiveAgent = mostActive

	interactive := a.Agreements + a.Rebuttals
	if interactive > 0 {
		a.CollaborationScore = float64(a.Agreements) / float64(interactive) * 100
	} else {
		a.CollaborationScore = 50
	}
	return a
}
