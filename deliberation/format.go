package deliberation

import (
	"fmt"
	"sort"
	"strings"
)

// FormatDiscussion renders the message history for presentation to one
// agent, grouped by round. Messages mentioning the viewer are flagged
// [@YOU]. throughRound limits output to rounds up to that number; zero or
// negative means the full history.
func FormatDiscussion(messages []Message, viewer string, throughRound int) string {
	var relevant []Message
	for _, m := range messages {
		if throughRound > 0 && m.Round > throughRound {
			continue
		}
		relevant = append(relevant, m)
	}
	if len(relevant) == 0 {
		return "No discussion yet."
	}

	byRound := make(map[int][]Message)
	var rounds []int
	for _, m := range relevant {
		if _, seen := byRound[m.Round]; !seen {
			rounds = append(rounds, m.Round)
		}
		byRound[m.Round] = append(byRound[m.Round], m)
	}
	sort.Ints(rounds)

	var b strings.Builder
	for _, r := range rounds {
		fmt.Fprintf(&b, "\n=== ROUND %d ===\n\n", r)

		msgs := byRound[r]
		sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Seq < msgs[j].Seq })

		for _, m := range msgs {
			mentionFlag := ""
			for _, mentioned := range m.Record.MentionedAgents {
				if mentioned == viewer {
					mentionFlag = " [@YOU]"
					break
				}
			}

			actionInfo := ""
			if hasStance(m.Record) {
				if m.Record.Symbol != "" {
					actionInfo = fmt.Sprintf(" [Proposes: %s %s - %d%% confidence]",
						m.Record.Action, m.Record.Symbol, m.Record.Confidence)
				} else {
					actionInfo = fmt.Sprintf(" [Proposes: %s - %d%% confidence]",
						m.Record.Action, m.Record.Confidence)
				}
			}

			fmt.Fprintf(&b, "[%s] %s%s%s:\n%s\n\n",
				m.Record.MessageType, m.AgentName, mentionFlag, actionInfo, m.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatVoteSummary renders the vote table for display or for the
// mediator prompt, highest weight first.
func FormatVoteSummary(votes []Vote) string {
	if len(votes) == 0 {
		return "No votes cast yet."
	}

	sorted := make([]Vote, len(votes))
	copy(sorted, votes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Weight != sorted[j].Weight {
			return sorted[i].Weight > sorted[j].Weight
		}
		return sorted[i].Seq < sorted[j].Seq
	})

	lines := []string{"=== VOTE SUMMARY ==="}
	for _, v := range sorted {
		if v.Abstained {
			lines = append(lines, fmt.Sprintf("%s: ABSTAINED", v.AgentName))
			continue
		}
		target := v.Symbol
		if target == "" {
			target = "-"
		}
		lines = append(lines, fmt.Sprintf("%s: %s %s (weight: %.2f, confidence: %d%%)",
			v.AgentName, v.Action, target, v.Weight, v.Confidence))
	}
	return strings.Join(lines, "\n")
}
