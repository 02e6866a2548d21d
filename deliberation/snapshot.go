package deliberation

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/tradecrew/decision"
)

// Snapshot is a deep, read-only copy of session state for reporting
// layers and for the mediator. Mutating a snapshot never touches the
// session.
type Snapshot struct {
	ID              string             `json:"id"`
	Symbol          string             `json:"symbol,omitempty"`
	AssetClass      string             `json:"asset_class,omitempty"`
	Status          Status             `json:"status"`
	Round           int                `json:"round"`
	Participants    []Participant      `json:"participants"`
	Messages        []Message          `json:"messages,omitempty"`
	Votes           []Vote             `json:"votes,omitempty"`
	ConsensusScore  float64            `json:"consensus_score"`
	Tally           *Tally             `json:"tally,omitempty"`
	Final           *Decision          `json:"final_decision,omitempty"`
	MediatorInvoked bool               `json:"mediator_invoked"`
	FailReason      string             `json:"fail_reason,omitempty"`
	Quality         QualityReport      `json:"quality"`
	Analysis        DiscussionAnalysis `json:"discussion_analysis"`
	StartedAt       time.Time          `json:"started_at"`
	EndedAt         *time.Time         `json:"ended_at,omitempty"`
}

// Duration is the session's elapsed time: final for terminal sessions,
// running time otherwise.
func (s Snapshot) Duration() time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// Snapshot returns the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:              s.id,
		Symbol:          s.symbol,
		AssetClass:      s.assetClass,
		Status:          s.status,
		Round:           s.round,
		Participants:    append([]Participant(nil), s.participants...),
		ConsensusScore:  s.consensus,
		MediatorInvoked: s.mediatorInvoked,
		FailReason:      s.failReason,
		StartedAt:       s.startedAt,
	}

	if len(s.messages) > 0 {
		snap.Messages = make([]Message, len(s.messages))
		for i, m := range s.messages {
			m.Record = m.Record.Clone()
			snap.Messages[i] = m
		}
	}
	snap.Votes = s.voteSliceLocked()

	if s.tally != nil {
		t := *s.tally
		t.Scores = make(map[decision.Action]float64, len(s.tally.Scores))
		for action, score := range s.tally.Scores {
			t.Scores[action] = score
		}
		snap.Tally = &t
	}
	if s.final != nil {
		d := *s.final
		snap.Final = &d
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		snap.EndedAt = &ended
	}

	snap.Quality = Quality(snap.Votes)
	snap.Analysis = AnalyzeDiscussion(snap.Messages)
	return snap
}

// MediationBrief assembles the standard context a mediator needs: the
// full discussion transcript and the vote table.
func (snap Snapshot) MediationBrief() string {
	var b strings.Builder
	b.WriteString("A trading deliberation has failed to reach consensus and requires arbitration.\n\n")
	if snap.Symbol != "" {
		fmt.Fprintf(&b, "TARGET: %s", snap.Symbol)
		if snap.AssetClass != "" {
			fmt.Fprintf(&b, " (%s)", snap.AssetClass)
		}
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "CONSENSUS SCORE: %.1f\n\n", snap.ConsensusScore)
	b.WriteString("FULL DISCUSSION:\n")
	b.WriteString(FormatDiscussion(snap.Messages, "Mediator", 0))
	b.WriteString("\n\n")
	b.WriteString("VOTING RESULTS:\n")
	b.WriteString(FormatVoteSummary(snap.Votes))
	b.WriteString("\n\nAnalyze the arguments and make the final decision: BUY, SELL or HOLD, with the symbol if applicable, and clear reasoning.")
	return b.String()
}
