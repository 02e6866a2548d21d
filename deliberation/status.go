package deliberation

import "fmt"

// Status is the lifecycle phase of a deliberation session.
type Status string

const (
	// StatusDeliberating is the opening phase: agents exchange discussion
	// messages over a bounded number of rounds.
	StatusDeliberating Status = "DELIBERATING"
	// StatusVoting collects one vote per participant.
	StatusVoting Status = "VOTING"
	// StatusMediating means voting ended without consensus and a mediator
	// is arbitrating.
	StatusMediating Status = "MEDIATING"
	// StatusComplete is terminal with a final decision attached.
	StatusComplete Status = "COMPLETE"
	// StatusFailed is terminal without a decision.
	StatusFailed Status = "FAILED"
)

var validTransitions = map[Status][]Status{
	StatusDeliberating: {StatusVoting, StatusFailed},
	StatusVoting:       {StatusComplete, StatusMediating, StatusFailed},
	StatusMediating:    {StatusComplete, StatusFailed},
	StatusComplete:     {},
	StatusFailed:       {},
}

// CanTransition reports whether moving from one status to another is
// legal. Terminal statuses allow no transition at all.
func CanTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// ErrInvalidTransition reports an attempted illegal status change.
type ErrInvalidTransition struct {
	From Status
	To   Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}
