package deliberation

import (
	"fmt"
	"math"

	"github.com/BaSui01/tradecrew/decision"
)

// Vote is one participant's recorded stance. Weight is an externally
// supplied positive number; the session clamps non-positive weights to the
// configured default before a vote reaches the resolver.
type Vote struct {
	AgentID    string          `json:"agent_id"`
	AgentName  string          `json:"agent_name"`
	Action     decision.Action `json:"action"`
	Symbol     string          `json:"symbol,omitempty"`
	Confidence int             `json:"confidence"`
	Reasoning  string          `json:"reasoning,omitempty"`
	Weight     float64         `json:"weight"`
	Abstained  bool            `json:"abstained,omitempty"`
	Seq        int             `json:"seq"`
}

// Tally is the outcome of resolving a vote table.
type Tally struct {
	// Scores holds the weighted total per action, abstentions excluded.
	Scores map[decision.Action]float64 `json:"scores"`
	// TotalWeight is the sum of all non-abstaining vote weights.
	TotalWeight float64 `json:"total_weight"`
	// Winner is the plurality action.
	Winner decision.Action `json:"winner"`
	// Symbol is the resolved target for the winning action, empty when no
	// winning vote named one.
	Symbol string `json:"symbol,omitempty"`
	// Score is the consensus score: the winner's share of TotalWeight as a
	// percentage.
	Score float64 `json:"score"`
	// Votes counts effective (non-abstaining) votes.
	Votes int `json:"votes"`
	// Abstained counts participants who never voted before the deadline.
	Abstained int `json:"abstained"`
}

// tieBreakOrder is the documented tie-break policy: equal weighted totals
// resolve SELL over BUY over HOLD.
var tieBreakOrder = []decision.Action{
	decision.ActionSell,
	decision.ActionBuy,
	decision.ActionHold,
}

// Resolve tallies the vote table into a winner, consensus score and
// resolved symbol. With no effective votes it returns a zero Tally
// (Winner empty, Score 0).
func Resolve(votes []Vote) Tally {
	t := Tally{Scores: make(map[decision.Action]float64)}

	for _, v := range votes {
		if v.Abstained {
			t.Abstained++
			continue
		}
		t.Votes++
		t.TotalWeight += v.Weight
		t.Scores[v.Action] += v.Weight
	}
	if t.Votes == 0 || t.TotalWeight <= 0 {
		return t
	}

	best := math.Inf(-1)
	for _, action := range tieBreakOrder {
		if score := t.Scores[action]; score > best {
			best = score
			t.Winner = action
		}
	}

	t.Score = best / t.TotalWeight * 100
	t.Symbol = resolveSymbol(votes, t.Winner)
	return t
}

// resolveSymbol picks the symbol for the winning action: the one backed by
// the most winning-vote weight. Tied symbols resolve to the one proposed
// by the single highest-weighted voter, then to the earliest submission.
func resolveSymbol(votes []Vote, winner decision.Action) string {
	weightBySymbol := make(map[string]float64)
	var candidates []Vote
	for _, v := range votes {
		if v.Abstained || v.Action != winner || v.Symbol == "" {
			continue
		}
		weightBySymbol[v.Symbol] += v.Weight
		candidates = append(candidates, v)
	}
	if len(weightBySymbol) == 0 {
		return ""
	}

	var top float64
	for _, w := range weightBySymbol {
		if w > top {
			top = w
		}
	}
	tied := make(map[string]bool)
	for sym, w := range weightBySymbol {
		if w == top {
			tied[sym] = true
		}
	}
	if len(tied) == 1 {
		for sym := range tied {
			return sym
		}
	}

	var chosen Vote
	found := false
	for _, v := range candidates {
		if !tied[v.Symbol] {
			continue
		}
		if !found || v.Weight > chosen.Weight || (v.Weight == chosen.Weight && v.Seq < chosen.Seq) {
			chosen = v
			found = true
		}
	}
	return chosen.Symbol
}

// Decision is the final outcome of a session.
type Decision struct {
	Action     decision.Action `json:"action"`
	Symbol     string          `json:"symbol,omitempty"`
	Confidence int             `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
	Mediated   bool            `json:"mediated"`
}

// synthesize turns a consensus tally into the final decision. Confidence
// is the weight-averaged confidence of the winning votes. When no winning
// vote named a symbol the decision targets fallbackSymbol, normally the
// session's own target.
func synthesize(t Tally, votes []Vote, fallbackSymbol string) Decision {
	var confSum, weightSum float64
	supporters := 0
	for _, v := range votes {
		if v.Abstained || v.Action != t.Winner {
			continue
		}
		confSum += float64(v.Confidence) * v.Weight
		weightSum += v.Weight
		supporters++
	}

	confidence := 0
	if weightSum > 0 {
		confidence = int(math.Round(confSum / weightSum))
	}

	symbol := t.Symbol
	if symbol == "" {
		symbol = fallbackSymbol
	}
	target := symbol
	if target == "" {
		target = "no symbol"
	}
	reasoning := fmt.Sprintf(
		"Consensus reached: %s (%s) backed by %.1f%% of vote weight, %d of %d effective votes.",
		t.Winner, target, t.Score, supporters, t.Votes)

	return Decision{
		Action:     t.Winner,
		Symbol:     symbol,
		Confidence: confidence,
		Reasoning:  reasoning,
	}
}
