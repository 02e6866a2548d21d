package deliberation

import (
	"math"
	"sort"
	"strings"

	"github.com/BaSui01/tradecrew/decision"
)

// QualityReport grades a vote table across four criteria. It is a
// diagnostic attached to session snapshots, not an input to the consensus
// rule.
type QualityReport struct {
	// Overall is the weighted combination of the four criteria, 0-100.
	Overall float64 `json:"overall_quality"`
	// Conviction is the weight-averaged confidence of the votes.
	Conviction float64 `json:"conviction_score"`
	// TopPerformerAgreement measures alignment among the three
	// highest-weighted voters.
	TopPerformerAgreement float64 `json:"top_performer_agreement"`
	// ReasoningQuality scores the substance of the stated reasoning.
	ReasoningQuality float64 `json:"reasoning_quality"`
	// SymbolAgreement measures how many symbol-carrying votes name the
	// most popular symbol. With no symbols at all it reads 100.
	SymbolAgreement float64 `json:"symbol_agreement"`
	// Interpretation is a one-line reading of Overall.
	Interpretation string `json:"interpretation"`
}

var reasoningKeywords = []string{
	"because", "analysis", "indicator", "risk",
	"opportunity", "trend", "support", "resistance",
}

// Quality grades the effective (non-abstaining) votes. An empty table
// scores zero.
func Quality(votes []Vote) QualityReport {
	effective := make([]Vote, 0, len(votes))
	for _, v := range votes {
		if !v.Abstained {
			effective = append(effective, v)
		}
	}
	if len(effective) == 0 {
		return QualityReport{Interpretation: "No votes"}
	}

	r := QualityReport{
		Conviction:            conviction(effective),
		TopPerformerAgreement: topPerformerAgreement(effective),
		ReasoningQuality:      reasoningQuality(effective),
		SymbolAgreement:       symbolAgreement(effective),
	}
	r.Overall = math.Round((r.Conviction*0.30+
		r.TopPerformerAgreement*0.30+
		r.ReasoningQuality*0.20+
		r.SymbolAgreement*0.20)*10) / 10
	r.Interpretation = interpretQuality(r.Overall)
	return r
}

func conviction(votes []Vote) float64 {
	var confSum, weightSum float64
	for _, v := range votes {
		confSum += float64(v.Confidence) * v.Weight
		weightSum += v.Weight
	}
	if weightSum <= 0 {
		return 50
	}
	return math.Min(100, confSum/weightSum)
}

// topPerformerAgreement checks whether the highest-weighted voters point
// the same way: the share of the top three (by weight) backing their most
// common action.
func topPerformerAgreement(votes []Vote) float64 {
	sorted := make([]Vote, len(votes))
	copy(sorted, votes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })

	top := sorted
	if len(top) > 3 {
		top = top[:3]
	}

	counts := make(map[decision.Action]int)
	bestCount := 0
	for _, v := range top {
		counts[v.Action]++
		if counts[v.Action] > bestCount {
			bestCount = counts[v.Action]
		}
	}
	return float64(bestCount) / float64(len(top)) * 100
}

// reasoningQuality scores each vote's reasoning by length (200+ bytes is
// full marks) and by trading-vocabulary keywords, then averages.
func reasoningQuality(votes []Vote) float64 {
	var sum float64
	for _, v := range votes {
		lengthScore := math.Min(100, float64(len(v.Reasoning))/2)
		keywordScore := 0.0
		lower := strings.ToLower(v.Reasoning)
		for _, kw := range reasoningKeywords {
			if strings.Contains(lower, kw) {
				keywordScore += 12.5
			}
		}
		sum += math.Min(100, (lengthScore+keywordScore)/2)
	}
	return sum / float64(len(votes))
}

func symbolAgreement(votes []Vote) float64 {
	counts := make(map[string]int)
	withSymbol := 0
	for _, v := range votes {
		if v.Symbol == "" {
			continue
		}
		counts[v.Symbol]++
		withSymbol++
	}
	if withSymbol == 0 {
		return 100
	}
	mostPopular := 0
	for _, n := range counts {
		if n > mostPopular {
			mostPopular = n
		}
	}
	return float64(mostPopular) / float64(withSymbol) * 100
}

func interpretQuality(overall float64) string {
	switch {
	case overall >= 80:
		return "Excellent decision quality - high conviction and alignment"
	case overall >= 60:
		return "Good decision quality - reasonable confidence"
	case overall >= 40:
		return "Moderate decision quality - proceed with caution"
	default:
		return "Low decision quality - consider HOLD or more analysis"
	}
}
