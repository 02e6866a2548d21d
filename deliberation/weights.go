package deliberation

import "math"

// Performance is an agent's track record, supplied by the host
// application's accounting layer.
type Performance struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	TotalPnLPct   float64 `json:"total_pnl_percent"`
}

const minTrackRecord = 5

// WeightFromPerformance maps a track record to a vote weight in
// [0.5, 2.0]. Win rate carries half the influence, risk-adjusted return
// (Sharpe) 30% and cumulative P&L 20%. Agents with fewer than five trades
// get the neutral weight 1.0.
func WeightFromPerformance(p Performance) float64 {
	if p.TotalTrades < minTrackRecord {
		return 1.0
	}

	winRate := float64(p.WinningTrades) / math.Max(float64(p.TotalTrades), 1)

	// Win rate: 40% maps to 0.5x, 50% to 0.75x, 100% to 2.0x.
	winRateFactor := clamp(0.5+(winRate-0.4)*2.5, 0.5, 2.0)

	// Sharpe: 0 maps to 1.0x, 1.0 to 1.3x, 2.0 and above to 1.5x.
	sharpeFactor := 1.0 + math.Min(p.SharpeRatio*0.3, 0.5)

	// P&L percent: -20% maps to 0.7x, 0% to 1.0x, +20% to 1.3x.
	pnlFactor := clamp(1.0+(p.TotalPnLPct/100.0)*1.5, 0.5, 1.5)

	weight := winRateFactor*0.5 + sharpeFactor*0.3 + pnlFactor*0.2
	return clamp(weight, 0.5, 2.0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
