package strategy

import "SignalSentinel/internal/model"

// DepthAnalyzer turns bid/ask volume skew into a signal.
type DepthAnalyzer struct {
	Threshold float64 // percent
	Levels    int
}

// DefaultDepthAnalyzer reads the top 20 levels with a 5% threshold.
func DefaultDepthAnalyzer() DepthAnalyzer {
	return DepthAnalyzer{Threshold: 5.0, Levels: 20}
}

// Evaluate returns the signal and the bid-over-ask percentage imbalance.
func (a DepthAnalyzer) Evaluate(depth *model.MarketDepth) (model.Signal, float64) {
	if depth == nil || len(depth.Bids) == 0 || len(depth.Asks) == 0 {
		return model.SignalHold, 0
	}
	bidVolume := sumVolume(depth.Bids, a.Levels)
	askVolume := sumVolume(depth.Asks, a.Levels)
	if askVolume == 0 {
		return model.SignalHold, 0
	}

	pct := (bidVolume - askVolume) / askVolume * 100
	switch {
	case pct > a.Threshold:
		return model.SignalBuy, pct
	case pct < -a.Threshold:
		return model.SignalSell, pct
	default:
		return model.SignalHold, pct
	}
}

func sumVolume(levels []model.DepthLevel, limit int) float64 {
	if limit > 0 && len(levels) > limit {
		levels = levels[:limit]
	}
	var total float64
	for _, l := range levels {
		total += l.Volume
	}
	return total
}
