package strategy

import (
	"math"

	"SignalSentinel/internal/model"
)

// Risk sizing constants.
const (
	ATRFallbackRatio    = 0.02
	StopLossATR         = 2.0
	TakeProfitATR       = 3.0
	DefaultRiskFraction = 0.02
)

// RiskLevels are stop-loss and take-profit prices for an entry.
type RiskLevels struct {
	StopLoss   float64
	TakeProfit float64
	ATR        float64
}

// CalculateRiskLevels places stops 2 ATR and targets 3 ATR from entry.
// A missing or non-positive ATR falls back to 2% of the entry price.
func CalculateRiskLevels(entry float64, sig model.Signal, atr float64) RiskLevels {
	if math.IsNaN(atr) || atr <= 0 {
		atr = entry * ATRFallbackRatio
	}
	switch sig {
	case model.SignalBuy:
		return RiskLevels{StopLoss: entry - StopLossATR*atr, TakeProfit: entry + TakeProfitATR*atr, ATR: atr}
	case model.SignalSell:
		return RiskLevels{StopLoss: entry + StopLossATR*atr, TakeProfit: entry - TakeProfitATR*atr, ATR: atr}
	default:
		return RiskLevels{StopLoss: entry, TakeProfit: entry, ATR: atr}
	}
}

// PositionSize returns the units to trade so that hitting the stop loses
// riskFraction of balance. Zero when entry equals the stop.
func PositionSize(balance, entry, stopLoss, riskFraction float64) float64 {
	diff := math.Abs(entry - stopLoss)
	if diff == 0 {
		return 0
	}
	return balance * riskFraction / diff
}
