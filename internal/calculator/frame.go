package calculator

import (
	"math"

	"SignalSentinel/internal/model"
)

// Indicator windows.
const (
	MACDFast       = 12
	MACDSlow       = 26
	MACDSignalSpan = 9
	RSIPeriod      = 14
	BollingerSpan  = 20
	BollingerWidth = 2.0
	ATRPeriod      = 14
)

// CalculateMACD returns the MACD line (fast EMA minus slow EMA) and its
// signal line.
func CalculateMACD(closes []float64, fast, slow, signal int) (line, sig []float64) {
	fastEMA := CalculateEMA(closes, fast)
	slowEMA := CalculateEMA(closes, slow)
	line = nanSeries(len(closes))
	for i := range closes {
		if math.IsNaN(fastEMA[i]) || math.IsNaN(slowEMA[i]) {
			continue
		}
		line[i] = fastEMA[i] - slowEMA[i]
	}
	return line, CalculateEMA(line, signal)
}

// ComputeFrame derives every indicator column from bars.
func ComputeFrame(bars []model.OHLCV) *model.IndicatorFrame {
	closes := model.Closes(bars)
	f := &model.IndicatorFrame{
		Bars:   bars,
		EMA5:   CalculateEMA(closes, 5),
		EMA13:  CalculateEMA(closes, 13),
		EMA50:  CalculateEMA(closes, 50),
		EMA200: CalculateEMA(closes, 200),
		RSI:    CalculateRSI(closes, RSIPeriod),
		ATR:    CalculateATR(bars, ATRPeriod),
	}
	f.MACD, f.MACDSignal = CalculateMACD(closes, MACDFast, MACDSlow, MACDSignalSpan)
	f.BBUpper, f.BBMiddle, f.BBLower = CalculateBollinger(closes, BollingerSpan, BollingerWidth)
	return f
}
