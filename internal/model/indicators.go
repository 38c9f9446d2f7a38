package model

import "math"

// IndicatorFrame is a bar series plus derived columns aligned by index.
// Columns hold NaN until their warm-up window is filled.
type IndicatorFrame struct {
	Bars       []OHLCV
	EMA5       []float64
	EMA13      []float64
	EMA50      []float64
	EMA200     []float64
	MACD       []float64
	MACDSignal []float64
	RSI        []float64
	BBUpper    []float64
	BBMiddle   []float64
	BBLower    []float64
	ATR        []float64
}

// Len returns the number of bars in the frame.
func (f *IndicatorFrame) Len() int { return len(f.Bars) }

// Last returns the value of col at the latest bar, or NaN for an empty column.
func Last(col []float64) float64 {
	return At(col, len(col)-1)
}

// At returns col[i], or NaN when i is out of range.
func At(col []float64, i int) float64 {
	if i < 0 || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}
