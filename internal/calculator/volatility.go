package calculator

import (
	"math"

	"SignalSentinel/internal/model"
)

// CalculateBollinger returns upper, middle and lower bands using a rolling
// mean and population standard deviation.
func CalculateBollinger(closes []float64, period int, width float64) (upper, middle, lower []float64) {
	middle = CalculateSMA(closes, period)
	std := CalculateStdDev(closes, period)
	upper = nanSeries(len(closes))
	lower = nanSeries(len(closes))
	for i := range closes {
		if math.IsNaN(middle[i]) || math.IsNaN(std[i]) {
			continue
		}
		upper[i] = middle[i] + width*std[i]
		lower[i] = middle[i] - width*std[i]
	}
	return upper, middle, lower
}

// TrueRange returns the per-bar true range. The first bar has no previous
// close, so its range is high minus low.
func TrueRange(bars []model.OHLCV) []float64 {
	tr := make([]float64, len(bars))
	for i, b := range bars {
		tr[i] = b.High - b.Low
		if i == 0 {
			continue
		}
		prevClose := bars[i-1].Close
		tr[i] = math.Max(tr[i], math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
	}
	return tr
}

// CalculateATR computes Wilder's average true range. The first value, at
// index period-1, is the mean of the first period true ranges.
func CalculateATR(bars []model.OHLCV, period int) []float64 {
	out := nanSeries(len(bars))
	if period <= 0 || len(bars) < period {
		return out
	}
	tr := TrueRange(bars)
	var sum float64
	for _, v := range tr[:period] {
		sum += v
	}
	out[period-1] = sum / float64(period)
	for i := period; i < len(bars); i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

// LatestATR returns the most recent ATR value and whether it is usable.
func LatestATR(bars []model.OHLCV, period int) (float64, bool) {
	v := model.Last(CalculateATR(bars, period))
	if math.IsNaN(v) || v <= 0 {
		return 0, false
	}
	return v, true
}
