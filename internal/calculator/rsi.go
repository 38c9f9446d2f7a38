package calculator

import "math"

// CalculateRSI computes the Wilder-smoothed RSI over closes.
// The first change is counted as zero gain and zero loss; values before
// index period-1 are NaN. A window with no losses reads 100.
func CalculateRSI(closes []float64, period int) []float64 {
	if period <= 0 {
		return nanSeries(len(closes))
	}
	up := make([]float64, len(closes))
	down := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			up[i] = change
		} else if change < 0 {
			down[i] = -change
		}
	}

	alpha := 1.0 / float64(period)
	avgUp := ewm(up, alpha, period)
	avgDown := ewm(down, alpha, period)

	out := nanSeries(len(closes))
	for i := range closes {
		if math.IsNaN(avgUp[i]) || math.IsNaN(avgDown[i]) {
			continue
		}
		if avgDown[i] == 0 {
			out[i] = 100
			continue
		}
		rs := avgUp[i] / avgDown[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}
