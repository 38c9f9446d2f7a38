package strategy

import "SignalSentinel/internal/model"

// Trend extrapolation settings.
const (
	TrendWindow    = 10
	TrendThreshold = 0.005
)

// Prediction is a one-step-ahead price extrapolation.
type Prediction struct {
	Price  float64
	Signal model.SignalOption
}

// PredictTrend fits a least-squares line through the last TrendWindow closes
// and extrapolates one bar ahead. An empty series is unavailable; a short
// one reads HOLD at the last close.
func PredictTrend(bars []model.OHLCV) Prediction {
	if len(bars) == 0 {
		return Prediction{Signal: model.Unavailable()}
	}
	last := bars[len(bars)-1].Close
	if len(bars) < TrendWindow {
		return Prediction{Price: last, Signal: model.Decided(model.SignalHold)}
	}

	closes := model.Closes(bars[len(bars)-TrendWindow:])
	predicted := last + slope(closes)
	if last == 0 {
		return Prediction{Price: predicted, Signal: model.Decided(model.SignalHold)}
	}

	change := (predicted - last) / last
	sig := model.SignalHold
	switch {
	case change > TrendThreshold:
		sig = model.SignalBuy
	case change < -TrendThreshold:
		sig = model.SignalSell
	}
	return Prediction{Price: predicted, Signal: model.Decided(sig)}
}

// slope is the least-squares gradient of ys against x = 0..n-1.
func slope(ys []float64) float64 {
	n := float64(len(ys))
	if n < 2 {
		return 0
	}
	xMean := (n - 1) / 2
	var yMean float64
	for _, y := range ys {
		yMean += y
	}
	yMean /= n

	var num, den float64
	for i, y := range ys {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	return num / den
}
