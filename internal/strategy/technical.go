package strategy

import (
	"fmt"
	"math"

	"SignalSentinel/internal/model"
)

// MinTechnicalBars is the shortest series the technical rule will score.
const MinTechnicalBars = 50

// TechnicalRule maps the latest indicator values to a directional signal.
type TechnicalRule struct {
	BuyThreshold  float64
	SellThreshold float64
}

// DefaultTechnicalRule returns the rule with the ±0.3 thresholds.
func DefaultTechnicalRule() TechnicalRule {
	return TechnicalRule{BuyThreshold: 0.3, SellThreshold: -0.3}
}

// TechnicalReading is the outcome of one rule evaluation.
type TechnicalReading struct {
	Signal  model.Signal
	Score   float64
	Factors []model.FactorScore
}

// Evaluate scores the frame's latest bar. Frames shorter than
// MinTechnicalBars read HOLD.
func (r TechnicalRule) Evaluate(f *model.IndicatorFrame) TechnicalReading {
	if f == nil || f.Len() < MinTechnicalBars {
		return TechnicalReading{Signal: model.SignalHold}
	}
	i := f.Len() - 1
	factors := []model.FactorScore{
		scoreEMAAlignment(f, i),
		scoreMACD(f, i),
		scoreRSI(f, i),
		scoreBollinger(f, i),
	}

	var total float64
	for _, fs := range factors {
		total += fs.Score
	}

	sig := model.SignalHold
	switch {
	case total >= r.BuyThreshold:
		sig = model.SignalBuy
	case total <= r.SellThreshold:
		sig = model.SignalSell
	}
	return TechnicalReading{Signal: sig, Score: total, Factors: factors}
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// scoreEMAAlignment rewards a stacked EMA5/13/50 trend, falling back to the
// short pair alone.
func scoreEMAAlignment(f *model.IndicatorFrame, i int) model.FactorScore {
	e5, e13, e50 := model.At(f.EMA5, i), model.At(f.EMA13, i), model.At(f.EMA50, i)
	if anyNaN(e5, e13, e50) {
		return model.FactorScore{Name: "ema", Commentary: "warm-up"}
	}
	var score float64
	var note string
	switch {
	case e5 > e13 && e13 > e50:
		score, note = 1, "uptrend"
	case e5 < e13 && e13 < e50:
		score, note = -1, "downtrend"
	case e5 > e13:
		score, note = 0.5, "short-term up"
	case e5 < e13:
		score, note = -0.5, "short-term down"
	default:
		note = "flat"
	}
	return model.FactorScore{Name: "ema", Score: score, Commentary: note}
}

// scoreMACD rewards a fresh crossover over a standing one.
func scoreMACD(f *model.IndicatorFrame, i int) model.FactorScore {
	line, sig := model.At(f.MACD, i), model.At(f.MACDSignal, i)
	if anyNaN(line, sig) {
		return model.FactorScore{Name: "macd", Commentary: "warm-up"}
	}
	prevLine, prevSig := model.At(f.MACD, i-1), model.At(f.MACDSignal, i-1)
	hasPrev := !anyNaN(prevLine, prevSig)

	var score float64
	var note string
	switch {
	case hasPrev && line > sig && prevLine <= prevSig:
		score, note = 1, "bullish cross"
	case hasPrev && line < sig && prevLine >= prevSig:
		score, note = -1, "bearish cross"
	case line > sig:
		score, note = 0.3, "above signal"
	case line < sig:
		score, note = -0.3, "below signal"
	default:
		note = "on signal"
	}
	return model.FactorScore{Name: "macd", Score: score, Commentary: note}
}

func scoreRSI(f *model.IndicatorFrame, i int) model.FactorScore {
	rsi := model.At(f.RSI, i)
	if math.IsNaN(rsi) {
		return model.FactorScore{Name: "rsi", Commentary: "warm-up"}
	}
	var score float64
	switch {
	case rsi < 30:
		score = 1
	case rsi > 70:
		score = -1
	case rsi < 40:
		score = 0.5
	case rsi > 60:
		score = -0.5
	}
	return model.FactorScore{Name: "rsi", Score: score, Commentary: fmt.Sprintf("%.1f", rsi)}
}

func scoreBollinger(f *model.IndicatorFrame, i int) model.FactorScore {
	upper, mid, lower := model.At(f.BBUpper, i), model.At(f.BBMiddle, i), model.At(f.BBLower, i)
	if anyNaN(upper, mid, lower) {
		return model.FactorScore{Name: "bollinger", Commentary: "warm-up"}
	}
	price := f.Bars[i].Close
	var score float64
	var note string
	switch {
	case price < lower:
		score, note = 1, "below lower band"
	case price > upper:
		score, note = -1, "above upper band"
	case price < mid:
		score, note = 0.2, "below middle band"
	case price > mid:
		score, note = -0.2, "above middle band"
	default:
		note = "on middle band"
	}
	return model.FactorScore{Name: "bollinger", Score: score, Commentary: note}
}
