package model

import "time"

// ReasonInsufficientSignals marks a HOLD produced because fewer than three
// inputs were available.
const ReasonInsufficientSignals = "INSUFFICIENT_SIGNALS"

// AnalysisResult is the per-symbol output of the decision engine.
type AnalysisResult struct {
	Symbol         string        `json:"symbol"`
	AssetClass     AssetClass    `json:"asset_class"`
	CurrentPrice   float64       `json:"current_price"`
	Signals        SourceSignals `json:"signals"`
	PredictedPrice float64       `json:"predicted_price,omitempty"`
	FinalSignal    SignalOption  `json:"final_signal"`
	Reason         string        `json:"reason,omitempty"`
	StopLoss       float64       `json:"stop_loss,omitempty"`
	TakeProfit     float64       `json:"take_profit,omitempty"`
	ATR            float64       `json:"atr,omitempty"`
	Factors        []FactorScore `json:"factors,omitempty"`
	Sentiment      *Sentiment    `json:"sentiment,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	ErrorType      ErrorType     `json:"error_type,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
}

// Failed reports whether the engine returned a typed failure.
func (r *AnalysisResult) Failed() bool { return r.ErrorType != "" }
