package model

import (
	"encoding/json"
	"fmt"
)

// Signal is a directional decision.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Direction maps BUY to +1, SELL to -1 and anything else to 0.
func (s Signal) Direction() int {
	switch s {
	case SignalBuy:
		return 1
	case SignalSell:
		return -1
	default:
		return 0
	}
}

// SignalOption is either a decided Signal or unavailable.
// Unavailable means the producing computation could not run; HOLD means it
// ran and found no directional edge. The zero value is unavailable.
type SignalOption struct {
	signal Signal
	ok     bool
}

// Decided wraps a computed signal.
func Decided(s Signal) SignalOption { return SignalOption{signal: s, ok: true} }

// Unavailable returns the absent signal.
func Unavailable() SignalOption { return SignalOption{} }

// Get returns the signal and whether it is present.
func (o SignalOption) Get() (Signal, bool) { return o.signal, o.ok }

// Available reports whether a signal was computed.
func (o SignalOption) Available() bool { return o.ok }

// Is reports whether the option holds exactly s.
func (o SignalOption) Is(s Signal) bool { return o.ok && o.signal == s }

func (o SignalOption) String() string {
	if !o.ok {
		return "UNAVAILABLE"
	}
	return string(o.signal)
}

// MarshalJSON encodes an unavailable signal as null.
func (o SignalOption) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(string(o.signal))
}

// UnmarshalJSON accepts null or one of BUY/SELL/HOLD.
func (o *SignalOption) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Unavailable()
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSignal(raw)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseSignal converts a stored label back into an option. Empty and
// "UNAVAILABLE" map to the absent signal.
func ParseSignal(raw string) (SignalOption, error) {
	switch Signal(raw) {
	case SignalBuy, SignalSell, SignalHold:
		return Decided(Signal(raw)), nil
	}
	if raw == "" || raw == "UNAVAILABLE" {
		return Unavailable(), nil
	}
	return Unavailable(), fmt.Errorf("unknown signal %q", raw)
}

// FactorScore represents a single sub-score of a rule.
type FactorScore struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	Commentary string  `json:"commentary,omitempty"`
}

// SourceSignals holds the five fusion inputs.
type SourceSignals struct {
	TechnicalShort  SignalOption `json:"technical_short"`
	TechnicalLong   SignalOption `json:"technical_long"`
	TrendPrediction SignalOption `json:"trend_prediction"`
	DepthImbalance  SignalOption `json:"depth_imbalance"`
	Correlation     SignalOption `json:"correlation"`
}

// All returns the inputs in a fixed order.
func (s SourceSignals) All() []SignalOption {
	return []SignalOption{s.TechnicalShort, s.TechnicalLong, s.TrendPrediction, s.DepthImbalance, s.Correlation}
}
