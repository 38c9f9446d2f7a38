package strategy

import "SignalSentinel/internal/model"

// Fusion constants.
const (
	MinPresentSignals = 3
	CorrelationWeight = 0.5
)

// Decision is the fused outcome of the five inputs.
type Decision struct {
	Signal    model.SignalOption
	Reason    string
	ErrorType model.ErrorType
	Present   int
	BuyVotes  float64
	SellVotes float64
}

// Fuse combines the five source signals.
//
// A missing long-horizon technical read makes the result unavailable. With
// fewer than MinPresentSignals inputs the result is HOLD. Otherwise present
// inputs vote, the correlation input carrying an extra CorrelationWeight,
// and ties go to BUY.
func Fuse(in model.SourceSignals) Decision {
	if !in.TechnicalLong.Available() {
		return Decision{
			Signal:    model.Unavailable(),
			Reason:    "long-horizon technical analysis unavailable",
			ErrorType: model.ErrDataUnavailable,
		}
	}

	d := Decision{}
	for _, opt := range in.All() {
		sig, ok := opt.Get()
		if !ok {
			continue
		}
		d.Present++
		switch sig {
		case model.SignalBuy:
			d.BuyVotes++
		case model.SignalSell:
			d.SellVotes++
		}
	}
	if d.Present < MinPresentSignals {
		d.Signal = model.Decided(model.SignalHold)
		d.Reason = model.ReasonInsufficientSignals
		return d
	}

	if sig, ok := in.Correlation.Get(); ok {
		switch sig {
		case model.SignalBuy:
			d.BuyVotes += CorrelationWeight
		case model.SignalSell:
			d.SellVotes += CorrelationWeight
		}
	}

	switch {
	case d.BuyVotes >= d.SellVotes && d.BuyVotes >= 1:
		d.Signal = model.Decided(model.SignalBuy)
	case d.SellVotes > d.BuyVotes && d.SellVotes >= 1:
		d.Signal = model.Decided(model.SignalSell)
	default:
		d.Signal = model.Decided(model.SignalHold)
	}
	return d
}
