package collector

import (
	"sort"

	"SignalSentinel/internal/model"
)

// Instrument describes how a symbol is priced upstream.
type Instrument struct {
	Symbol string
	Class  model.AssetClass
	Base   string // forex and crypto only
	Quote  string
	Spread float64 // simulated quote spread in price units
}

func pair(symbol string, class model.AssetClass, spread float64) Instrument {
	return Instrument{Symbol: symbol, Class: class, Base: symbol[:3], Quote: symbol[3:], Spread: spread}
}

var instruments = map[string]Instrument{
	"EURUSD": pair("EURUSD", model.AssetForex, 0.8),
	"GBPUSD": pair("GBPUSD", model.AssetForex, 1.2),
	"USDJPY": pair("USDJPY", model.AssetForex, 0.9),
	"AUDUSD": pair("AUDUSD", model.AssetForex, 1.5),
	"USDCAD": pair("USDCAD", model.AssetForex, 1.8),
	"EURJPY": pair("EURJPY", model.AssetForex, 2.1),
	"GBPJPY": pair("GBPJPY", model.AssetForex, 2.5),
	"USDCHF": pair("USDCHF", model.AssetForex, 1.9),
	"NZDUSD": pair("NZDUSD", model.AssetForex, 2.2),

	"AAPL":  {Symbol: "AAPL", Class: model.AssetStock, Spread: 0.01},
	"GOOGL": {Symbol: "GOOGL", Class: model.AssetStock, Spread: 0.50},
	"MSFT":  {Symbol: "MSFT", Class: model.AssetStock, Spread: 0.01},
	"AMZN":  {Symbol: "AMZN", Class: model.AssetStock, Spread: 0.05},
	"TSLA":  {Symbol: "TSLA", Class: model.AssetStock, Spread: 0.02},
	"NVDA":  {Symbol: "NVDA", Class: model.AssetStock, Spread: 0.05},
	"META":  {Symbol: "META", Class: model.AssetStock, Spread: 0.02},

	"BTCUSD": pair("BTCUSD", model.AssetCrypto, 10.0),
	"ETHUSD": pair("ETHUSD", model.AssetCrypto, 2.0),
	"ADAUSD": pair("ADAUSD", model.AssetCrypto, 0.001),
	"DOTUSD": pair("DOTUSD", model.AssetCrypto, 0.01),
}

// DefaultSpread applies to symbols without a configured spread.
const DefaultSpread = 2.0

// LookupInstrument returns the catalog entry for symbol.
func LookupInstrument(symbol string) (Instrument, bool) {
	inst, ok := instruments[symbol]
	return inst, ok
}

// AssetClassOf returns the asset class of symbol, or AssetUnknown.
func AssetClassOf(symbol string) model.AssetClass {
	if inst, ok := instruments[symbol]; ok {
		return inst.Class
	}
	return model.AssetUnknown
}

// Symbols lists every supported symbol in sorted order.
func Symbols() []string {
	out := make([]string, 0, len(instruments))
	for s := range instruments {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// SimulatedDepth builds a one-level book around price using the symbol's
// spread. Used by sources with no order book feed.
func SimulatedDepth(symbol string, price float64) *model.MarketDepth {
	spread := DefaultSpread
	if inst, ok := instruments[symbol]; ok && inst.Spread > 0 {
		spread = inst.Spread
	}
	return &model.MarketDepth{
		Symbol: symbol,
		Bids:   []model.DepthLevel{{Price: price - spread/2, Volume: 100}},
		Asks:   []model.DepthLevel{{Price: price + spread/2, Volume: 100}},
	}
}
