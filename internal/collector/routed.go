package collector

import (
	"context"
	"strings"

	"SignalSentinel/internal/model"
)

// RoutedSource sends each symbol to the source registered for its asset
// class, falling back to Default.
type RoutedSource struct {
	Default Source
	Routes  map[model.AssetClass]Source
}

// NewRoutedSource builds a router around def.
func NewRoutedSource(def Source, routes map[model.AssetClass]Source) *RoutedSource {
	return &RoutedSource{Default: def, Routes: routes}
}

func (r *RoutedSource) route(symbol string) Source {
	if src, ok := r.Routes[AssetClassOf(symbol)]; ok && src != nil {
		return src
	}
	return r.Default
}

// Name joins the default source name with the routed ones, e.g.
// "alphavantage+binance".
func (r *RoutedSource) Name() string {
	names := []string{r.Default.Name()}
	for _, class := range []model.AssetClass{model.AssetForex, model.AssetStock, model.AssetCrypto} {
		if src, ok := r.Routes[class]; ok && src != nil {
			names = append(names, src.Name())
		}
	}
	return strings.Join(names, "+")
}

// SupportsCorrelation requires every underlying source to opt in, since the
// engine mixes symbols of all classes.
func (r *RoutedSource) SupportsCorrelation() bool {
	if !SupportsCorrelation(r.Default) {
		return false
	}
	for _, src := range r.Routes {
		if src != nil && !SupportsCorrelation(src) {
			return false
		}
	}
	return true
}

// SimulatesDepth forwards the capability of the source serving symbol.
func (r *RoutedSource) SimulatesDepth(symbol string) bool {
	sim, ok := r.route(symbol).(depthSimulator)
	return ok && sim.SimulatesDepth(symbol)
}

func (r *RoutedSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return r.route(symbol).CurrentPrice(ctx, symbol)
}

func (r *RoutedSource) HistoricalBars(ctx context.Context, symbol, timeframe string, limit int) ([]model.OHLCV, error) {
	return r.route(symbol).HistoricalBars(ctx, symbol, timeframe, limit)
}

func (r *RoutedSource) MarketDepth(ctx context.Context, symbol string) (*model.MarketDepth, error) {
	return r.route(symbol).MarketDepth(ctx, symbol)
}

// NewsSentiment always uses Default, the only source with a news feed.
func (r *RoutedSource) NewsSentiment(ctx context.Context, symbols []string, limit int) (model.Sentiment, error) {
	return r.Default.NewsSentiment(ctx, symbols, limit)
}
