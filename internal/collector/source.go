package collector

import (
	"context"

	"SignalSentinel/internal/model"
)

// Timeframes understood by HistoricalBars.
const (
	Timeframe1m  = "1m"
	Timeframe5m  = "5m"
	Timeframe15m = "15m"
	Timeframe30m = "30m"
	Timeframe1h  = "1h"
)

// Source defines the interface for fetching market data.
//
// HistoricalBars may return fewer than limit bars; an empty series is a
// valid result meaning there is not enough history. Errors are
// *model.SourceError where the cause is known.
type Source interface {
	Name() string
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	HistoricalBars(ctx context.Context, symbol, timeframe string, limit int) ([]model.OHLCV, error)
	MarketDepth(ctx context.Context, symbol string) (*model.MarketDepth, error)
	NewsSentiment(ctx context.Context, symbols []string, limit int) (model.Sentiment, error)
}

// Correlated is implemented by sources whose history is suitable for the
// cross-asset correlation signal.
type Correlated interface {
	SupportsCorrelation() bool
}

// SupportsCorrelation reports whether src opts into the correlation signal.
func SupportsCorrelation(src Source) bool {
	c, ok := src.(Correlated)
	return ok && c.SupportsCorrelation()
}

// depthSimulator is implemented by sources whose depth for symbol is
// synthesized from the current quote.
type depthSimulator interface {
	SimulatesDepth(symbol string) bool
}
