package collector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"SignalSentinel/internal/cache"
	"SignalSentinel/internal/model"
)

// CachedSource decorates a Source with the rate-limited cache. News
// sentiment failures collapse to a neutral result.
type CachedSource struct {
	src   Source
	cache *cache.Cache
	log   zerolog.Logger
}

// NewCachedSource wraps src.
func NewCachedSource(src Source, c *cache.Cache, log zerolog.Logger) *CachedSource {
	return &CachedSource{src: src, cache: c, log: log.With().Str("source", src.Name()).Logger()}
}

func (s *CachedSource) Name() string { return s.src.Name() }

// SupportsCorrelation forwards the wrapped source's capability.
func (s *CachedSource) SupportsCorrelation() bool { return SupportsCorrelation(s.src) }

func (s *CachedSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return cache.Fetch(ctx, s.cache, "price", []string{symbol}, func(ctx context.Context) (float64, error) {
		return s.src.CurrentPrice(ctx, symbol)
	})
}

func (s *CachedSource) HistoricalBars(ctx context.Context, symbol, timeframe string, limit int) ([]model.OHLCV, error) {
	op := fmt.Sprintf("bars:%s:%d", timeframe, limit)
	return cache.Fetch(ctx, s.cache, op, []string{symbol}, func(ctx context.Context) ([]model.OHLCV, error) {
		return s.src.HistoricalBars(ctx, symbol, timeframe, limit)
	})
}

// MarketDepth derives simulated books from the cached quote so they cost no
// extra upstream call.
func (s *CachedSource) MarketDepth(ctx context.Context, symbol string) (*model.MarketDepth, error) {
	if sim, ok := s.src.(depthSimulator); ok && sim.SimulatesDepth(symbol) {
		price, err := s.CurrentPrice(ctx, symbol)
		if err != nil {
			return nil, err
		}
		return SimulatedDepth(symbol, price), nil
	}
	return cache.Fetch(ctx, s.cache, "depth", []string{symbol}, func(ctx context.Context) (*model.MarketDepth, error) {
		return s.src.MarketDepth(ctx, symbol)
	})
}

// NewsSentiment never fails; errors are logged and read as neutral.
func (s *CachedSource) NewsSentiment(ctx context.Context, symbols []string, limit int) (model.Sentiment, error) {
	key := symbols
	if len(key) == 0 {
		key = []string{"global"}
	}
	op := fmt.Sprintf("news:%d", limit)
	sent, err := cache.Fetch(ctx, s.cache, op, key, func(ctx context.Context) (model.Sentiment, error) {
		return s.src.NewsSentiment(ctx, symbols, limit)
	})
	if err != nil {
		s.log.Warn().Err(err).Strs("symbols", symbols).Str("error_type", string(model.ErrorTypeOf(err))).Msg("news sentiment unavailable, using neutral")
		return model.Sentiment{}, nil
	}
	return sent, nil
}
