package collector

import (
	"context"
	"sync"
	"time"

	"SignalSentinel/internal/model"
)

// MockSource returns controllable fixed data for development and testing.
// Unset fields fall back to generated data around Price.
type MockSource struct {
	Price     float64
	Prices    map[string]float64
	Bars      map[string][]model.OHLCV // keyed by symbol+"/"+timeframe, or symbol
	Depth     *model.MarketDepth
	Sentiment model.Sentiment
	Errors    map[string]error // keyed by operation: price, bars, depth, news
	Correlate bool

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockSource) Name() string { return "mock" }

// SupportsCorrelation reports the Correlate flag.
func (m *MockSource) SupportsCorrelation() bool { return m.Correlate }

// Calls returns how many times op was invoked.
func (m *MockSource) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockSource) record(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
	return m.Errors[op]
}

func (m *MockSource) priceOf(symbol string) float64 {
	if p, ok := m.Prices[symbol]; ok {
		return p
	}
	return m.Price
}

func (m *MockSource) CurrentPrice(_ context.Context, symbol string) (float64, error) {
	if err := m.record("price"); err != nil {
		return 0, err
	}
	return m.priceOf(symbol), nil
}

func (m *MockSource) HistoricalBars(_ context.Context, symbol, timeframe string, limit int) ([]model.OHLCV, error) {
	if err := m.record("bars"); err != nil {
		return nil, err
	}
	bars, ok := m.Bars[symbol+"/"+timeframe]
	if !ok {
		bars, ok = m.Bars[symbol]
	}
	if !ok {
		bars = generateMockBars(m.priceOf(symbol), limit)
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (m *MockSource) MarketDepth(_ context.Context, symbol string) (*model.MarketDepth, error) {
	if err := m.record("depth"); err != nil {
		return nil, err
	}
	if m.Depth != nil {
		return m.Depth, nil
	}
	return SimulatedDepth(symbol, m.priceOf(symbol)), nil
}

func (m *MockSource) NewsSentiment(_ context.Context, _ []string, _ int) (model.Sentiment, error) {
	if err := m.record("news"); err != nil {
		return model.Sentiment{}, err
	}
	return m.Sentiment, nil
}

// generateMockBars builds a gently rising one-minute series ending at
// basePrice's neighbourhood.
func generateMockBars(basePrice float64, count int) []model.OHLCV {
	end := time.Now().Truncate(time.Minute)
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   end.Add(-time.Duration(count-i) * time.Minute),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
