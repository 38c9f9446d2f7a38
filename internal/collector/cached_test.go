package collector

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/cache"
	"SignalSentinel/internal/model"
)

func newCached(src Source) *CachedSource {
	c := cache.New(cache.Options{TTL: time.Minute}, zerolog.Nop(), nil)
	return NewCachedSource(src, c, zerolog.Nop())
}

func TestCachedSource_MemoizesCalls(t *testing.T) {
	mock := &MockSource{Price: 1.1}
	src := newCached(mock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := src.CurrentPrice(ctx, "EURUSD")
		require.NoError(t, err)
		assert.Equal(t, 1.1, p)
		bars, err := src.HistoricalBars(ctx, "EURUSD", Timeframe1m, 100)
		require.NoError(t, err)
		assert.Len(t, bars, 100)
	}
	assert.Equal(t, 1, mock.Calls("price"))
	assert.Equal(t, 1, mock.Calls("bars"))

	_, err := src.HistoricalBars(ctx, "EURUSD", Timeframe15m, 200)
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Calls("bars"), "different timeframe is a different key")
}

func TestCachedSource_NewsErrorsAreNeutral(t *testing.T) {
	mock := &MockSource{
		Price:  100,
		Errors: map[string]error{"news": model.NewSourceError(model.ErrNetwork, "AAPL", "down", nil)},
	}
	s, err := newCached(mock).NewsSentiment(context.Background(), []string{"AAPL"}, 50)
	require.NoError(t, err)
	assert.Equal(t, model.Sentiment{}, s)
}

func TestCachedSource_ForwardsCapability(t *testing.T) {
	assert.True(t, newCached(&MockSource{Correlate: true}).SupportsCorrelation())
	assert.False(t, newCached(&MockSource{}).SupportsCorrelation())
}

type simulatingMock struct{ *MockSource }

func (simulatingMock) SimulatesDepth(string) bool { return true }

func TestCachedSource_SimulatedDepthReusesQuote(t *testing.T) {
	mock := &MockSource{Price: 1.2}
	src := newCached(simulatingMock{mock})
	ctx := context.Background()

	_, err := src.CurrentPrice(ctx, "EURUSD")
	require.NoError(t, err)
	d, err := src.MarketDepth(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1, mock.Calls("price"))
	assert.Equal(t, 0, mock.Calls("depth"))
	assert.InDelta(t, 1.2-0.4, d.Bids[0].Price, 1e-12)
}
