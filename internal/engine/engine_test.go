package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/correlation"
	"SignalSentinel/internal/model"
)

type fakeCorrelation struct {
	sig   model.Signal
	err   error
	calls int
}

func (f *fakeCorrelation) Evaluate(context.Context, string) (*correlation.Reading, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &correlation.Reading{Signal: f.sig}, nil
}

func rising(n int, start, step float64, interval time.Duration) []model.OHLCV {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, n)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = model.OHLCV{
			Time: t0.Add(time.Duration(i) * interval),
			Open: c - step/2, High: c + step, Low: c - step, Close: c, Volume: 1000,
		}
	}
	return bars
}

func bidHeavy(symbol string) *model.MarketDepth {
	return &model.MarketDepth{
		Symbol: symbol,
		Bids:   []model.DepthLevel{{Price: 2.97, Volume: 150}},
		Asks:   []model.DepthLevel{{Price: 2.99, Volume: 100}},
	}
}

func uptrendSource() *collector.MockSource {
	return &collector.MockSource{
		Prices: map[string]float64{"EURUSD": 2.98},
		Bars: map[string][]model.OHLCV{
			"EURUSD/1m":  rising(100, 1.0, 0.02, time.Minute),
			"EURUSD/15m": rising(200, 1.0, 0.01, 15*time.Minute),
		},
		Depth:     bidHeavy("EURUSD"),
		Correlate: true,
	}
}

func TestAnalyze_EURUSDUptrend(t *testing.T) {
	corr := &fakeCorrelation{sig: model.SignalBuy}
	eng := New(uptrendSource(), corr, DefaultOptions(), zerolog.Nop(), nil)
	require.True(t, eng.HasCorrelation())

	res := eng.Analyze(context.Background(), "EURUSD")
	require.False(t, res.Failed(), res.ErrorMessage)

	assert.Equal(t, model.AssetForex, res.AssetClass)
	assert.True(t, res.Signals.TrendPrediction.Is(model.SignalBuy))
	assert.True(t, res.Signals.DepthImbalance.Is(model.SignalBuy))
	assert.True(t, res.Signals.Correlation.Is(model.SignalBuy))
	assert.True(t, res.Signals.TechnicalLong.Available())
	assert.True(t, res.FinalSignal.Is(model.SignalBuy))
	assert.Greater(t, res.PredictedPrice, res.CurrentPrice)
	assert.NotEmpty(t, res.Factors)
	assert.Nil(t, res.Sentiment, "forex carries no news sentiment")

	require.Greater(t, res.ATR, 0.0)
	assert.Less(t, res.StopLoss, res.CurrentPrice)
	assert.Greater(t, res.TakeProfit, res.CurrentPrice)
	ratio := (res.TakeProfit - res.CurrentPrice) / (res.CurrentPrice - res.StopLoss)
	assert.InDelta(t, 1.5, ratio, 1e-9)
	assert.False(t, res.Timestamp.IsZero())
	assert.Equal(t, 1, corr.calls)
}

func TestAnalyze_PriceFailureIsTyped(t *testing.T) {
	src := uptrendSource()
	src.Errors = map[string]error{
		"price": model.NewSourceError(model.ErrRateLimited, "EURUSD", "quota exceeded", nil),
	}
	eng := New(src, nil, DefaultOptions(), zerolog.Nop(), nil)

	res := eng.Analyze(context.Background(), "EURUSD")
	assert.Equal(t, model.ErrRateLimited, res.ErrorType)
	assert.Contains(t, res.ErrorMessage, "quota")
	assert.False(t, res.FinalSignal.Available())
	for _, s := range res.Signals.All() {
		assert.False(t, s.Available())
	}
	assert.Equal(t, 0, src.Calls("bars"), "no analysis after a failed quote")
}

func TestAnalyze_PriceTimeout(t *testing.T) {
	src := uptrendSource()
	src.Errors = map[string]error{"price": context.DeadlineExceeded}
	res := New(src, nil, DefaultOptions(), zerolog.Nop(), nil).Analyze(context.Background(), "EURUSD")
	assert.Equal(t, model.ErrTimeout, res.ErrorType)
}

func TestAnalyze_EmptyLongSeriesIsDataUnavailable(t *testing.T) {
	src := uptrendSource()
	src.Bars["EURUSD/15m"] = []model.OHLCV{}
	eng := New(src, &fakeCorrelation{sig: model.SignalBuy}, DefaultOptions(), zerolog.Nop(), nil)

	res := eng.Analyze(context.Background(), "EURUSD")
	assert.Equal(t, model.ErrDataUnavailable, res.ErrorType)
	assert.False(t, res.Signals.TechnicalLong.Available())
	assert.False(t, res.FinalSignal.Available())
	assert.Zero(t, res.StopLoss)
	assert.Zero(t, res.TakeProfit)
}

func TestAnalyze_InsufficientSignalsHolds(t *testing.T) {
	src := &collector.MockSource{
		Prices: map[string]float64{"AUDUSD": 0.66},
		Bars: map[string][]model.OHLCV{
			"AUDUSD/1m":  {},
			"AUDUSD/15m": rising(200, 0.6, 0.0003, 15*time.Minute),
		},
		Errors: map[string]error{"depth": errors.New("no book")},
	}
	res := New(src, nil, DefaultOptions(), zerolog.Nop(), nil).Analyze(context.Background(), "AUDUSD")

	require.False(t, res.Failed())
	assert.True(t, res.FinalSignal.Is(model.SignalHold))
	assert.Equal(t, model.ReasonInsufficientSignals, res.Reason)
	// No 1m history: ATR falls back to 2% of price and HOLD pins both levels.
	assert.InDelta(t, 0.66*0.02, res.ATR, 1e-12)
	assert.Equal(t, res.CurrentPrice, res.StopLoss)
	assert.Equal(t, res.CurrentPrice, res.TakeProfit)
}

func TestNew_DropsCorrelationWhenUnsupported(t *testing.T) {
	src := uptrendSource()
	src.Correlate = false
	corr := &fakeCorrelation{sig: model.SignalSell}
	eng := New(src, corr, DefaultOptions(), zerolog.Nop(), nil)

	assert.False(t, eng.HasCorrelation())
	res := eng.Analyze(context.Background(), "EURUSD")
	assert.False(t, res.Signals.Correlation.Available())
	assert.Equal(t, 0, corr.calls)
}

func TestAnalyze_CorrelationErrorIsAbsent(t *testing.T) {
	eng := New(uptrendSource(), &fakeCorrelation{err: errors.New("store down")}, DefaultOptions(), zerolog.Nop(), nil)
	res := eng.Analyze(context.Background(), "EURUSD")
	require.False(t, res.Failed())
	assert.False(t, res.Signals.Correlation.Available())
	assert.True(t, res.FinalSignal.Is(model.SignalBuy))
}

func TestAnalyze_EquityCarriesSentiment(t *testing.T) {
	src := &collector.MockSource{
		Prices:    map[string]float64{"AAPL": 190},
		Sentiment: model.Sentiment{Overall: 0.35, NewsCount: 12},
	}
	res := New(src, nil, DefaultOptions(), zerolog.Nop(), nil).Analyze(context.Background(), "AAPL")
	require.NotNil(t, res.Sentiment)
	assert.InDelta(t, 0.35, res.Sentiment.Overall, 1e-12)
	assert.Equal(t, 12, res.Sentiment.NewsCount)
}

func TestAnalyzeAll_KeepsOrder(t *testing.T) {
	src := &collector.MockSource{
		Prices: map[string]float64{"EURUSD": 1.08, "GBPUSD": 1.27, "USDJPY": 150, "AAPL": 190},
	}
	opts := DefaultOptions()
	opts.Workers = 3
	eng := New(src, nil, opts, zerolog.Nop(), nil)

	symbols := []string{"USDJPY", "AAPL", "EURUSD", "GBPUSD"}
	results := eng.AnalyzeAll(context.Background(), symbols)
	require.Len(t, results, len(symbols))
	for i, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, symbols[i], res.Symbol)
		assert.Equal(t, src.Prices[symbols[i]], res.CurrentPrice)
	}
	assert.Empty(t, eng.AnalyzeAll(context.Background(), nil))
}
