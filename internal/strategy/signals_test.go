package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"SignalSentinel/internal/model"
)

func TestPredictTrend(t *testing.T) {
	t.Run("monotonic rise", func(t *testing.T) {
		p := PredictTrend(trendingBars(10, 100, 1))
		assert.True(t, p.Signal.Is(model.SignalBuy))
		assert.InDelta(t, 110.0, p.Price, 1e-9)
	})
	t.Run("monotonic fall", func(t *testing.T) {
		p := PredictTrend(trendingBars(30, 200, -2))
		assert.True(t, p.Signal.Is(model.SignalSell))
	})
	t.Run("slow drift holds", func(t *testing.T) {
		p := PredictTrend(trendingBars(30, 100, 0.01))
		assert.True(t, p.Signal.Is(model.SignalHold))
	})
	t.Run("short series", func(t *testing.T) {
		p := PredictTrend(trendingBars(9, 100, 5))
		assert.True(t, p.Signal.Is(model.SignalHold))
		assert.Equal(t, 140.0, p.Price)
	})
	t.Run("empty series", func(t *testing.T) {
		p := PredictTrend(nil)
		assert.False(t, p.Signal.Available())
	})
}

func TestDepthAnalyzer(t *testing.T) {
	levels := func(vols ...float64) []model.DepthLevel {
		out := make([]model.DepthLevel, len(vols))
		for i, v := range vols {
			out[i] = model.DepthLevel{Price: 100, Volume: v}
		}
		return out
	}
	tests := []struct {
		name  string
		depth *model.MarketDepth
		want  model.Signal
	}{
		{"nil depth", nil, model.SignalHold},
		{"no bids", &model.MarketDepth{Asks: levels(10)}, model.SignalHold},
		{"no asks", &model.MarketDepth{Bids: levels(10)}, model.SignalHold},
		{"zero ask volume", &model.MarketDepth{Bids: levels(1e6), Asks: levels(0, 0)}, model.SignalHold},
		{"bid heavy", &model.MarketDepth{Bids: levels(106), Asks: levels(100)}, model.SignalBuy},
		{"at threshold", &model.MarketDepth{Bids: levels(105), Asks: levels(100)}, model.SignalHold},
		{"ask heavy", &model.MarketDepth{Bids: levels(90), Asks: levels(100)}, model.SignalSell},
	}
	a := DefaultDepthAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := a.Evaluate(tt.depth)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDepthAnalyzer_OnlyTopLevelsCount(t *testing.T) {
	bids := make([]model.DepthLevel, 25)
	asks := make([]model.DepthLevel, 25)
	for i := range bids {
		bids[i] = model.DepthLevel{Price: 99, Volume: 10}
		asks[i] = model.DepthLevel{Price: 101, Volume: 10}
	}
	for i := 20; i < 25; i++ {
		bids[i].Volume = 1000
	}
	sig, pct := DefaultDepthAnalyzer().Evaluate(&model.MarketDepth{Bids: bids, Asks: asks})
	assert.Equal(t, model.SignalHold, sig)
	assert.Equal(t, 0.0, pct)
}

func TestCalculateRiskLevels_RewardRatio(t *testing.T) {
	for _, atr := range []float64{0.0005, 0.01, 1, 12.5, 300} {
		entry := 1000.0
		l := CalculateRiskLevels(entry, model.SignalBuy, atr)
		assert.InDelta(t, 1.5*(entry-l.StopLoss), l.TakeProfit-entry, 1e-9, "atr %v", atr)

		s := CalculateRiskLevels(entry, model.SignalSell, atr)
		assert.InDelta(t, entry+2*atr, s.StopLoss, 1e-9)
		assert.InDelta(t, entry-3*atr, s.TakeProfit, 1e-9)
	}
}

func TestCalculateRiskLevels_HoldAndFallback(t *testing.T) {
	h := CalculateRiskLevels(50, model.SignalHold, 3)
	assert.Equal(t, 50.0, h.StopLoss)
	assert.Equal(t, 50.0, h.TakeProfit)

	for _, atr := range []float64{0, -1, math.NaN()} {
		l := CalculateRiskLevels(100, model.SignalBuy, atr)
		assert.InDelta(t, 2.0, l.ATR, 1e-12)
		assert.InDelta(t, 96.0, l.StopLoss, 1e-12)
		assert.InDelta(t, 106.0, l.TakeProfit, 1e-12)
	}
}

func TestPositionSize(t *testing.T) {
	assert.InDelta(t, 100.0, PositionSize(10000, 50, 48, DefaultRiskFraction), 1e-9)
	assert.Equal(t, 0.0, PositionSize(10000, 50, 50, DefaultRiskFraction))
}

func TestFuse(t *testing.T) {
	buy := model.Decided(model.SignalBuy)
	sell := model.Decided(model.SignalSell)
	hold := model.Decided(model.SignalHold)
	none := model.Unavailable()

	tests := []struct {
		name       string
		in         model.SourceSignals
		want       model.SignalOption
		wantErr    model.ErrorType
		wantReason string
	}{
		{
			name:    "long absent others directional",
			in:      model.SourceSignals{TechnicalShort: buy, TechnicalLong: none, TrendPrediction: buy, DepthImbalance: buy, Correlation: buy},
			want:    none,
			wantErr: model.ErrDataUnavailable,
		},
		{
			name:       "two present is insufficient",
			in:         model.SourceSignals{TechnicalLong: hold, TrendPrediction: buy},
			want:       hold,
			wantReason: model.ReasonInsufficientSignals,
		},
		{
			name:       "two directional present still holds",
			in:         model.SourceSignals{TechnicalLong: sell, DepthImbalance: sell},
			want:       hold,
			wantReason: model.ReasonInsufficientSignals,
		},
		{
			name: "single buy vote among three",
			in:   model.SourceSignals{TechnicalLong: buy, TechnicalShort: hold, DepthImbalance: hold},
			want: buy,
		},
		{
			name: "tie goes to buy",
			in:   model.SourceSignals{TechnicalLong: buy, TechnicalShort: sell, DepthImbalance: hold},
			want: buy,
		},
		{
			name: "correlation weight breaks tie",
			in:   model.SourceSignals{TechnicalLong: buy, TechnicalShort: buy, TrendPrediction: sell, Correlation: sell},
			want: sell,
		},
		{
			name: "sell majority",
			in:   model.SourceSignals{TechnicalLong: sell, TechnicalShort: sell, TrendPrediction: buy, DepthImbalance: hold, Correlation: hold},
			want: sell,
		},
		{
			name: "all hold",
			in:   model.SourceSignals{TechnicalLong: hold, TechnicalShort: hold, TrendPrediction: hold, DepthImbalance: hold, Correlation: hold},
			want: hold,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Fuse(tt.in)
			assert.Equal(t, tt.want, d.Signal)
			assert.Equal(t, tt.wantErr, d.ErrorType)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, d.Reason)
			}
		})
	}
}

func TestFuse_CorrelationVoteWeight(t *testing.T) {
	buy := model.Decided(model.SignalBuy)
	hold := model.Decided(model.SignalHold)
	d := Fuse(model.SourceSignals{TechnicalLong: hold, TechnicalShort: hold, Correlation: buy})
	assert.Equal(t, 3, d.Present)
	assert.Equal(t, 1.5, d.BuyVotes)
	assert.Equal(t, 0.0, d.SellVotes)
}
