package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/model"
)

func newBinanceServer(t *testing.T, status int, routes map[string]string) *BinanceSource {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewBinanceSource(srv.URL, "", 5*time.Second, zerolog.Nop())
}

func TestBinanceSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
		ok     bool
	}{
		{"BTCUSD", "BTCUSDT", true},
		{"ETHUSD", "ETHUSDT", true},
		{"EURUSD", "", false},
		{"AAPL", "", false},
		{"XXXYYY", "", false},
	}
	for _, tt := range tests {
		got, ok := BinanceSymbol(tt.symbol)
		assert.Equal(t, tt.ok, ok, tt.symbol)
		assert.Equal(t, tt.want, got, tt.symbol)
	}
}

func TestBinance_CurrentPrice(t *testing.T) {
	src := newBinanceServer(t, http.StatusOK, map[string]string{
		"/api/v3/ticker/price": `[{"symbol":"BTCUSDT","price":"43012.50000000"}]`,
	})
	p, err := src.CurrentPrice(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 43012.5, p)
}

func TestBinance_RejectsNonCrypto(t *testing.T) {
	src := NewBinanceSource("http://127.0.0.1:0", "", time.Second, zerolog.Nop())
	_, err := src.CurrentPrice(context.Background(), "EURUSD")
	assert.Equal(t, model.ErrSymbolUnsupported, model.ErrorTypeOf(err))
}

func TestBinance_HistoricalBars(t *testing.T) {
	src := newBinanceServer(t, http.StatusOK, map[string]string{
		"/api/v3/klines": `[
			[1700000000000,"100.0","101.0","99.0","100.5","12.5",1700000059999,"0",10,"0","0","0"],
			[1700000060000,"100.5","102.0","100.0","101.5","8.0",1700000119999,"0",12,"0","0","0"]
		]`,
	})
	bars, err := src.HistoricalBars(context.Background(), "BTCUSD", Timeframe1m, 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), bars[0].Time)
	assert.Equal(t, model.OHLCV{
		Time: time.UnixMilli(1700000060000).UTC(), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 8,
	}, bars[1])
}

func TestBinance_UnknownTimeframe(t *testing.T) {
	src := NewBinanceSource("http://127.0.0.1:0", "", time.Second, zerolog.Nop())
	_, err := src.HistoricalBars(context.Background(), "BTCUSD", "4h", 10)
	assert.Equal(t, model.ErrDataUnavailable, model.ErrorTypeOf(err))
}

func TestBinance_MarketDepth(t *testing.T) {
	src := newBinanceServer(t, http.StatusOK, map[string]string{
		"/api/v3/depth": `{"lastUpdateId":42,"bids":[["100.0","3.0"],["99.5","1.0"]],"asks":[["100.5","2.0"]]}`,
	})
	d, err := src.MarketDepth(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD", d.Symbol)
	assert.Equal(t, []model.DepthLevel{{Price: 100, Volume: 3}, {Price: 99.5, Volume: 1}}, d.Bids)
	assert.Equal(t, []model.DepthLevel{{Price: 100.5, Volume: 2}}, d.Asks)
}

func TestBinance_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   model.ErrorType
	}{
		{"invalid symbol", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`, model.ErrSymbolUnsupported},
		{"rate limited", http.StatusTooManyRequests, `{"code":-1003,"msg":"Too many requests."}`, model.ErrRateLimited},
		{"other api error", http.StatusBadRequest, `{"code":-1100,"msg":"Illegal characters."}`, model.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newBinanceServer(t, tt.status, map[string]string{"/api/v3/ticker/price": tt.body})
			_, err := src.CurrentPrice(context.Background(), "BTCUSD")
			require.Error(t, err)
			assert.Equal(t, tt.want, model.ErrorTypeOf(err))
		})
	}
}

func TestRoutedSource(t *testing.T) {
	def := &MockSource{Price: 1.1, Correlate: true}
	crypto := &MockSource{Price: 40000, Correlate: true}
	r := NewRoutedSource(def, map[model.AssetClass]Source{model.AssetCrypto: crypto})
	ctx := context.Background()

	p, err := r.CurrentPrice(ctx, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 40000.0, p)
	p, err = r.CurrentPrice(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.1, p)

	_, err = r.NewsSentiment(ctx, []string{"AAPL"}, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, def.Calls("news"))
	assert.Equal(t, 0, crypto.Calls("news"))

	assert.Equal(t, "mock+mock", r.Name())
	assert.True(t, r.SupportsCorrelation())
	crypto.Correlate = false
	assert.False(t, r.SupportsCorrelation())
}

func TestRoutedSource_DepthCapabilityPerSymbol(t *testing.T) {
	r := NewRoutedSource(simulatingMock{&MockSource{Price: 1}}, map[model.AssetClass]Source{
		model.AssetCrypto: &MockSource{Price: 2},
	})
	assert.True(t, r.SimulatesDepth("EURUSD"))
	assert.False(t, r.SimulatesDepth("BTCUSD"))
}
