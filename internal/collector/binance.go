package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rs/zerolog"

	"SignalSentinel/internal/model"
)

const (
	// BinanceMaxKlines is the largest kline page the REST API serves.
	BinanceMaxKlines = 1000
	// BinanceDepthLimit is the number of book levels requested per side.
	BinanceDepthLimit = 20
)

// Binance API error codes that map onto the source taxonomy.
const (
	binanceCodeTooManyRequests = -1003
	binanceCodeInvalidSymbol   = -1121
)

// BinanceSource serves crypto instruments from the Binance spot REST API.
// Unlike Alpha Vantage it exposes a real order book. Only public market
// data endpoints are used, so no key is required.
type BinanceSource struct {
	client *binance.Client
	log    zerolog.Logger
}

// NewBinanceSource creates a source. baseURL overrides the API host when set.
func NewBinanceSource(baseURL, proxyURL string, timeout time.Duration, log zerolog.Logger) *BinanceSource {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = strings.TrimRight(baseURL, "/")
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	client.HTTPClient = &http.Client{Timeout: timeout, Transport: transport}
	return &BinanceSource{client: client, log: log.With().Str("source", "binance").Logger()}
}

func (s *BinanceSource) Name() string { return "binance" }

// SupportsCorrelation reports that kline history is deep enough.
func (s *BinanceSource) SupportsCorrelation() bool { return true }

// BinanceSymbol maps a catalog crypto symbol to its Binance market, quoting
// USD pairs in USDT.
func BinanceSymbol(symbol string) (string, bool) {
	inst, ok := instruments[symbol]
	if !ok || inst.Class != model.AssetCrypto {
		return "", false
	}
	quote := inst.Quote
	if quote == "USD" {
		quote = "USDT"
	}
	return inst.Base + quote, true
}

func (s *BinanceSource) market(symbol string) (string, error) {
	m, ok := BinanceSymbol(symbol)
	if !ok {
		return "", model.NewSourceError(model.ErrSymbolUnsupported, symbol, "not a crypto instrument", nil)
	}
	return m, nil
}

func (s *BinanceSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	m, err := s.market(symbol)
	if err != nil {
		return 0, err
	}
	prices, err := s.client.NewListPricesService().Symbol(m).Do(ctx)
	if err != nil {
		return 0, classifyBinance(symbol, "ticker price", err)
	}
	for _, p := range prices {
		if p.Symbol != m {
			continue
		}
		v, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			return 0, model.NewSourceError(model.ErrMalformedResponse, symbol, "price", err)
		}
		return v, nil
	}
	return 0, model.NewSourceError(model.ErrDataUnavailable, symbol, "no ticker returned", nil)
}

// HistoricalBars returns at most BinanceMaxKlines bars, oldest first.
func (s *BinanceSource) HistoricalBars(ctx context.Context, symbol, timeframe string, limit int) ([]model.OHLCV, error) {
	m, err := s.market(symbol)
	if err != nil {
		return nil, err
	}
	switch timeframe {
	case Timeframe1m, Timeframe5m, Timeframe15m, Timeframe30m, Timeframe1h:
	default:
		return nil, model.NewSourceError(model.ErrDataUnavailable, symbol, fmt.Sprintf("timeframe %q", timeframe), nil)
	}
	if limit <= 0 || limit > BinanceMaxKlines {
		limit = BinanceMaxKlines
	}

	klines, err := s.client.NewKlinesService().Symbol(m).Interval(timeframe).Limit(limit).Do(ctx)
	if err != nil {
		return nil, classifyBinance(symbol, "klines", err)
	}
	bars := make([]model.OHLCV, 0, len(klines))
	for _, k := range klines {
		bar, err := klineBar(k)
		if err != nil {
			return nil, model.NewSourceError(model.ErrMalformedResponse, symbol, "kline", err)
		}
		bars = append(bars, bar)
	}
	s.log.Debug().Str("symbol", symbol).Str("timeframe", timeframe).Int("bars", len(bars)).Msg("historical bars")
	return bars, nil
}

func klineBar(k *binance.Kline) (model.OHLCV, error) {
	var bar model.OHLCV
	bar.Time = time.UnixMilli(k.OpenTime).UTC()
	for _, f := range []struct {
		raw string
		dst *float64
	}{
		{k.Open, &bar.Open}, {k.High, &bar.High}, {k.Low, &bar.Low}, {k.Close, &bar.Close}, {k.Volume, &bar.Volume},
	} {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return model.OHLCV{}, err
		}
		*f.dst = v
	}
	return bar, nil
}

// MarketDepth returns the top BinanceDepthLimit levels of the live book.
func (s *BinanceSource) MarketDepth(ctx context.Context, symbol string) (*model.MarketDepth, error) {
	m, err := s.market(symbol)
	if err != nil {
		return nil, err
	}
	res, err := s.client.NewDepthService().Symbol(m).Limit(BinanceDepthLimit).Do(ctx)
	if err != nil {
		return nil, classifyBinance(symbol, "depth", err)
	}
	depth := &model.MarketDepth{
		Symbol: symbol,
		Bids:   make([]model.DepthLevel, 0, len(res.Bids)),
		Asks:   make([]model.DepthLevel, 0, len(res.Asks)),
	}
	for _, b := range res.Bids {
		lvl, err := depthLevel(b.Price, b.Quantity)
		if err != nil {
			return nil, model.NewSourceError(model.ErrMalformedResponse, symbol, "bid level", err)
		}
		depth.Bids = append(depth.Bids, lvl)
	}
	for _, a := range res.Asks {
		lvl, err := depthLevel(a.Price, a.Quantity)
		if err != nil {
			return nil, model.NewSourceError(model.ErrMalformedResponse, symbol, "ask level", err)
		}
		depth.Asks = append(depth.Asks, lvl)
	}
	return depth, nil
}

func depthLevel(price, qty string) (model.DepthLevel, error) {
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return model.DepthLevel{}, err
	}
	q, err := strconv.ParseFloat(qty, 64)
	if err != nil {
		return model.DepthLevel{}, err
	}
	return model.DepthLevel{Price: p, Volume: q}, nil
}

// NewsSentiment is neutral; Binance has no news feed and crypto does not
// take the sentiment vote.
func (s *BinanceSource) NewsSentiment(context.Context, []string, int) (model.Sentiment, error) {
	return model.Sentiment{}, nil
}

func classifyBinance(symbol, op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case binanceCodeInvalidSymbol:
			return model.NewSourceError(model.ErrSymbolUnsupported, symbol, apiErr.Message, err)
		case binanceCodeTooManyRequests:
			return model.NewSourceError(model.ErrRateLimited, symbol, apiErr.Message, err)
		}
		return model.NewSourceError(model.ErrNetwork, symbol, op, err)
	}
	return model.NewSourceError(model.ErrorTypeOf(err), symbol, op, err)
}
