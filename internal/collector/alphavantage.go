package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"SignalSentinel/internal/model"
)

// DefaultAlphaVantageURL is the public API endpoint.
const DefaultAlphaVantageURL = "https://www.alphavantage.co"

// AlphaVantageSource implements Source using the Alpha Vantage REST API.
// Market depth is simulated from the catalog spread.
type AlphaVantageSource struct {
	BaseURL string
	APIKey  string
	Premium bool
	Client  *http.Client
	log     zerolog.Logger
}

// NewAlphaVantageSource creates a source with optional proxy support.
func NewAlphaVantageSource(baseURL, apiKey, proxyURL string, premium bool, timeout time.Duration, log zerolog.Logger) *AlphaVantageSource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	// The endpoint path is appended per call; accept a base that already has it.
	baseURL = strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/query")
	if baseURL == "" {
		baseURL = DefaultAlphaVantageURL
	}
	return &AlphaVantageSource{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Premium: premium,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		log: log.With().Str("source", "alphavantage").Logger(),
	}
}

func (s *AlphaVantageSource) Name() string { return "alphavantage" }

// SupportsCorrelation reports that intraday history is deep enough for the
// correlation engine.
func (s *AlphaVantageSource) SupportsCorrelation() bool { return true }

// ProviderStatus summarizes the configured plan.
type ProviderStatus struct {
	Provider         string `json:"provider"`
	Plan             string `json:"plan"`
	Premium          bool   `json:"is_premium"`
	DailyLimit       string `json:"daily_limit"`
	SupportedSymbols int    `json:"supported_symbols"`
	APIKey           string `json:"api_key"`
}

// Status reports plan details with the API key masked.
func (s *AlphaVantageSource) Status() ProviderStatus {
	st := ProviderStatus{
		Provider:         "Alpha Vantage",
		Plan:             "Free Plan",
		Premium:          s.Premium,
		DailyLimit:       "25 calls/day",
		SupportedSymbols: len(instruments),
		APIKey:           "None",
	}
	if s.Premium {
		st.Plan = "Premium"
		st.DailyLimit = "Unlimited"
	}
	if len(s.APIKey) > 8 {
		st.APIKey = s.APIKey[:8] + "..."
	} else if s.APIKey != "" {
		st.APIKey = "..."
	}
	return st
}

func (s *AlphaVantageSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	inst, ok := LookupInstrument(symbol)
	if !ok {
		return 0, model.NewSourceError(model.ErrSymbolUnsupported, symbol, "not in catalog", nil)
	}

	params := url.Values{}
	key, field := "Realtime Currency Exchange Rate", "5. Exchange Rate"
	switch inst.Class {
	case model.AssetStock:
		params.Set("function", "GLOBAL_QUOTE")
		params.Set("symbol", inst.Symbol)
		key, field = "Global Quote", "05. price"
	default:
		params.Set("function", "CURRENCY_EXCHANGE_RATE")
		params.Set("from_currency", inst.Base)
		params.Set("to_currency", inst.Quote)
	}

	raw, err := s.query(ctx, symbol, params)
	if err != nil {
		return 0, err
	}
	var quote map[string]string
	if err := decodeSection(raw, key, &quote); err != nil {
		return 0, model.NewSourceError(model.ErrMalformedResponse, symbol, "price payload", err)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(quote[field]), 64)
	if err != nil || price <= 0 {
		return 0, model.NewSourceError(model.ErrMalformedResponse, symbol, fmt.Sprintf("field %q", field), err)
	}
	s.log.Debug().Str("symbol", symbol).Float64("price", price).Msg("current price")
	return price, nil
}

// intervals maps timeframes to Alpha Vantage interval names.
var intervals = map[string]string{
	Timeframe1m:  "1min",
	Timeframe5m:  "5min",
	Timeframe15m: "15min",
	Timeframe30m: "30min",
	Timeframe1h:  "60min",
}

func (s *AlphaVantageSource) HistoricalBars(ctx context.Context, symbol, timeframe string, limit int) ([]model.OHLCV, error) {
	inst, ok := LookupInstrument(symbol)
	if !ok {
		return nil, model.NewSourceError(model.ErrSymbolUnsupported, symbol, "not in catalog", nil)
	}
	interval, ok := intervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	outputSize := "compact"
	if limit > 100 {
		outputSize = "full"
	}

	params := url.Values{}
	switch inst.Class {
	case model.AssetForex:
		params.Set("function", "FX_INTRADAY")
		params.Set("from_symbol", inst.Base)
		params.Set("to_symbol", inst.Quote)
		params.Set("interval", interval)
		params.Set("outputsize", outputSize)
	case model.AssetStock:
		params.Set("function", "TIME_SERIES_INTRADAY")
		params.Set("symbol", inst.Symbol)
		params.Set("interval", interval)
		params.Set("outputsize", outputSize)
	case model.AssetCrypto:
		// No intraday crypto endpoint; daily closes stand in.
		params.Set("function", "DIGITAL_CURRENCY_DAILY")
		params.Set("symbol", inst.Base)
		params.Set("market", inst.Quote)
	}

	raw, err := s.query(ctx, symbol, params)
	if err != nil {
		return nil, err
	}
	var rows map[string]map[string]string
	if err := decodeSection(raw, seriesKey(raw), &rows); err != nil {
		return nil, model.NewSourceError(model.ErrMalformedResponse, symbol, "time series payload", err)
	}

	loc := seriesLocation(raw)
	bars := make([]model.OHLCV, 0, len(rows))
	for ts, row := range rows {
		t, err := parseTimestamp(ts, loc)
		if err != nil {
			return nil, model.NewSourceError(model.ErrMalformedResponse, symbol, "timestamp", err)
		}
		bar, err := standardize(inst.Class, row)
		if err != nil {
			return nil, model.NewSourceError(model.ErrMalformedResponse, symbol, ts, err)
		}
		bar.Time = t
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	s.log.Debug().Str("symbol", symbol).Str("timeframe", timeframe).Int("bars", len(bars)).Msg("historical bars")
	return bars, nil
}

// SimulatesDepth reports that MarketDepth is derived from the quote.
func (s *AlphaVantageSource) SimulatesDepth(string) bool { return true }

// MarketDepth simulates a book because the API has no depth endpoint.
func (s *AlphaVantageSource) MarketDepth(ctx context.Context, symbol string) (*model.MarketDepth, error) {
	price, err := s.CurrentPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return SimulatedDepth(symbol, price), nil
}

type newsItem struct {
	Title     string          `json:"title"`
	Published string          `json:"time_published"`
	Score     json.RawMessage `json:"overall_sentiment_score"`
	Label     string          `json:"overall_sentiment_label"`
}

// NewsSentiment averages the overall score of the returned feed. A payload
// without a feed is neutral.
func (s *AlphaVantageSource) NewsSentiment(ctx context.Context, symbols []string, limit int) (model.Sentiment, error) {
	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	params.Set("limit", strconv.Itoa(limit))
	if len(symbols) > 0 {
		params.Set("tickers", strings.Join(symbols, ","))
	}

	raw, err := s.query(ctx, strings.Join(symbols, ","), params)
	if err != nil {
		return model.Sentiment{}, err
	}
	if _, ok := raw["feed"]; !ok {
		return model.Sentiment{}, nil
	}
	var feed []newsItem
	if err := json.Unmarshal(raw["feed"], &feed); err != nil {
		return model.Sentiment{}, model.NewSourceError(model.ErrMalformedResponse, "", "news feed", err)
	}
	return summarizeFeed(feed, limit), nil
}

func summarizeFeed(feed []newsItem, limit int) model.Sentiment {
	out := model.Sentiment{NewsCount: len(feed)}
	items := feed
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	var sum float64
	var scored int
	for _, item := range items {
		score, err := parseLooseFloat(item.Score)
		if err != nil {
			continue
		}
		sum += score
		scored++

		label := strings.ToLower(item.Label)
		switch label {
		case "bullish":
			out.Breakdown.Bullish++
		case "bearish":
			out.Breakdown.Bearish++
		default:
			out.Breakdown.Neutral++
		}
		if len(out.TopNews) < 10 {
			title := item.Title
			if len(title) > 100 {
				title = title[:100]
			}
			out.TopNews = append(out.TopNews, model.Headline{Title: title, Score: score, Label: label, Published: item.Published})
		}
	}
	if scored > 0 {
		out.Overall = sum / float64(scored)
	}
	return out
}

// query performs one API call and classifies provider-level errors.
func (s *AlphaVantageSource) query(ctx context.Context, symbol string, params url.Values) (map[string]json.RawMessage, error) {
	params.Set("apikey", s.APIKey)
	endpoint := s.BaseURL + "/query?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, model.NewSourceError(model.ErrorTypeOf(err), symbol, params.Get("function"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, model.NewSourceError(model.ErrRateLimited, symbol, "status 429", nil)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, model.NewSourceError(model.ErrNetwork, symbol, fmt.Sprintf("status %d, body: %s", resp.StatusCode, string(body)), nil)
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, model.NewSourceError(model.ErrMalformedResponse, symbol, "decode body", err)
	}
	if msg, ok := stringField(raw, "Error Message"); ok {
		return nil, model.NewSourceError(model.ErrSymbolUnsupported, symbol, msg, nil)
	}
	for _, k := range []string{"Note", "Information"} {
		if msg, ok := stringField(raw, k); ok {
			return nil, model.NewSourceError(model.ErrRateLimited, symbol, msg, nil)
		}
	}
	return raw, nil
}

func stringField(raw map[string]json.RawMessage, key string) (string, bool) {
	v, ok := raw[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return string(v), true
	}
	return s, true
}

func decodeSection(raw map[string]json.RawMessage, key string, dest any) error {
	section, ok := raw[key]
	if !ok || key == "" {
		return fmt.Errorf("missing section %q", key)
	}
	return json.Unmarshal(section, dest)
}

// seriesKey finds the "Time Series ..." section of a payload.
func seriesKey(raw map[string]json.RawMessage) string {
	for k := range raw {
		if strings.HasPrefix(k, "Time Series") {
			return k
		}
	}
	return ""
}

// seriesLocation reads the "Time Zone" entry of the payload's Meta Data.
// Stock intraday series report US/Eastern, FX and crypto report UTC.
func seriesLocation(raw map[string]json.RawMessage) *time.Location {
	var meta map[string]string
	if err := decodeSection(raw, "Meta Data", &meta); err != nil {
		return time.UTC
	}
	for k, v := range meta {
		if !strings.HasSuffix(k, "Time Zone") {
			continue
		}
		if loc, err := time.LoadLocation(strings.TrimSpace(v)); err == nil {
			return loc
		}
	}
	return time.UTC
}

// parseTimestamp reads ts as wall-clock time in loc and returns it in UTC.
func parseTimestamp(ts string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, ts, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", ts)
}

// field returns the value of the column whose name ends with suffix, e.g.
// "1. open" for "open".
func field(row map[string]string, suffix string) (float64, bool) {
	for k, v := range row {
		if strings.HasSuffix(k, suffix) {
			f, err := strconv.ParseFloat(v, 64)
			return f, err == nil
		}
	}
	return 0, false
}

// standardize converts one API row into a bar. Forex rows carry no volume;
// crypto daily rows are reduced to close with a synthetic ±2% range.
func standardize(class model.AssetClass, row map[string]string) (model.OHLCV, error) {
	if class == model.AssetCrypto {
		c, ok := cryptoClose(row)
		if !ok {
			return model.OHLCV{}, fmt.Errorf("no close column")
		}
		return model.OHLCV{Open: c, High: c * 1.02, Low: c * 0.98, Close: c, Volume: 10000}, nil
	}

	o, ok1 := field(row, "open")
	h, ok2 := field(row, "high")
	l, ok3 := field(row, "low")
	c, ok4 := field(row, "close")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return model.OHLCV{}, fmt.Errorf("incomplete OHLC row")
	}
	bar := model.OHLCV{Open: o, High: h, Low: l, Close: c, Volume: 1000}
	if class == model.AssetStock {
		v, ok := field(row, "volume")
		if !ok {
			return model.OHLCV{}, fmt.Errorf("missing volume")
		}
		bar.Volume = v
	}
	return bar, nil
}

// cryptoClose prefers a USD close column and falls back to any close.
func cryptoClose(row map[string]string) (float64, bool) {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var fallback string
	for _, k := range keys {
		lk := strings.ToLower(k)
		if !strings.Contains(lk, "close") {
			continue
		}
		if strings.Contains(lk, "usd") {
			f, err := strconv.ParseFloat(row[k], 64)
			return f, err == nil
		}
		if fallback == "" {
			fallback = k
		}
	}
	if fallback == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(row[fallback], 64)
	return f, err == nil
}

func parseLooseFloat(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}
