package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/correlation"
	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/strategy"
)

// Bar requests per analysis.
const (
	ShortBars = 500
	LongBars  = 200
	TrendBars = 100
	NewsLimit = correlation.SentimentNewsLimit
)

// CorrelationSignaler produces the cross-asset vote for a symbol.
type CorrelationSignaler interface {
	Evaluate(ctx context.Context, symbol string) (*correlation.Reading, error)
}

// Options tunes the decision engine.
type Options struct {
	Workers int
	Rule    strategy.TechnicalRule
	Depth   strategy.DepthAnalyzer
}

// DefaultOptions returns the standard rules with a single worker.
func DefaultOptions() Options {
	return Options{
		Workers: 1,
		Rule:    strategy.DefaultTechnicalRule(),
		Depth:   strategy.DefaultDepthAnalyzer(),
	}
}

// Engine runs the full per-symbol analysis.
type Engine struct {
	src     collector.Source
	corr    CorrelationSignaler
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// New creates an engine. corr is dropped when src does not support the
// correlation signal.
func New(src collector.Source, corr CorrelationSignaler, opts Options, log zerolog.Logger, m *metrics.Recorder) *Engine {
	if !collector.SupportsCorrelation(src) {
		corr = nil
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Engine{
		src:     src,
		corr:    corr,
		opts:    opts,
		log:     log.With().Str("component", "engine").Str("source", src.Name()).Logger(),
		metrics: m,
		now:     time.Now,
	}
}

// HasCorrelation reports whether the correlation vote is wired.
func (e *Engine) HasCorrelation() bool { return e.corr != nil }

// Analyze produces a decision for symbol. It never returns an error: a
// failed price fetch or missing long-horizon analysis is reported on the
// result's ErrorType.
func (e *Engine) Analyze(ctx context.Context, symbol string) *model.AnalysisResult {
	start := e.now()
	log := e.log.With().Str("symbol", symbol).Logger()
	res := &model.AnalysisResult{
		Symbol:     symbol,
		AssetClass: collector.AssetClassOf(symbol),
	}

	price, err := e.src.CurrentPrice(ctx, symbol)
	if err != nil {
		res.ErrorType = model.ErrorTypeOf(err)
		res.ErrorMessage = err.Error()
		res.Timestamp = e.now()
		log.Warn().Err(err).Str("error_type", string(res.ErrorType)).Msg("current price unavailable")
		e.metrics.RecordDecision(symbol, "ERROR", 0, e.now().Sub(start))
		return res
	}
	res.CurrentPrice = price

	short := e.technical(ctx, log, symbol, collector.Timeframe1m, ShortBars)
	long := e.technical(ctx, log, symbol, collector.Timeframe15m, LongBars)
	res.Signals.TechnicalShort = short.signal
	res.Signals.TechnicalLong = long.signal
	res.Factors = long.reading.Factors

	trendBars, err := e.src.HistoricalBars(ctx, symbol, collector.Timeframe1m, TrendBars)
	if err != nil {
		log.Warn().Err(err).Msg("trend bars unavailable")
	}
	pred := strategy.PredictTrend(trendBars)
	res.Signals.TrendPrediction = pred.Signal
	res.PredictedPrice = pred.Price

	res.Signals.DepthImbalance = e.depth(ctx, log, symbol)
	res.Signals.Correlation = e.correlation(ctx, log, symbol)

	if res.AssetClass.IsEquity() {
		if news, err := e.src.NewsSentiment(ctx, []string{symbol}, NewsLimit); err == nil {
			res.Sentiment = &news
		}
	}

	decision := strategy.Fuse(res.Signals)
	res.FinalSignal = decision.Signal
	res.Reason = decision.Reason

	final, ok := decision.Signal.Get()
	if !ok {
		res.ErrorType = decision.ErrorType
		res.ErrorMessage = decision.Reason
		res.Timestamp = e.now()
		log.Warn().Str("error_type", string(res.ErrorType)).Msg(decision.Reason)
		e.metrics.RecordDecision(symbol, "ERROR", price, e.now().Sub(start))
		return res
	}

	atr, ok := calculator.LatestATR(trendBars, calculator.ATRPeriod)
	if !ok {
		atr = math.NaN()
	}
	levels := strategy.CalculateRiskLevels(price, final, atr)
	res.StopLoss = levels.StopLoss
	res.TakeProfit = levels.TakeProfit
	res.ATR = levels.ATR
	res.Timestamp = e.now()

	elapsed := e.now().Sub(start)
	e.metrics.RecordDecision(symbol, string(final), price, elapsed)
	log.Info().
		Float64("price", price).
		Str("signal", string(final)).
		Str("technical_short", res.Signals.TechnicalShort.String()).
		Str("technical_long", res.Signals.TechnicalLong.String()).
		Str("trend", res.Signals.TrendPrediction.String()).
		Str("depth", res.Signals.DepthImbalance.String()).
		Str("correlation", res.Signals.Correlation.String()).
		Dur("duration", elapsed).
		Msg("analysis complete")
	return res
}

type technicalResult struct {
	signal  model.SignalOption
	reading strategy.TechnicalReading
}

func (e *Engine) technical(ctx context.Context, log zerolog.Logger, symbol, timeframe string, limit int) technicalResult {
	bars, err := e.src.HistoricalBars(ctx, symbol, timeframe, limit)
	if err != nil {
		log.Warn().Err(err).Str("timeframe", timeframe).Msg("technical bars unavailable")
		return technicalResult{signal: model.Unavailable()}
	}
	if len(bars) == 0 {
		log.Warn().Str("timeframe", timeframe).Msg("empty bar series")
		return technicalResult{signal: model.Unavailable()}
	}
	reading := e.opts.Rule.Evaluate(calculator.ComputeFrame(bars))
	return technicalResult{signal: model.Decided(reading.Signal), reading: reading}
}

func (e *Engine) depth(ctx context.Context, log zerolog.Logger, symbol string) model.SignalOption {
	depth, err := e.src.MarketDepth(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Msg("market depth unavailable")
		return model.Unavailable()
	}
	sig, _ := e.opts.Depth.Evaluate(depth)
	return model.Decided(sig)
}

func (e *Engine) correlation(ctx context.Context, log zerolog.Logger, symbol string) model.SignalOption {
	if e.corr == nil {
		return model.Unavailable()
	}
	reading, err := e.corr.Evaluate(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Msg("correlation signal unavailable")
		return model.Unavailable()
	}
	return model.Decided(reading.Signal)
}

// AnalyzeAll analyzes symbols with at most Options.Workers in flight.
// Results keep the order of symbols.
func (e *Engine) AnalyzeAll(ctx context.Context, symbols []string) []*model.AnalysisResult {
	results := make([]*model.AnalysisResult, len(symbols))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < e.opts.Workers && w < len(symbols); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.Analyze(ctx, symbols[i])
			}
		}()
	}

	for i := range symbols {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
