package correlation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/recorder"
)

// ErrTooFewSymbols is returned when fewer than two symbols have enough
// history. The stored snapshot is left untouched in that case.
var ErrTooFewSymbols = errors.New("correlation: fewer than two symbols with enough history")

// Config controls a correlation recompute.
type Config struct {
	Threshold      float64 `yaml:"threshold" default:"0.3" validate:"gt=0,lte=1"`
	HistoricalDays int     `yaml:"historical_days" default:"90" validate:"gte=1"`
	Timeframe      string  `yaml:"timeframe" default:"15m" validate:"oneof=1m 5m 15m 30m 1h"`
	MinDataPoints  int     `yaml:"min_data_points" default:"50" validate:"gte=3"`
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Threshold:      0.3,
		HistoricalDays: 90,
		Timeframe:      collector.Timeframe15m,
		MinDataPoints:  50,
	}
}

// BarsPerDay returns how many bars of timeframe fit in a day.
func BarsPerDay(timeframe string) int {
	switch timeframe {
	case collector.Timeframe1m:
		return 1440
	case collector.Timeframe5m:
		return 288
	case collector.Timeframe15m:
		return 96
	case collector.Timeframe30m:
		return 48
	case collector.Timeframe1h:
		return 24
	default:
		return 96
	}
}

// Report summarizes one recompute.
type Report struct {
	RunID    string
	Symbols  []string
	Dropped  []string
	Pairs    int
	Duration time.Duration
}

// Engine computes pairwise return correlations and replaces the stored
// snapshot.
type Engine struct {
	src     collector.Source
	store   recorder.CorrelationStore
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// NewEngine creates a correlation engine.
func NewEngine(src collector.Source, store recorder.CorrelationStore, cfg Config, log zerolog.Logger, m *metrics.Recorder) *Engine {
	return &Engine{
		src:     src,
		store:   store,
		cfg:     cfg,
		log:     log.With().Str("component", "correlation").Logger(),
		metrics: m,
		now:     time.Now,
	}
}

type point struct {
	t   time.Time
	ret float64
}

// Recompute fetches history for every symbol, keeps pairs whose |r| reaches
// the threshold and atomically replaces the stored snapshot.
func (e *Engine) Recompute(ctx context.Context, symbols []string) (*Report, error) {
	start := e.now()
	report := &Report{RunID: uuid.NewString()}
	log := e.log.With().Str("run_id", report.RunID).Logger()

	limit := BarsPerDay(e.cfg.Timeframe) * e.cfg.HistoricalDays
	series := make(map[string][]point)

	for _, sym := range uniqueSorted(symbols) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := e.src.HistoricalBars(ctx, sym, e.cfg.Timeframe, limit)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Str("error_type", string(model.ErrorTypeOf(err))).
				Msg("history unavailable, symbol dropped")
			report.Dropped = append(report.Dropped, sym)
			continue
		}
		rets, valid := returns(bars)
		if valid < e.cfg.MinDataPoints {
			log.Info().Str("symbol", sym).Int("points", valid).Msg("not enough history, symbol dropped")
			report.Dropped = append(report.Dropped, sym)
			continue
		}
		series[sym] = rets
		report.Symbols = append(report.Symbols, sym)
	}

	if len(report.Symbols) < 2 {
		return report, ErrTooFewSymbols
	}

	computedAt := e.now()
	var entries []model.CorrelationEntry
	for i := 0; i < len(report.Symbols); i++ {
		for j := i + 1; j < len(report.Symbols); j++ {
			a, b := report.Symbols[i], report.Symbols[j]
			r, n, ok := pearson(series[a], series[b], e.cfg.MinDataPoints)
			if !ok || math.Abs(r) < e.cfg.Threshold {
				continue
			}
			sa, sb := model.CanonicalPair(a, b)
			entries = append(entries, model.CorrelationEntry{
				SymbolA:     sa,
				SymbolB:     sb,
				Coefficient: r,
				SampleSize:  n,
				RunID:       report.RunID,
				ComputedAt:  computedAt,
			})
		}
	}

	if err := e.store.ReplaceAll(ctx, entries); err != nil {
		return report, fmt.Errorf("store correlations: %w", err)
	}

	report.Pairs = len(entries)
	report.Duration = e.now().Sub(start)
	e.metrics.RecordCorrelationPairs(report.Pairs)
	log.Info().
		Int("symbols", len(report.Symbols)).
		Int("dropped", len(report.Dropped)).
		Int("pairs", report.Pairs).
		Dur("duration", report.Duration).
		Msg("correlations recomputed")
	return report, nil
}

func uniqueSorted(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// returns converts bars to percentage returns stamped with the later bar's
// time. Bars with a missing or non-positive close are skipped. The second
// value is the number of valid closes.
func returns(bars []model.OHLCV) ([]point, int) {
	sorted := append([]model.OHLCV(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	var out []point
	valid := 0
	prev := math.NaN()
	for _, b := range sorted {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close <= 0 {
			// A gap drops the returns on both sides of it.
			prev = math.NaN()
			continue
		}
		valid++
		if !math.IsNaN(prev) {
			out = append(out, point{t: b.Time, ret: (b.Close - prev) / prev})
		}
		prev = b.Close
	}
	return out, valid
}

// pearson correlates the returns two series share by timestamp. ok is false
// when the overlap is below minOverlap or either side has zero variance.
func pearson(a, b []point, minOverlap int) (r float64, n int, ok bool) {
	var xs, ys []float64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].t.Before(b[j].t):
			i++
		case b[j].t.Before(a[i].t):
			j++
		default:
			xs = append(xs, a[i].ret)
			ys = append(ys, b[j].ret)
			i++
			j++
		}
	}
	n = len(xs)
	if n < minOverlap || n < 2 {
		return 0, n, false
	}

	var mx, my float64
	for k := range xs {
		mx += xs[k]
		my += ys[k]
	}
	mx /= float64(n)
	my /= float64(n)

	var cov, vx, vy float64
	for k := range xs {
		dx, dy := xs[k]-mx, ys[k]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, n, false
	}
	r = cov / math.Sqrt(vx*vy)
	return math.Max(-1, math.Min(1, r)), n, true
}
