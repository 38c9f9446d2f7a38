package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"SignalSentinel/internal/cache"
	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/config"
	"SignalSentinel/internal/correlation"
	"SignalSentinel/internal/engine"
	"SignalSentinel/internal/logger"
	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/recorder"
	"SignalSentinel/internal/strategy"
)

// app holds the components shared by every command.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	reg     *prometheus.Registry
	metrics *metrics.Recorder

	src    *collector.CachedSource
	status collector.ProviderStatus
	store  recorder.Recorder
	corr   *correlation.Engine // nil when the source has no usable history
	engine *engine.Engine
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a := &app{cfg: cfg, log: log, reg: reg, metrics: m}

	raw, status := newSource(cfg, log)
	a.status = status
	a.src = collector.NewCachedSource(raw, cache.New(cfg.CacheOptions(), log, m), log)
	log.Info().Str("source", a.src.Name()).Bool("premium", cfg.DataSource.IsPremium).Msg("data source ready")

	a.store, err = newStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init %s store: %w", cfg.Store.Driver, err)
	}

	var signaler engine.CorrelationSignaler
	if collector.SupportsCorrelation(a.src) {
		a.corr = correlation.NewEngine(a.src, a.store, cfg.Correlation, log, m)
		signaler = correlation.NewSignal(a.store, a.src, correlation.NewPeerTrends(a.src, log), log)
	} else {
		log.Info().Msg("data source does not support correlations, vote disabled")
	}

	a.engine = engine.New(a.src, signaler, engine.Options{
		Workers: cfg.Workers,
		Rule:    strategy.TechnicalRule{BuyThreshold: cfg.Signal.BuyThreshold, SellThreshold: cfg.Signal.SellThreshold},
		Depth:   strategy.DepthAnalyzer{Threshold: cfg.Signal.DepthThreshold, Levels: cfg.Signal.DepthLevels},
	}, log, m)
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error().Err(err).Msg("close store")
	}
}

func newSource(cfg *config.Config, log zerolog.Logger) (collector.Source, collector.ProviderStatus) {
	var (
		src    collector.Source
		status collector.ProviderStatus
	)
	switch cfg.DataSource.Provider {
	case "mock":
		src = &collector.MockSource{Price: 100, Correlate: true}
		status = collector.ProviderStatus{
			Provider:         "mock",
			Plan:             "Development",
			SupportedSymbols: len(collector.Symbols()),
		}
	default:
		av := collector.NewAlphaVantageSource(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy,
			cfg.DataSource.IsPremium, cfg.DataSource.Timeout, log)
		src, status = av, av.Status()
	}

	if cfg.DataSource.Crypto == "binance" {
		bn := collector.NewBinanceSource(cfg.DataSource.BinanceURL, cfg.Proxy, cfg.DataSource.Timeout, log)
		src = collector.NewRoutedSource(src, map[model.AssetClass]collector.Source{model.AssetCrypto: bn})
		status.Provider += " + Binance (crypto)"
	}
	return src, status
}

func newStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (recorder.Recorder, error) {
	switch cfg.Store.Driver {
	case "redis":
		r := cfg.Store.Redis
		return recorder.NewRedisStore(ctx, recorder.RedisOptions{
			Addr: r.Addr, Password: r.Password, DB: r.DB, Prefix: r.Prefix,
		}, log)
	case "memory":
		return recorder.NewMemoryStore(), nil
	default:
		if dir := filepath.Dir(cfg.Store.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		return recorder.NewSQLiteRecorder(cfg.Store.SQLitePath, log)
	}
}
