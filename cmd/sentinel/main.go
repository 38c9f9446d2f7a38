package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"SignalSentinel/internal/api"
	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/publisher"
	"SignalSentinel/internal/scheduler"
)

func main() {
	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cliApp := &cli.App{
		Name:  "sentinel",
		Usage: "multi-signal trading decision service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/config.yaml",
				EnvVars: []string{"CONFIG_PATH"},
				Usage:   "YAML config file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before the config; missing is fine",
			},
		},
		Before: loadEnvFile,
		Action: runService,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the scheduler, Telegram bot and HTTP API",
				Action: runService,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "run-on-start", EnvVars: []string{"RUN_ON_START"}, Usage: "recompute and sweep once at startup"},
				},
			},
			{
				Name:      "analyze",
				Usage:     "analyze symbols once and print the results as JSON",
				ArgsUsage: "[SYMBOL...]",
				Action:    analyzeOnce,
			},
			{
				Name:   "correlate",
				Usage:  "recompute the correlation snapshot for the watch list",
				Action: correlateOnce,
			},
			{
				Name:   "symbols",
				Usage:  "list supported symbols",
				Action: listSymbols,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		boot.Fatal().Err(err).Msg("sentinel")
	}
}

func loadEnvFile(c *cli.Context) error {
	path := c.String("env-file")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func runService(c *cli.Context) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	a, err := newApp(ctx, c.String("config"))
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, log := a.cfg, a.log
	log.Info().Str("config", c.String("config")).Strs("symbols", cfg.Symbols).Msg("SignalSentinel starting")

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
	var n scheduler.Notifier
	if tn.Enabled() {
		n = tn
	} else {
		log.Warn().Msg("telegram not configured, alerts are logged only")
	}

	var recomputer scheduler.Recomputer
	if a.corr != nil {
		recomputer = a.corr
	}
	sched := scheduler.NewScheduler(ctx, a.engine, recomputer, a.store, n, cfg.Symbols, log)
	sched.Balance = cfg.Risk.AccountBalance

	if cfg.Kafka.Enabled() {
		kp, err := publisher.NewKafkaPublisher(publisher.KafkaOptions{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			Compression:  cfg.Kafka.Compression,
			WriteTimeout: cfg.Kafka.Timeout,
		}, log, a.metrics)
		if err != nil {
			return err
		}
		defer func() {
			if err := kp.Close(); err != nil {
				log.Error().Err(err).Msg("close kafka publisher")
			}
		}()
		sched.Publishers = append(sched.Publishers, kp)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publishing enabled")
	}

	var hub *api.Hub
	if cfg.HTTP.Stream && !cfg.HTTP.Disabled {
		hub = api.NewHub(log, a.metrics)
		defer hub.Close()
		sched.Publishers = append(sched.Publishers, hub)
	}

	if err := sched.RegisterAll(cfg.Schedule.DecisionCron, cfg.Schedule.CorrelationCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if tn.Enabled() && cfg.Telegram.Commands {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	var srv *api.Server
	if !cfg.HTTP.Disabled {
		srv = api.NewServer(cfg.HTTP.Addr, &api.Handler{
			Engine:       a.engine,
			Decisions:    a.store,
			Correlations: a.store,
			Source:       a.src,
			Symbols:      cfg.Symbols,
			Status:       a.status,
			Stream:       hub,
		}, a.reg, log)
		srv.Start()
	}

	if cfg.Schedule.RunOnStart || c.Bool("run-on-start") {
		log.Info().Msg("run on start enabled, executing correlation and decision jobs now")
		go sched.RunNow()
	}

	log.Info().Msg("SignalSentinel is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info().Msg("shutdown signal received, stopping...")
	case <-ctx.Done():
	}

	cancel()
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}
	log.Info().Msg("SignalSentinel stopped")
	return nil
}

func analyzeOnce(c *cli.Context) error {
	a, err := newApp(c.Context, c.String("config"))
	if err != nil {
		return err
	}
	defer a.Close()

	symbols := a.cfg.Symbols
	if c.NArg() > 0 {
		symbols = nil
		for _, s := range c.Args().Slice() {
			symbols = append(symbols, strings.ToUpper(s))
		}
	}
	return printJSON(a.engine.AnalyzeAll(c.Context, symbols))
}

func correlateOnce(c *cli.Context) error {
	a, err := newApp(c.Context, c.String("config"))
	if err != nil {
		return err
	}
	defer a.Close()

	if a.corr == nil {
		return errors.New("data source does not support correlations")
	}
	rep, err := a.corr.Recompute(c.Context, a.cfg.Symbols)
	if err != nil {
		return err
	}
	return printJSON(rep)
}

func listSymbols(*cli.Context) error {
	for _, s := range collector.Symbols() {
		fmt.Printf("%-8s %s\n", s, collector.AssetClassOf(s))
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
