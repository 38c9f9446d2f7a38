package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"SignalSentinel/internal/correlation"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/recorder"
)

// Parser accepts five or six field specs and descriptors such as "@every 5m".
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

const sendRetries = 3

// Analyzer runs the decision engine.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string) *model.AnalysisResult
	AnalyzeAll(ctx context.Context, symbols []string) []*model.AnalysisResult
}

// Recomputer refreshes the correlation snapshot.
type Recomputer interface {
	Recompute(ctx context.Context, symbols []string) (*correlation.Report, error)
}

// Notifier delivers formatted messages.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Publisher receives every recorded decision.
type Publisher interface {
	PublishDecision(ctx context.Context, rec *recorder.DecisionRecord) error
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron         *cron.Cron
	Engine       Analyzer
	Correlations Recomputer
	Store        recorder.DecisionStore
	Notifier     Notifier
	Publishers   []Publisher
	Symbols      []string
	Balance      float64
	Ctx          context.Context

	log zerolog.Logger
}

// NewScheduler creates a new Scheduler. corr and n may be nil.
func NewScheduler(ctx context.Context, eng Analyzer, corr Recomputer, store recorder.DecisionStore, n Notifier, symbols []string, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	return &Scheduler{
		Cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLogger(cronLogger{log}),
			cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
		),
		Engine:       eng,
		Correlations: corr,
		Store:        store,
		Notifier:     n,
		Symbols:      symbols,
		Ctx:          ctx,
		log:          log,
	}
}

// RegisterAll registers the decision sweep and, when correlations are
// wired, the correlation recompute.
func (s *Scheduler) RegisterAll(decisionCron, correlationCron string) error {
	if _, err := s.Cron.AddFunc(decisionCron, func() { s.Sweep(s.Ctx) }); err != nil {
		return fmt.Errorf("register decision sweep: %w", err)
	}
	if s.Correlations == nil {
		return nil
	}
	if _, err := s.Cron.AddFunc(correlationCron, func() { s.RecomputeCorrelations(s.Ctx) }); err != nil {
		return fmt.Errorf("register correlation recompute: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow refreshes correlations and then sweeps once (for RUN_ON_START).
func (s *Scheduler) RunNow() {
	if s.Correlations != nil {
		s.RecomputeCorrelations(s.Ctx)
	}
	s.Sweep(s.Ctx)
}

// SweepReport summarizes one decision sweep.
type SweepReport struct {
	RunID    string
	Analyzed int
	Failed   int
	Alerts   int
}

// Sweep analyzes every watched symbol, stores the decisions and alerts on
// directional or changed decisions.
func (s *Scheduler) Sweep(ctx context.Context) SweepReport {
	rep := SweepReport{RunID: uuid.NewString()}
	log := s.log.With().Str("run_id", rep.RunID).Logger()
	start := time.Now()

	for _, res := range s.Engine.AnalyzeAll(ctx, s.Symbols) {
		rep.Analyzed++
		if res.Failed() {
			rep.Failed++
		}

		prev, err := s.Store.LatestDecision(ctx, res.Symbol)
		if err != nil {
			if !errors.Is(err, recorder.ErrNotFound) {
				log.Warn().Err(err).Str("symbol", res.Symbol).Msg("load previous decision")
			}
			prev = nil
		}
		rec := recorder.NewDecisionRecord(res)
		if err := s.Store.RecordDecision(ctx, rec); err != nil {
			log.Error().Err(err).Str("symbol", res.Symbol).Msg("record decision")
		}
		for _, p := range s.Publishers {
			if err := p.PublishDecision(ctx, rec); err != nil {
				log.Warn().Err(err).Str("symbol", res.Symbol).Msg("publish decision")
			}
		}

		if !shouldAlert(prev, res) {
			continue
		}
		rep.Alerts++
		s.trySend(ctx, notifier.FormatAlert(notifier.Alert{Result: res, Previous: prev, Balance: s.Balance}))
	}

	log.Info().
		Int("analyzed", rep.Analyzed).
		Int("failed", rep.Failed).
		Int("alerts", rep.Alerts).
		Dur("duration", time.Since(start)).
		Msg("decision sweep complete")
	return rep
}

// shouldAlert is true for BUY/SELL and for any change from the previous
// stored signal. Failed analyses only log.
func shouldAlert(prev *recorder.DecisionRecord, res *model.AnalysisResult) bool {
	if res.Failed() {
		return false
	}
	if sig, ok := res.FinalSignal.Get(); ok && sig != model.SignalHold {
		return true
	}
	return prev != nil && prev.Signal != res.FinalSignal
}

// RecomputeCorrelations refreshes the correlation snapshot.
func (s *Scheduler) RecomputeCorrelations(ctx context.Context) (*correlation.Report, error) {
	rep, err := s.Correlations.Recompute(ctx, s.Symbols)
	if err != nil {
		s.log.Error().Err(err).Msg("correlation recompute failed")
		return rep, err
	}
	return rep, nil
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch strings.ToLower(fields[0]) {
	case "/status":
		var records []*recorder.DecisionRecord
		for _, sym := range s.Symbols {
			rec, err := s.Store.LatestDecision(ctx, sym)
			if err != nil {
				continue
			}
			records = append(records, rec)
		}
		return notifier.FormatStatus(records)
	case "/analyze":
		if len(fields) < 2 {
			return "usage: /analyze SYMBOL"
		}
		res := s.Engine.Analyze(ctx, strings.ToUpper(fields[1]))
		return notifier.FormatAlert(notifier.Alert{Result: res, Balance: s.Balance})
	case "/correlate":
		if s.Correlations == nil {
			return "correlations are not enabled for this data source"
		}
		rep, err := s.RecomputeCorrelations(ctx)
		if err != nil {
			return fmt.Sprintf("❌ correlation recompute failed: %v", err)
		}
		return notifier.FormatCorrelationReport(rep)
	case "/symbols":
		return strings.Join(s.Symbols, ", ")
	default:
		return "Commands:\n• /status\n• /analyze SYMBOL\n• /correlate\n• /symbols"
	}
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(ctx, text, sendRetries); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
