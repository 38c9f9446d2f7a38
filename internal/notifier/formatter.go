package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"SignalSentinel/internal/correlation"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/recorder"
	"SignalSentinel/internal/strategy"
)

// Alert is a decision worth pushing to the chat.
type Alert struct {
	Result   *model.AnalysisResult
	Previous *recorder.DecisionRecord
	// Balance enables the position size line when positive.
	Balance float64
}

func signalIcon(sig model.SignalOption) string {
	switch {
	case sig.Is(model.SignalBuy):
		return "🟢"
	case sig.Is(model.SignalSell):
		return "🔴"
	case sig.Is(model.SignalHold):
		return "⚪"
	default:
		return "❔"
	}
}

// formatPrice picks precision by magnitude so forex keeps its pips.
func formatPrice(p float64) string {
	switch {
	case p >= 1000:
		return fmt.Sprintf("%.2f", p)
	case p >= 10:
		return fmt.Sprintf("%.3f", p)
	default:
		return fmt.Sprintf("%.5f", p)
	}
}

// FormatAlert renders a decision alert as Telegram HTML.
func FormatAlert(a Alert) string {
	r := a.Result
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s <b>%s</b> %s | %s\n\n", signalIcon(r.FinalSignal), html.EscapeString(r.Symbol),
		r.FinalSignal.String(), r.Timestamp.UTC().Format("2006-01-02 15:04 MST")))

	if r.Failed() {
		b.WriteString(fmt.Sprintf("⚠️ %s: %s\n", r.ErrorType, html.EscapeString(r.ErrorMessage)))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("Price: %s\n", formatPrice(r.CurrentPrice)))
	if a.Previous != nil && a.Previous.Signal != r.FinalSignal {
		b.WriteString(fmt.Sprintf("Changed from %s\n", a.Previous.Label()))
	}
	if r.Reason != "" {
		b.WriteString(fmt.Sprintf("Reason: %s\n", html.EscapeString(r.Reason)))
	}

	b.WriteString("\n📈 <b>Inputs:</b>\n")
	b.WriteString(fmt.Sprintf("  technical 1m: %s\n", r.Signals.TechnicalShort))
	b.WriteString(fmt.Sprintf("  technical 15m: %s\n", r.Signals.TechnicalLong))
	b.WriteString(fmt.Sprintf("  trend: %s", r.Signals.TrendPrediction))
	if r.PredictedPrice > 0 {
		b.WriteString(fmt.Sprintf(" (→ %s)", formatPrice(r.PredictedPrice)))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  depth: %s\n", r.Signals.DepthImbalance))
	b.WriteString(fmt.Sprintf("  correlation: %s\n", r.Signals.Correlation))
	for _, f := range r.Factors {
		b.WriteString(fmt.Sprintf("    %s(%s): %+.2f\n", f.Name, html.EscapeString(f.Commentary), f.Score))
	}

	if r.Sentiment != nil {
		b.WriteString(fmt.Sprintf("\n📰 Sentiment: %+.2f (%d articles)\n", r.Sentiment.Overall, r.Sentiment.NewsCount))
	}

	if r.FinalSignal.Is(model.SignalBuy) || r.FinalSignal.Is(model.SignalSell) {
		b.WriteString("\n🎯 <b>Risk:</b>\n")
		b.WriteString(fmt.Sprintf("  stop loss: %s\n", formatPrice(r.StopLoss)))
		b.WriteString(fmt.Sprintf("  take profit: %s\n", formatPrice(r.TakeProfit)))
		b.WriteString(fmt.Sprintf("  ATR: %s\n", formatPrice(r.ATR)))
		if a.Balance > 0 {
			size := strategy.PositionSize(a.Balance, r.CurrentPrice, r.StopLoss, strategy.DefaultRiskFraction)
			b.WriteString(fmt.Sprintf("  size: %.4f units (%.0f%% of %.0f)\n", size, strategy.DefaultRiskFraction*100, a.Balance))
		}
	}
	return b.String()
}

// FormatCorrelationReport summarizes a correlation recompute.
func FormatCorrelationReport(rep *correlation.Report) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔗 <b>Correlations updated</b> | run %s\n\n", shortID(rep.RunID)))
	b.WriteString(fmt.Sprintf("Symbols: %d\n", len(rep.Symbols)))
	if len(rep.Dropped) > 0 {
		b.WriteString(fmt.Sprintf("Dropped: %s\n", html.EscapeString(strings.Join(rep.Dropped, ", "))))
	}
	b.WriteString(fmt.Sprintf("Pairs kept: %d\n", rep.Pairs))
	b.WriteString(fmt.Sprintf("Took: %s\n", rep.Duration.Round(time.Millisecond)))
	return b.String()
}

// FormatStatus lists the latest stored decision per symbol.
func FormatStatus(records []*recorder.DecisionRecord) string {
	if len(records) == 0 {
		return "No decisions recorded yet."
	}
	var b strings.Builder
	b.WriteString("📋 <b>Latest decisions</b>\n\n")
	for _, rec := range records {
		b.WriteString(fmt.Sprintf("%s %s: %s @ %s (%s)\n", signalIcon(rec.Signal), html.EscapeString(rec.Symbol),
			rec.Label(), formatPrice(rec.Price), rec.UpdatedAt.UTC().Format("01-02 15:04")))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
