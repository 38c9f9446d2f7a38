package recorder

import (
	"context"
	"errors"
	"time"

	"SignalSentinel/internal/model"
)

// ErrNotFound is returned when no decision has been stored for a symbol.
var ErrNotFound = errors.New("recorder: not found")

// CorrelationStore holds the current correlation snapshot. ReplaceAll swaps
// the whole snapshot atomically; readers never see a partial one.
type CorrelationStore interface {
	ReplaceAll(ctx context.Context, entries []model.CorrelationEntry) error
	FindBySymbol(ctx context.Context, symbol string) ([]model.CorrelationEntry, error)
}

// DecisionStore keeps the latest decision per symbol.
type DecisionStore interface {
	RecordDecision(ctx context.Context, rec *DecisionRecord) error
	LatestDecision(ctx context.Context, symbol string) (*DecisionRecord, error)
}

// Recorder persists correlations and decisions.
type Recorder interface {
	CorrelationStore
	DecisionStore
	Close() error
}

// DecisionRecord is the stored form of an analysis result.
type DecisionRecord struct {
	Symbol       string             `json:"symbol"`
	AssetClass   model.AssetClass   `json:"asset_class"`
	Price        float64            `json:"price"`
	Signal       model.SignalOption `json:"signal"`
	Reason       string             `json:"reason,omitempty"`
	StopLoss     float64            `json:"stop_loss"`
	TakeProfit   float64            `json:"take_profit"`
	ATR          float64            `json:"atr"`
	Sentiment    *float64           `json:"sentiment,omitempty"`
	ErrorType    model.ErrorType    `json:"error_type,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// NewDecisionRecord flattens an analysis result for storage.
func NewDecisionRecord(r *model.AnalysisResult) *DecisionRecord {
	rec := &DecisionRecord{
		Symbol:       r.Symbol,
		AssetClass:   r.AssetClass,
		Price:        r.CurrentPrice,
		Signal:       r.FinalSignal,
		Reason:       r.Reason,
		StopLoss:     r.StopLoss,
		TakeProfit:   r.TakeProfit,
		ATR:          r.ATR,
		ErrorType:    r.ErrorType,
		ErrorMessage: r.ErrorMessage,
		UpdatedAt:    r.Timestamp,
	}
	if r.Sentiment != nil {
		s := r.Sentiment.Overall
		rec.Sentiment = &s
	}
	return rec
}

// Label is the stored signal text: the signal, or "ERROR" for a failed run.
func (d *DecisionRecord) Label() string {
	if d.ErrorType != "" && !d.Signal.Available() {
		return "ERROR"
	}
	return d.Signal.String()
}
