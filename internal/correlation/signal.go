package correlation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/recorder"
)

const (
	PeerWeight             = 0.7
	SentimentWeight        = 0.3
	SignalThreshold        = 0.25
	SentimentOnlyThreshold = 0.3
	SentimentNewsLimit     = 20
)

// Reading is the outcome of one correlation evaluation.
type Reading struct {
	Signal    model.Signal
	Score     float64
	PeerScore float64
	Sentiment float64
	Peers     int
}

// Signal turns stored correlations and peer trends into a vote.
type Signal struct {
	store recorder.CorrelationStore
	src   collector.Source
	peers *PeerTrends
	log   zerolog.Logger
}

// NewSignal creates a correlation signal over store.
func NewSignal(store recorder.CorrelationStore, src collector.Source, peers *PeerTrends, log zerolog.Logger) *Signal {
	return &Signal{store: store, src: src, peers: peers, log: log}
}

// Evaluate computes the correlation vote for symbol. Equities blend in news
// sentiment; with no stored peers they fall back to sentiment alone.
func (s *Signal) Evaluate(ctx context.Context, symbol string) (*Reading, error) {
	entries, err := s.store.FindBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load correlations for %s: %w", symbol, err)
	}

	equity := collector.AssetClassOf(symbol).IsEquity()
	reading := &Reading{Signal: model.SignalHold, Peers: len(entries)}
	if equity {
		reading.Sentiment = s.sentiment(ctx, symbol)
	}

	if len(entries) == 0 {
		if !equity {
			return reading, nil
		}
		reading.Score = reading.Sentiment
		reading.Signal = classify(reading.Score, SentimentOnlyThreshold)
		return reading, nil
	}

	var sum float64
	for _, e := range entries {
		sum += e.Coefficient * s.peers.Trend(ctx, e.Peer(symbol))
	}
	reading.PeerScore = sum / float64(len(entries))

	reading.Score = PeerWeight*reading.PeerScore + SentimentWeight*reading.Sentiment
	reading.Signal = classify(reading.Score, SignalThreshold)

	s.log.Debug().
		Str("symbol", symbol).
		Int("peers", reading.Peers).
		Float64("peer_score", reading.PeerScore).
		Float64("sentiment", reading.Sentiment).
		Str("signal", string(reading.Signal)).
		Msg("correlation signal")
	return reading, nil
}

func (s *Signal) sentiment(ctx context.Context, symbol string) float64 {
	news, err := s.src.NewsSentiment(ctx, []string{symbol}, SentimentNewsLimit)
	if err != nil {
		s.log.Debug().Err(err).Str("symbol", symbol).Msg("news sentiment unavailable")
		return 0
	}
	return news.Overall
}

func classify(score, threshold float64) model.Signal {
	switch {
	case score > threshold:
		return model.SignalBuy
	case score < -threshold:
		return model.SignalSell
	default:
		return model.SignalHold
	}
}
