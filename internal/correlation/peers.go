package correlation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/model"
)

// PeerMoveThreshold is the hour-over-hour change that counts as a trend.
const PeerMoveThreshold = 0.005

// PeerTrends tracks one reference price per symbol per hour and reports the
// direction of each peer relative to the previous hour.
type PeerTrends struct {
	src collector.Source
	log zerolog.Logger
	now func() time.Time

	mu     sync.Mutex
	hourly map[string]map[int64]float64
}

// NewPeerTrends creates a tracker reading prices from src.
func NewPeerTrends(src collector.Source, log zerolog.Logger) *PeerTrends {
	return &PeerTrends{
		src:    src,
		log:    log,
		now:    time.Now,
		hourly: make(map[string]map[int64]float64),
	}
}

// Trend returns +1, -1 or 0 for symbol. Without a previous-hour price it
// records the current one and returns a per-asset-class prior instead.
// Price errors yield 0.
func (p *PeerTrends) Trend(ctx context.Context, symbol string) float64 {
	price, err := p.src.CurrentPrice(ctx, symbol)
	if err != nil || price <= 0 {
		p.log.Debug().Err(err).Str("symbol", symbol).Msg("peer price unavailable")
		return 0
	}

	hour := p.now().Unix() / 3600

	p.mu.Lock()
	defer p.mu.Unlock()

	buckets := p.hourly[symbol]
	if buckets == nil {
		buckets = make(map[int64]float64)
		p.hourly[symbol] = buckets
	}
	for h := range buckets {
		if h < hour-1 {
			delete(buckets, h)
		}
	}

	prev, ok := buckets[hour-1]
	if !ok {
		if _, seen := buckets[hour]; !seen {
			buckets[hour] = price
		}
		return fallbackTrend(symbol)
	}
	if _, seen := buckets[hour]; !seen {
		buckets[hour] = price
	}

	change := (price - prev) / prev
	switch {
	case change > PeerMoveThreshold:
		return 1
	case change < -PeerMoveThreshold:
		return -1
	default:
		return 0
	}
}

// fallbackTrend is the prior used before an hourly baseline exists.
func fallbackTrend(symbol string) float64 {
	switch collector.AssetClassOf(symbol) {
	case model.AssetForex:
		switch {
		case strings.HasSuffix(symbol, "USD"):
			return 0.1
		case strings.HasPrefix(symbol, "USD"):
			return -0.1
		default:
			return 0
		}
	case model.AssetStock:
		return 0.2
	case model.AssetCrypto:
		return 0.1
	default:
		return 0
	}
}
