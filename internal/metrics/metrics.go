package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes the service's Prometheus instruments. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	cacheRequests    *prometheus.CounterVec
	cacheEvictions   prometheus.Counter
	throttleWait     prometheus.Histogram
	fetchLatency     *prometheus.HistogramVec
	fetchErrors      *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	analysisLatency  prometheus.Histogram
	correlationPairs prometheus.Gauge
	lastPrice        *prometheus.GaugeVec
	published        *prometheus.CounterVec
	streamClients    prometheus.Gauge
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cacheRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_cache_requests_total",
				Help: "Cache lookups by operation and result",
			},
			[]string{"op", "result"},
		),
		cacheEvictions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sentinel_cache_evictions_total",
				Help: "Entries removed by the cache size cap",
			},
		),
		throttleWait: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentinel_throttle_wait_seconds",
				Help:    "Time spent waiting on the data source rate limit",
				Buckets: []float64{0, 0.1, 0.5, 1, 2, 5, 12, 30},
			},
		),
		fetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_fetch_duration_seconds",
				Help:    "Duration of data source calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		fetchErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_fetch_errors_total",
				Help: "Failed data source calls by error type",
			},
			[]string{"op", "type"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_decisions_total",
				Help: "Final decisions by signal",
			},
			[]string{"signal"},
		),
		analysisLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentinel_analysis_duration_seconds",
				Help:    "Duration of one symbol analysis",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
		),
		correlationPairs: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentinel_correlation_pairs",
				Help: "Pairs retained by the last correlation recompute",
			},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_last_price",
				Help: "Last analyzed price for a symbol",
			},
			[]string{"symbol"},
		),
		published: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_decision_events_total",
				Help: "Decision events delivered to downstream sinks by result",
			},
			[]string{"sink", "result"},
		),
		streamClients: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentinel_stream_clients",
				Help: "Connected decision stream subscribers",
			},
		),
	}
}

// RecordCacheHit counts a cache hit for op.
func (r *Recorder) RecordCacheHit(op string) {
	if r == nil {
		return
	}
	r.cacheRequests.WithLabelValues(op, "hit").Inc()
}

// RecordCacheMiss counts a cache miss for op.
func (r *Recorder) RecordCacheMiss(op string) {
	if r == nil {
		return
	}
	r.cacheRequests.WithLabelValues(op, "miss").Inc()
}

// RecordEvictions adds n evicted entries.
func (r *Recorder) RecordEvictions(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.cacheEvictions.Add(float64(n))
}

// RecordThrottleWait observes a rate-limit wait.
func (r *Recorder) RecordThrottleWait(d time.Duration) {
	if r == nil {
		return
	}
	r.throttleWait.Observe(d.Seconds())
}

// RecordFetch observes one data source call and counts it when it failed.
func (r *Recorder) RecordFetch(op string, d time.Duration, errType string) {
	if r == nil {
		return
	}
	r.fetchLatency.WithLabelValues(op).Observe(d.Seconds())
	if errType != "" {
		r.fetchErrors.WithLabelValues(op, errType).Inc()
	}
}

// RecordDecision counts a final decision and its analysis latency.
func (r *Recorder) RecordDecision(symbol, signal string, price float64, d time.Duration) {
	if r == nil {
		return
	}
	r.decisions.WithLabelValues(signal).Inc()
	r.analysisLatency.Observe(d.Seconds())
	if price > 0 {
		r.lastPrice.WithLabelValues(symbol).Set(price)
	}
}

// RecordCorrelationPairs sets the retained pair count.
func (r *Recorder) RecordCorrelationPairs(n int) {
	if r == nil {
		return
	}
	r.correlationPairs.Set(float64(n))
}

// RecordPublish counts one decision event handed to sink.
func (r *Recorder) RecordPublish(sink string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.published.WithLabelValues(sink, result).Inc()
}

// SetStreamClients sets the number of live stream subscribers.
func (r *Recorder) SetStreamClients(n int) {
	if r == nil {
		return
	}
	r.streamClients.Set(float64(n))
}
