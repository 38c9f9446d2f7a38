package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/recorder"
)

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, symbol string) *model.AnalysisResult {
	return &model.AnalysisResult{Symbol: symbol, CurrentPrice: 190, FinalSignal: model.Decided(model.SignalHold)}
}

func newTestServer(t *testing.T) (*Server, *recorder.MemoryStore, *prometheus.Registry) {
	t.Helper()
	store := recorder.NewMemoryStore()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RecordCorrelationPairs(3)

	h := &Handler{
		Engine:       stubAnalyzer{},
		Decisions:    store,
		Correlations: store,
		Source:       &collector.MockSource{Price: 190, Sentiment: model.Sentiment{Overall: 0.25, NewsCount: 4}},
		Symbols:      []string{"AAPL", "EURUSD"},
		Status:       collector.ProviderStatus{Provider: "mock"},
	}
	return NewServer(":0", h, reg, zerolog.Nop()), store, reg
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	var body Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec, body := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, body.Status)
}

func TestDecisions(t *testing.T) {
	s, store, _ := newTestServer(t)
	ctx := context.Background()

	rec, _ := get(t, s, "/api/decisions/aapl")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, store.RecordDecision(ctx, &recorder.DecisionRecord{
		Symbol: "AAPL", Price: 190.1, Signal: model.Decided(model.SignalBuy), UpdatedAt: time.Now(),
	}))

	rec, _ = get(t, s, "/api/decisions/aapl")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"signal":"BUY"`)

	rec, body := get(t, s, "/api/decisions")
	require.Equal(t, http.StatusOK, rec.Code)
	list, ok := body.Data.([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestAnalyze(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec, _ := get(t, s, "/api/analyze/msft")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"symbol":"MSFT"`)
	assert.Contains(t, rec.Body.String(), `"final_signal":"HOLD"`)

	rec, _ = get(t, s, "/api/analyze/NOPE")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCorrelations(t *testing.T) {
	s, store, _ := newTestServer(t)
	rec, _ := get(t, s, "/api/correlations/AAPL")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)

	require.NoError(t, store.ReplaceAll(context.Background(), []model.CorrelationEntry{
		{SymbolA: "AAPL", SymbolB: "MSFT", Coefficient: 0.72},
	}))
	rec, _ = get(t, s, "/api/correlations/AAPL")
	assert.Contains(t, rec.Body.String(), `"coefficient":0.72`)
}

func TestNews(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec, _ := get(t, s, "/api/news/AAPL")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"overall_sentiment":0.25`)

	rec, _ = get(t, s, "/api/news/EURUSD")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec, _ := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sentinel_correlation_pairs 3")
}
