package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/recorder"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleRecord() *recorder.DecisionRecord {
	return &recorder.DecisionRecord{
		Symbol:     "EURUSD",
		AssetClass: model.AssetForex,
		Price:      1.0842,
		Signal:     model.Decided(model.SignalBuy),
		StopLoss:   1.08,
		TakeProfit: 1.09,
		UpdatedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisher_PublishDecision(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "sentinel.decisions", zerolog.Nop(), metrics.New(prometheus.NewRegistry()))

	require.NoError(t, p.PublishDecision(context.Background(), sampleRecord()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte("EURUSD"), msg.Key)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), msg.Time)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "EURUSD", body["symbol"])
	assert.Equal(t, "BUY", body["signal"])
	assert.Equal(t, "BUY", body["label"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_FailedDecisionLabel(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "t", zerolog.Nop(), nil)
	rec := sampleRecord()
	rec.Signal = model.Unavailable()
	rec.ErrorType = model.ErrTimeout

	require.NoError(t, p.PublishDecision(context.Background(), rec))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &body))
	assert.Equal(t, "ERROR", body["label"])
	assert.Equal(t, "TIMEOUT", body["error_type"])
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{err: errors.New("no brokers")}, "t", zerolog.Nop(), nil)
	err := p.PublishDecision(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EURUSD")
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaOptions{Topic: "t"}, zerolog.Nop(), nil)
	assert.Error(t, err)
	_, err = NewKafkaPublisher(KafkaOptions{Brokers: []string{"localhost:9092"}}, zerolog.Nop(), nil)
	assert.Error(t, err)

	p, err := NewKafkaPublisher(KafkaOptions{Brokers: []string{"localhost:9092"}, Topic: "t"}, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Gzip, parseCompression(""))
}
