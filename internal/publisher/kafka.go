// Package publisher ships recorded decisions to downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/recorder"
)

// KafkaOptions configures the decision topic writer.
type KafkaOptions struct {
	Brokers      []string
	Topic        string
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one JSON message per decision, keyed by symbol so a
// symbol's decisions stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	m      *metrics.Recorder
	log    zerolog.Logger
}

// NewKafkaPublisher creates a synchronous writer with hash partitioning.
func NewKafkaPublisher(opts KafkaOptions, log zerolog.Logger, m *metrics.Recorder) (*KafkaPublisher, error) {
	if len(opts.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if opts.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(opts.Brokers...),
		Topic:                  opts.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            parseCompression(opts.Compression),
		MaxAttempts:            opts.MaxAttempts,
		WriteTimeout:           opts.WriteTimeout,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, opts.Topic, log, m), nil
}

func newKafkaPublisher(w messageWriter, topic string, log zerolog.Logger, m *metrics.Recorder) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		m:      m,
		log:    log.With().Str("component", "kafka").Str("topic", topic).Logger(),
	}
}

// PublishDecision sends rec to the decision topic.
func (p *KafkaPublisher) PublishDecision(ctx context.Context, rec *recorder.DecisionRecord) error {
	msg, err := decisionMessage(rec)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, msg)
	p.m.RecordPublish("kafka", err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", rec.Symbol, err)
	}
	p.log.Debug().Str("symbol", rec.Symbol).Str("signal", rec.Label()).Msg("decision published")
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// DecisionEvent is the wire form of a decision on every sink.
type DecisionEvent struct {
	*recorder.DecisionRecord
	Label string `json:"label"`
}

// NewDecisionEvent wraps rec with its display label.
func NewDecisionEvent(rec *recorder.DecisionRecord) DecisionEvent {
	return DecisionEvent{DecisionRecord: rec, Label: rec.Label()}
}

func decisionMessage(rec *recorder.DecisionRecord) (kafka.Message, error) {
	value, err := json.Marshal(NewDecisionEvent(rec))
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal decision: %w", err)
	}
	return kafka.Message{
		Key:   []byte(rec.Symbol),
		Value: value,
		Time:  rec.UpdatedAt,
	}, nil
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}
