package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/noise-telemetry-service/internal/config"
	"github.com/couchcryptid/noise-telemetry-service/internal/domain"
	"github.com/couchcryptid/noise-telemetry-service/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// Event types carried in the event_type header.
const (
	EventReading = "reading"
	EventAlert   = "alert"
)

// messageWriter is the subset of *kafkago.Writer the sink needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// PublishingSink is a domain.Sink decorator that publishes every stored
// reading and alert to Kafka. Publication is best effort: a failed write is
// logged and counted but never undoes or fails the stored record.
type PublishingSink struct {
	domain.Sink

	writer        messageWriter
	readingsTopic string
	alertsTopic   string
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// NewWriter creates a Kafka producer for the configured topics. Messages carry
// their own topic.
func NewWriter(cfg *config.Config) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

// NewPublishingSink wraps inner so that created records are also published.
func NewPublishingSink(inner domain.Sink, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *PublishingSink {
	return newPublishingSink(inner, NewWriter(cfg), cfg.KafkaReadingsTopic, cfg.KafkaAlertsTopic, logger, metrics)
}

func newPublishingSink(inner domain.Sink, w messageWriter, readingsTopic, alertsTopic string, logger *slog.Logger, metrics *observability.Metrics) *PublishingSink {
	return &PublishingSink{
		Sink:          inner,
		writer:        w,
		readingsTopic: readingsTopic,
		alertsTopic:   alertsTopic,
		logger:        logger,
		metrics:       metrics,
	}
}

func (s *PublishingSink) CreateReading(ctx context.Context, r domain.Reading) (string, error) {
	id, err := s.Sink.CreateReading(ctx, r)
	if err != nil {
		return "", err
	}
	r.ID = id

	msg, err := serializeReading(s.readingsTopic, r)
	if err != nil {
		s.logger.Error("serialize reading failed", "reading_id", id, "error", err)
		return id, nil
	}
	s.publish(ctx, msg)
	return id, nil
}

func (s *PublishingSink) CreateAlert(ctx context.Context, a domain.Alert) (string, error) {
	id, err := s.Sink.CreateAlert(ctx, a)
	if err != nil {
		return "", err
	}
	a.ID = id

	msg, err := serializeAlert(s.alertsTopic, a)
	if err != nil {
		s.logger.Error("serialize alert failed", "alert_id", id, "error", err)
		return id, nil
	}
	s.publish(ctx, msg)
	return id, nil
}

// Close flushes pending messages and closes the producer.
func (s *PublishingSink) Close() error {
	return s.writer.Close()
}

func (s *PublishingSink) publish(ctx context.Context, msg kafkago.Message) {
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.metrics.EventsPublished.WithLabelValues(msg.Topic, "error").Inc()
		s.logger.Warn("publish event failed",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"error", err,
		)
		return
	}
	s.metrics.EventsPublished.WithLabelValues(msg.Topic, "success").Inc()
}

// serializeReading marshals a reading into a message keyed by sensor so each
// sensor's readings stay ordered within one partition.
func serializeReading(topic string, r domain.Reading) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reading: %w", err)
	}
	return kafkago.Message{
		Topic: topic,
		Key:   []byte(r.SensorID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventReading)},
			{Key: "quality", Value: []byte(r.Quality)},
			{Key: "recorded_at", Value: []byte(r.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}

func serializeAlert(topic string, a domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Topic: topic,
		Key:   []byte(a.SensorID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventAlert)},
			{Key: "severity", Value: []byte(a.Severity)},
			{Key: "triggered_at", Value: []byte(a.TriggeredAt.Format(time.RFC3339))},
		},
	}, nil
}
