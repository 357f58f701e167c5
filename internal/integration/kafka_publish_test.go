//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/noise-telemetry-service/internal/adapter/kafka"
	"github.com/couchcryptid/noise-telemetry-service/internal/adapter/memory"
	"github.com/couchcryptid/noise-telemetry-service/internal/config"
	"github.com/couchcryptid/noise-telemetry-service/internal/domain"
	"github.com/couchcryptid/noise-telemetry-service/internal/fleet"
	"github.com/couchcryptid/noise-telemetry-service/internal/observability"
	"github.com/couchcryptid/noise-telemetry-service/internal/producer"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const (
	testReadingsTopic = "test-noise-readings"
	testAlertsTopic   = "test-noise-alerts"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("noise-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestIntervalProducerPublishesToKafka runs one interval tick against a real
// broker and reads the published reading and alert events back.
func TestIntervalProducerPublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testReadingsTopic)
	createTopic(t, broker, testAlertsTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaReadingsTopic: testReadingsTopic,
		KafkaAlertsTopic:   testAlertsTopic,
	}

	// An arterial site with a low limit exceeds on every tick.
	f, err := fleet.New(
		[]domain.MonitoringPoint{{ID: "p-1", RegionType: domain.RegionArterial, DayThreshold: 40, NightThreshold: 30}},
		[]domain.Sensor{{ID: "s-1", PointID: "p-1", Status: domain.StatusOnline}},
	)
	require.NoError(t, err)

	metrics := observability.NewMetricsForTesting()
	sink := kafka.NewPublishingSink(memory.NewSink(f), cfg, discardLogger(), metrics)
	t.Cleanup(func() { _ = sink.Close() })

	noon := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	svc := producer.NewService(sink, domain.NewSynthesizer(domain.DefaultProfile(), domain.NewRand(1)), producer.Options{
		PersistTimeout: 30 * time.Second,
		Location:       time.UTC,
		Clock:          clockwork.NewFakeClockAt(noon),
	}, discardLogger(), metrics)

	svc.Start(ctx)
	readings := readOne(ctx, t, broker, testReadingsTopic)
	alerts := readOne(ctx, t, broker, testAlertsTopic)
	svc.Stop(ctx)

	assert.Equal(t, "s-1", string(readings.Key))
	assert.Equal(t, kafka.EventReading, header(readings, "event_type"))
	var r domain.Reading
	require.NoError(t, json.Unmarshal(readings.Value, &r))
	assert.Equal(t, "s-1", r.SensorID)
	assert.True(t, r.Timestamp.Equal(noon))

	assert.Equal(t, kafka.EventAlert, header(alerts, "event_type"))
	var a domain.Alert
	require.NoError(t, json.Unmarshal(alerts.Value, &a))
	assert.Equal(t, r.ID, a.ReadingID)
	assert.Equal(t, domain.AlertUnhandled, a.Status)
	assert.InDelta(t, 40.0, a.Threshold, 1e-9)
}

func readOne(ctx context.Context, t *testing.T, broker, topic string) kafkago.Message {
	t.Helper()

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err, "read from %s", topic)
	return msg
}

func header(msg kafkago.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
