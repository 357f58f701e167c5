package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/noise-telemetry-service/internal/domain"
	"github.com/couchcryptid/noise-telemetry-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// constRand returns the same draw every time. 0.5 zeroes all jitter.
type constRand float64

func (c constRand) Float64() float64 { return float64(c) }

var errSinkDown = errors.New("sink down")

// fakeSink is an in-memory domain.Sink with failure injection.
type fakeSink struct {
	mu          sync.Mutex
	sensors     []domain.Sensor
	readings    []domain.Reading
	alerts      []domain.Alert
	latest      map[string]domain.Reading
	failReading map[string]bool
	failAlert   bool
	listErr     error
	latestCalls int
}

func newFakeSink(sensors ...domain.Sensor) *fakeSink {
	return &fakeSink{
		sensors:     sensors,
		latest:      make(map[string]domain.Reading),
		failReading: make(map[string]bool),
	}
}

func (f *fakeSink) CreateReading(_ context.Context, r domain.Reading) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReading[r.SensorID] {
		return "", errSinkDown
	}
	r.ID = fmt.Sprintf("r-%d", len(f.readings)+1)
	f.readings = append(f.readings, r)
	f.latest[r.SensorID] = r
	return r.ID, nil
}

func (f *fakeSink) CreateAlert(_ context.Context, a domain.Alert) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAlert {
		return "", errSinkDown
	}
	a.ID = fmt.Sprintf("a-%d", len(f.alerts)+1)
	f.alerts = append(f.alerts, a)
	return a.ID, nil
}

func (f *fakeSink) LatestReading(_ context.Context, sensorID string) (domain.Reading, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestCalls++
	r, ok := f.latest[sensorID]
	return r, ok, nil
}

func (f *fakeSink) ListActiveSensors(_ context.Context) ([]domain.Sensor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Sensor(nil), f.sensors...), nil
}

func (f *fakeSink) readingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.readings)
}

func (f *fakeSink) snapshot() ([]domain.Reading, []domain.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Reading(nil), f.readings...), append([]domain.Alert(nil), f.alerts...)
}

func (f *fakeSink) setSensors(sensors ...domain.Sensor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sensors = sensors
}

// gatedSink holds every CreateReading until release is closed. Each call
// first signals on entered.
type gatedSink struct {
	*fakeSink
	entered chan struct{}
	release chan struct{}
}

func newGatedSink(sensors ...domain.Sensor) *gatedSink {
	return &gatedSink{
		fakeSink: newFakeSink(sensors...),
		entered:  make(chan struct{}, 16),
		release:  make(chan struct{}),
	}
}

func (g *gatedSink) CreateReading(ctx context.Context, r domain.Reading) (string, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.fakeSink.CreateReading(ctx, r)
}

// arterial returns an online arterial sensor whose point allows dayLimit dB.
// With constRand(0.5) it reads 70 dB at noon.
func arterial(id string, dayLimit float64) domain.Sensor {
	point := &domain.MonitoringPoint{
		ID:             "p-" + id,
		RegionType:     domain.RegionArterial,
		DayThreshold:   dayLimit,
		NightThreshold: dayLimit,
	}
	return domain.Sensor{
		ID:      id,
		Status:  domain.StatusOnline,
		PointID: point.ID,
		Point:   point,
	}
}

func residential(id string) domain.Sensor {
	point := &domain.MonitoringPoint{
		ID:             "p-" + id,
		RegionType:     domain.RegionResidential,
		DayThreshold:   60,
		NightThreshold: 50,
	}
	return domain.Sensor{
		ID:         id,
		RegionType: domain.RegionResidential,
		Status:     domain.StatusOnline,
		PointID:    point.ID,
		Point:      point,
	}
}

func newTestCycle(sink domain.Sink, rnd domain.Rand) (*cycle, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return &cycle{
		kind:           KindInterval,
		sink:           sink,
		synth:          domain.NewSynthesizer(domain.DefaultProfile(), rnd),
		cache:          NewLastValueCache(100),
		persistTimeout: time.Second,
		concurrency:    4,
		logger:         slog.Default(),
		metrics:        metrics,
	}, metrics
}

func newTestService(sink domain.Sink, clock clockwork.Clock, rnd domain.Rand) *Service {
	return NewService(sink, domain.NewSynthesizer(domain.DefaultProfile(), rnd), Options{
		IntervalTick:   30 * time.Second,
		StreamTick:     5 * time.Second,
		PersistTimeout: time.Second,
		Location:       time.UTC,
		Clock:          clock,
	}, slog.Default(), observability.NewMetricsForTesting())
}
