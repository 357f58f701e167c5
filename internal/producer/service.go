package producer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/noise-telemetry-service/internal/domain"
	"github.com/couchcryptid/noise-telemetry-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Options tunes the producers. Zero values take the documented defaults.
type Options struct {
	IntervalTick   time.Duration
	StreamTick     time.Duration
	PersistTimeout time.Duration
	Concurrency    int
	CacheSize      int
	Location       *time.Location
	Clock          clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.IntervalTick <= 0 {
		o.IntervalTick = 30 * time.Second
	}
	if o.StreamTick <= 0 {
		o.StreamTick = 5 * time.Second
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 5 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 8
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 10000
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// Status is the lifecycle snapshot reported to the delivery layer.
type Status struct {
	Running             bool `json:"running"`
	ActiveSensorCount   int  `json:"active_sensor_count"`
	TickIntervalSeconds int  `json:"tick_interval_seconds"`
}

// Service is the lifecycle facade over the interval producer and the
// per-subscriber stream producers. Each producer owns its own cache, so the
// two may smooth the same sensor against different histories.
type Service struct {
	sink     domain.Sink
	synth    *domain.Synthesizer
	opts     Options
	interval *IntervalProducer
	logger   *slog.Logger
	metrics  *observability.Metrics

	lifecycle sync.Mutex
	closed    bool
}

// NewService wires the producers around a sink and synthesizer.
func NewService(sink domain.Sink, synth *domain.Synthesizer, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	opts = opts.withDefaults()
	s := &Service{
		sink:    sink,
		synth:   synth,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
	s.interval = &IntervalProducer{
		cycle:    s.newCycle(KindInterval),
		clock:    opts.Clock,
		loc:      opts.Location,
		interval: opts.IntervalTick,
		rollup:   newRollup(),
		logger:   logger.With("producer", KindInterval),
	}
	return s
}

func (s *Service) newCycle(kind string) *cycle {
	return &cycle{
		kind:           kind,
		sink:           s.sink,
		synth:          s.synth,
		cache:          NewLastValueCache(s.opts.CacheSize),
		persistTimeout: s.opts.PersistTimeout,
		concurrency:    s.opts.Concurrency,
		logger:         s.logger,
		metrics:        s.metrics,
	}
}

// Start launches the interval producer. Calling it while running, or after
// Shutdown, is a no-op.
func (s *Service) Start(ctx context.Context) Status {
	s.lifecycle.Lock()
	if !s.closed {
		s.interval.Start(ctx)
	}
	s.lifecycle.Unlock()
	return s.Status(ctx)
}

// Stop halts the interval producer at its next tick boundary and waits for
// the loop to exit or ctx to expire.
func (s *Service) Stop(ctx context.Context) Status {
	s.interval.Stop(ctx)
	return s.Status(ctx)
}

// Shutdown stops the interval producer for good and waits for its loop to
// exit. It returns an error if the loop is still running when ctx expires.
func (s *Service) Shutdown(ctx context.Context) error {
	s.lifecycle.Lock()
	s.closed = true
	s.lifecycle.Unlock()

	s.interval.Stop(ctx)
	return s.interval.Wait(ctx)
}

// Status reports whether the interval producer runs and how many sensors are
// currently online.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{
		Running:             s.interval.Running(),
		TickIntervalSeconds: int(s.opts.IntervalTick / time.Second),
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.PersistTimeout)
	defer cancel()

	sensors, err := s.sink.ListActiveSensors(callCtx)
	if err != nil {
		s.logger.Warn("status: list active sensors failed", "error", err)
		return st
	}
	st.ActiveSensorCount = len(sensors)
	return st
}

// Subscribe creates a stream producer with its own cache for one subscriber.
func (s *Service) Subscribe() *Stream {
	return &Stream{
		cycle:    s.newCycle(KindStream),
		clock:    s.opts.Clock,
		loc:      s.opts.Location,
		interval: s.opts.StreamTick,
		logger:   s.logger.With("producer", KindStream),
	}
}

// Interval exposes the interval producer.
func (s *Service) Interval() *IntervalProducer {
	return s.interval
}

// CheckReadiness returns nil once the sink answers a sensor listing.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if _, err := s.sink.ListActiveSensors(ctx); err != nil {
		return fmt.Errorf("sink not reachable: %w", err)
	}
	return nil
}
