package producer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/noise-telemetry-service/internal/domain"
	"github.com/couchcryptid/noise-telemetry-service/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Producer names used in logs and metric labels.
const (
	KindInterval = "interval"
	KindStream   = "stream"
)

// Result is one sensor's output for a tick: the stored reading with its
// derived exceedance and the alert raised for it, if any.
type Result struct {
	Reading    domain.Reading    `json:"reading"`
	Evaluation domain.Evaluation `json:"evaluation"`
	Grade      domain.Grade      `json:"grade"`
	Alert      *domain.Alert     `json:"alert,omitempty"`
}

// cycle runs the per-sensor generation algorithm for one producer. The cache
// belongs to that producer alone.
type cycle struct {
	kind           string
	sink           domain.Sink
	synth          *domain.Synthesizer
	cache          *LastValueCache
	persistTimeout time.Duration
	concurrency    int
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// recorded tracks a reading that reached the sink. The alert decision is
// taken at most once per recorded reading.
type recorded struct {
	reading      domain.Reading
	sensor       domain.Sensor
	eval         domain.Evaluation
	alert        *domain.Alert
	alertDecided bool
}

// run produces one reading per active sensor at time at. It returns the
// number of active sensors and the results of the sensors that were
// persisted, in listing order. Only a failure to list sensors is returned as
// an error; per-sensor failures are logged and skipped.
func (c *cycle) run(ctx context.Context, at time.Time) (int, []Result, error) {
	start := time.Now()

	sensors, err := c.listActive(ctx)
	if err != nil {
		c.metrics.PersistenceErrors.WithLabelValues(c.kind, "list").Inc()
		c.metrics.TicksSkipped.WithLabelValues(c.kind, "list_failed").Inc()
		return 0, nil, err
	}
	c.metrics.ActiveSensors.WithLabelValues(c.kind).Set(float64(len(sensors)))
	if len(sensors) == 0 {
		c.logger.Info("no active sensors, skipping tick", "producer", c.kind)
		c.metrics.TicksSkipped.WithLabelValues(c.kind, "no_sensors").Inc()
		return 0, nil, nil
	}

	slots := make([]*Result, len(sensors))
	var g errgroup.Group
	g.SetLimit(max(1, c.concurrency))
	for i, sensor := range sensors {
		g.Go(func() error {
			res, err := c.process(ctx, sensor, at)
			if err != nil {
				c.logger.Warn("sensor skipped this tick",
					"producer", c.kind,
					"sensor_id", sensor.ID,
					"error", err,
				)
				return nil
			}
			slots[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	results := make([]Result, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}

	c.metrics.CacheEntries.WithLabelValues(c.kind).Set(float64(c.cache.Len()))
	c.metrics.TickDuration.WithLabelValues(c.kind).Observe(time.Since(start).Seconds())
	return len(sensors), results, nil
}

// listActive fetches online sensors, dropping duplicate IDs so a sensor is
// processed at most once per tick.
func (c *cycle) listActive(ctx context.Context) ([]domain.Sensor, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.persistTimeout)
	defer cancel()

	sensors, err := c.sink.ListActiveSensors(callCtx)
	if err != nil {
		return nil, fmt.Errorf("list active sensors: %w", err)
	}

	seen := make(map[string]struct{}, len(sensors))
	out := make([]domain.Sensor, 0, len(sensors))
	for _, s := range sensors {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// process runs the full algorithm for one sensor. An error means the reading
// was not stored and the cache was left untouched.
func (c *cycle) process(ctx context.Context, sensor domain.Sensor, at time.Time) (Result, error) {
	prev := c.previous(ctx, sensor.ID, at)
	reading := c.synth.Synthesize(sensor, at, prev)

	id, err := c.createReading(ctx, reading)
	if err != nil {
		c.metrics.PersistenceErrors.WithLabelValues(c.kind, "reading").Inc()
		return Result{}, err
	}
	reading.ID = id
	c.metrics.ReadingsGenerated.WithLabelValues(c.kind).Inc()

	rec := &recorded{
		reading: reading,
		sensor:  sensor,
		eval:    domain.Evaluate(reading.Value, reading.Timestamp, sensor.Point),
	}
	if err := c.decideAlert(ctx, rec); err != nil {
		c.metrics.PersistenceErrors.WithLabelValues(c.kind, "alert").Inc()
		c.logger.Warn("create alert failed",
			"producer", c.kind,
			"sensor_id", sensor.ID,
			"reading_id", id,
			"error", err,
		)
	}

	c.cache.Put(sensor.ID, LastValue{Value: reading.Value, Timestamp: reading.Timestamp})

	return Result{
		Reading:    reading,
		Evaluation: rec.eval,
		Grade:      domain.GradeOf(reading.Value, sensor.Region()),
		Alert:      rec.alert,
	}, nil
}

// previous returns the sensor's last value from the cache, falling back to
// the latest stored reading. Lookup failures degrade to a cold start.
func (c *cycle) previous(ctx context.Context, sensorID string, now time.Time) *domain.Previous {
	if lv, ok := c.cache.Get(sensorID); ok {
		return domain.PreviousAt(lv.Value, lv.Timestamp, now)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.persistTimeout)
	defer cancel()

	r, found, err := c.sink.LatestReading(callCtx, sensorID)
	if err != nil {
		c.metrics.PersistenceErrors.WithLabelValues(c.kind, "latest").Inc()
		c.logger.Warn("latest reading lookup failed, starting cold",
			"producer", c.kind,
			"sensor_id", sensorID,
			"error", err,
		)
		return nil
	}
	if !found {
		return nil
	}
	return domain.PreviousAt(r.Value, r.Timestamp, now)
}

func (c *cycle) createReading(ctx context.Context, r domain.Reading) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.persistTimeout)
	defer cancel()

	id, err := c.sink.CreateReading(callCtx, r)
	if err != nil {
		return "", fmt.Errorf("create reading: %w", err)
	}
	return id, nil
}

// decideAlert persists an alert for an exceeded reading. Calling it again for
// the same recorded reading is a no-op.
func (c *cycle) decideAlert(ctx context.Context, rec *recorded) error {
	if rec.alertDecided {
		return nil
	}
	rec.alertDecided = true
	if !rec.eval.Exceeded {
		return nil
	}

	alert := domain.NewAlert(rec.reading, rec.eval)

	callCtx, cancel := context.WithTimeout(ctx, c.persistTimeout)
	defer cancel()

	id, err := c.sink.CreateAlert(callCtx, alert)
	if err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	alert.ID = id
	rec.alert = &alert

	c.metrics.AlertsRaised.WithLabelValues(c.kind, string(alert.Severity)).Inc()
	c.logger.Info("noise limit exceeded",
		"producer", c.kind,
		"sensor_id", rec.sensor.ID,
		"point_id", rec.reading.PointID,
		"value", rec.reading.Value,
		"threshold", rec.eval.Threshold,
		"severity", alert.Severity,
	)
	return nil
}
