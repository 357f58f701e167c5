package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "noise_sim"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// simulation engine.
type Metrics struct {
	ReadingsGenerated *prometheus.CounterVec // labels: producer={interval,stream}
	AlertsRaised      *prometheus.CounterVec // labels: producer, severity
	PersistenceErrors *prometheus.CounterVec // labels: producer, op={list,latest,reading,alert}
	TickDuration      *prometheus.HistogramVec
	TicksSkipped      *prometheus.CounterVec // labels: producer, reason={no_sensors,list_failed}

	SimulationRunning prometheus.Gauge
	ActiveSensors     *prometheus.GaugeVec // labels: producer
	CacheEntries      *prometheus.GaugeVec // labels: producer
	StreamSubscribers prometheus.Gauge

	// Event publication metrics.
	EventsPublished *prometheus.CounterVec // labels: topic, outcome={success,error}
}

// NewMetrics creates and registers all engine metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReadingsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_generated_total",
			Help:      "Readings persisted, by producer.",
		}, []string{"producer"}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Exceedance alerts persisted, by producer and severity.",
		}, []string{"producer", "severity"}),
		PersistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Failed sink calls, by producer and operation.",
		}, []string{"producer", "op"}),
		TickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of one producer tick across all active sensors.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"producer"}),
		TicksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_skipped_total",
			Help:      "Ticks that produced nothing, by producer and reason.",
		}, []string{"producer", "reason"}),
		SimulationRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulation_running",
			Help:      "1 when the interval producer is active, 0 when stopped.",
		}),
		ActiveSensors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sensors",
			Help:      "Online sensors seen by the most recent tick, by producer.",
		}, []string{"producer"}),
		CacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries held in last-value caches, by producer.",
		}, []string{"producer"}),
		StreamSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Stream subscriptions currently iterating.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Reading and alert events written to Kafka, by topic and outcome.",
		}, []string{"topic", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ReadingsGenerated,
		m.AlertsRaised,
		m.PersistenceErrors,
		m.TickDuration,
		m.TicksSkipped,
		m.SimulationRunning,
		m.ActiveSensors,
		m.CacheEntries,
		m.StreamSubscribers,
		m.EventsPublished,
	}
}
