package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Producer scheduling.
	IntervalTick    time.Duration
	StreamTick      time.Duration
	PersistTimeout  time.Duration
	TickConcurrency int
	CacheSize       int
	Location        *time.Location
	Autostart       bool

	// Noise model and fleet.
	SimSeed             uint64
	RegionProfileFile   string
	FleetFile           string
	DemoPoints          int
	DemoSensorsPerPoint int
	DemoOfflineRatio    float64

	// Persistence.
	StorePath string

	// Kafka event publication.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaReadingsTopic string
	KafkaAlertsTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	intervalTick, err := parseDuration("INTERVAL_TICK", "30s")
	if err != nil {
		return nil, err
	}
	streamTick, err := parseDuration("STREAM_TICK", "5s")
	if err != nil {
		return nil, err
	}
	persistTimeout, err := parseDuration("PERSIST_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	concurrency, err := parsePositiveInt("TICK_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("CACHE_SIZE", 10000)
	if err != nil {
		return nil, err
	}
	demoPoints, err := parsePositiveInt("DEMO_POINTS", 12)
	if err != nil {
		return nil, err
	}
	demoSensors, err := parsePositiveInt("DEMO_SENSORS_PER_POINT", 2)
	if err != nil {
		return nil, err
	}

	offlineRatio, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("DEMO_OFFLINE_RATIO", "0.1"), 64)
	if err != nil || offlineRatio < 0 || offlineRatio > 1 {
		return nil, errors.New("invalid DEMO_OFFLINE_RATIO")
	}

	seed, err := strconv.ParseUint(sharedcfg.EnvOrDefault("SIM_SEED", "0"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid SIM_SEED")
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("SITE_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid SITE_TIMEZONE: %w", err)
	}

	autostart, err := parseBool("AUTOSTART", false)
	if err != nil {
		return nil, err
	}

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	kafkaEnabled := brokersEnv != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		IntervalTick:    intervalTick,
		StreamTick:      streamTick,
		PersistTimeout:  persistTimeout,
		TickConcurrency: concurrency,
		CacheSize:       cacheSize,
		Location:        loc,
		Autostart:       autostart,

		SimSeed:             seed,
		RegionProfileFile:   os.Getenv("REGION_PROFILE_FILE"),
		FleetFile:           os.Getenv("FLEET_FILE"),
		DemoPoints:          demoPoints,
		DemoSensorsPerPoint: demoSensors,
		DemoOfflineRatio:    offlineRatio,

		StorePath: os.Getenv("STORE_PATH"),

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaReadingsTopic: sharedcfg.EnvOrDefault("KAFKA_READINGS_TOPIC", "noise-readings"),
		KafkaAlertsTopic:   sharedcfg.EnvOrDefault("KAFKA_ALERTS_TOPIC", "noise-alerts"),
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaReadingsTopic == "" || cfg.KafkaAlertsTopic == "" {
			return nil, errors.New("KAFKA_READINGS_TOPIC and KAFKA_ALERTS_TOPIC are required")
		}
	}

	return cfg, nil
}

func parseDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}

func parseBool(name string, def bool) (bool, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", name)
	}
	return b, nil
}
