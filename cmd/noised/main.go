package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/noise-telemetry-service/internal/adapter/badger"
	httpadapter "github.com/couchcryptid/noise-telemetry-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/noise-telemetry-service/internal/adapter/kafka"
	"github.com/couchcryptid/noise-telemetry-service/internal/adapter/memory"
	"github.com/couchcryptid/noise-telemetry-service/internal/config"
	"github.com/couchcryptid/noise-telemetry-service/internal/domain"
	"github.com/couchcryptid/noise-telemetry-service/internal/fleet"
	"github.com/couchcryptid/noise-telemetry-service/internal/observability"
	"github.com/couchcryptid/noise-telemetry-service/internal/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	profile, err := loadProfile(cfg.RegionProfileFile)
	if err != nil {
		logger.Error("failed to load region profile", "error", err)
		os.Exit(1)
	}

	f, err := loadFleet(cfg)
	if err != nil {
		logger.Error("failed to load fleet", "error", err)
		os.Exit(1)
	}
	logger.Info("fleet loaded", "points", len(f.Points), "sensors", len(f.Sensors), "active", len(f.Active()))

	// Storage backend (BadgerDB when STORE_PATH is set, in-memory otherwise).
	var (
		sink  domain.Sink
		store *badger.Sink
	)
	if cfg.StorePath != "" {
		store, err = badger.Open(cfg.StorePath, f, logger)
		if err != nil {
			logger.Error("failed to open store", "path", cfg.StorePath, "error", err)
			os.Exit(1)
		}
		sink = store
	} else {
		sink = memory.NewSink(f)
		logger.Info("using in-memory store")
	}

	var publisher *kafkaadapter.PublishingSink
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublishingSink(sink, cfg, logger, metrics)
		sink = publisher
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers,
			"readings_topic", cfg.KafkaReadingsTopic, "alerts_topic", cfg.KafkaAlertsTopic)
	}

	synth := domain.NewSynthesizer(profile, domain.NewRand(cfg.SimSeed))
	svc := producer.NewService(sink, synth, producer.Options{
		IntervalTick:   cfg.IntervalTick,
		StreamTick:     cfg.StreamTick,
		PersistTimeout: cfg.PersistTimeout,
		Concurrency:    cfg.TickConcurrency,
		CacheSize:      cfg.CacheSize,
		Location:       cfg.Location,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, svc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if cfg.Autostart {
		svc.Start(ctx)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	// Producers and streams must be idle before the sinks close, so that no
	// reading is stored without its alert decision.
	stopCtx, cancelStop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelStop()
	idle := true
	if err := svc.Shutdown(stopCtx); err != nil {
		logger.Error("interval producer shutdown error", "error", err)
		idle = false
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
		idle = false
	}

	if !idle {
		logger.Warn("producers still running, leaving sinks open")
		return
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func loadProfile(path string) (domain.Profile, error) {
	if path == "" {
		return domain.DefaultProfile(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return domain.Profile{}, err
	}
	defer file.Close()
	p, err := domain.ParseProfile(file)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func loadFleet(cfg *config.Config) (*fleet.Fleet, error) {
	if cfg.FleetFile != "" {
		return fleet.Load(cfg.FleetFile)
	}
	return fleet.Generate(fleet.GenerateOptions{
		Seed:            cfg.SimSeed,
		Points:          cfg.DemoPoints,
		SensorsPerPoint: cfg.DemoSensorsPerPoint,
		OfflineRatio:    cfg.DemoOfflineRatio,
	}), nil
}
