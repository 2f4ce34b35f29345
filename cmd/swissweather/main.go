// Package main provides the entrypoint for the swissweather service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/swissweather/swissweather/internal/api"
	"github.com/swissweather/swissweather/internal/api/handler"
	"github.com/swissweather/swissweather/internal/api/middleware"
	"github.com/swissweather/swissweather/internal/config"
	"github.com/swissweather/swissweather/internal/coordinator"
	"github.com/swissweather/swissweather/internal/entity"
	"github.com/swissweather/swissweather/internal/mqtt"
	"github.com/swissweather/swissweather/internal/provider/resilience"
	"github.com/swissweather/swissweather/internal/telemetry"
	"github.com/swissweather/swissweather/internal/weather"
	"github.com/swissweather/swissweather/internal/weather/meteoswiss"
	"github.com/swissweather/swissweather/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "swissweather"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		Level(cfg.Level()).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("postal_code", cfg.PostalCode).
		Str("station", cfg.StationCode).
		Msg("starting swissweather")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		Logger:         log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize http metrics")
	}
	cycleMetrics, err := coordinator.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize coordinator metrics")
	}

	registry := resilience.NewRegistry()
	opts := coordinator.Options{
		FetchTimeout:     cfg.FetchTimeout,
		FailureThreshold: cfg.FailureThreshold,
		Metrics:          cycleMetrics,
		Logger:           log,
	}

	forecastClient := meteoswiss.NewForecastClient(meteoswiss.ClientConfig{
		BaseURL:  cfg.ForecastBaseURL,
		Timeout:  cfg.HTTPTimeout,
		Units:    cfg.Units,
		Language: cfg.Language,
		Registry: registry,
	})
	forecastOpts := opts
	forecastOpts.Interval = cfg.ForecastInterval
	forecast := coordinator.NewForecastCoordinator(forecastClient, cfg.PostalCode, forecastOpts)

	// Interfaces stay nil without a station.
	var (
		station       *coordinator.Coordinator[weather.Observation]
		stationSource entity.Source[weather.Observation]
		stationAPI    handler.SnapshotSource[weather.Observation]
		targets       []worker.Target
	)
	// The station client also serves the station listing.
	stationClient := meteoswiss.NewStationClient(meteoswiss.ClientConfig{
		BaseURL:  cfg.CurrentConditionURL,
		Timeout:  cfg.HTTPTimeout,
		Units:    cfg.Units,
		Registry: registry,
	})
	if cfg.HasStation() {
		stationOpts := opts
		stationOpts.Interval = cfg.StationInterval
		station = coordinator.NewStationCoordinator(stationClient, cfg.StationCode, stationOpts)
		stationSource, stationAPI = station, station
		targets = append(targets, station)
	}
	targets = append(targets, forecast)

	platform := entity.NewPlatform(entity.PlatformConfig{
		StationCode: cfg.StationCode,
		PostalCode:  cfg.PostalCode,
		Station:     stationSource,
		Forecast:    forecast,
		Logger:      log.With().Str("component", "entity").Logger(),
	})
	defer platform.Close()

	if station != nil {
		if err := station.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start station coordinator")
		}
		defer station.Stop()
	}
	if err := forecast.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start forecast coordinator")
	}
	defer forecast.Stop()

	refresher := worker.NewRefresher(worker.RefresherConfig{
		Targets: targets,
		Timeout: cfg.RefreshTimeout,
		Logger:  log.With().Str("component", "refresher").Logger(),
	})

	if cfg.MQTT.Broker != "" {
		publisher := mqtt.NewPublisher(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Logger:      log,
		}, platform)
		defer publisher.Stop()

		// Connecting retries until the broker is reachable.
		go func() {
			if err := publisher.Start(ctx); err != nil && !errors.Is(err, mqtt.ErrStopped) && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("broker", cfg.MQTT.Broker).Msg("mqtt publisher disabled")
			}
		}()
	}

	if cfg.PubSub.Subscription != "" {
		pubsubLog := log.With().Str("component", "pubsub").Logger()
		pubsubHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Processor:        worker.NewProcessor(refresher, pubsubLog),
			Logger:           pubsubLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if closeErr := pubsubHandler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := pubsubHandler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	router := api.NewRouter(api.RouterConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Logger:    log,
		Metrics:   httpMetrics,
		Registry:  registry,
		Refresher: refresher,
		Station:   stationAPI,
		Forecast:  forecast,
		Entities:  platform,
		Stations:  stationClient,
	})

	// A manual refresh may run until the refresh timeout.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RefreshTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
