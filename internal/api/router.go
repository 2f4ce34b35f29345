// Package api provides the HTTP API for swissweather.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/swissweather/swissweather/internal/api/handler"
	"github.com/swissweather/swissweather/internal/api/middleware"
	"github.com/swissweather/swissweather/internal/provider/resilience"
	"github.com/swissweather/swissweather/internal/weather"
	"github.com/swissweather/swissweather/internal/worker"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	// Registry may be nil.
	Registry  *resilience.Registry
	Refresher *worker.Refresher

	// Station is nil when no station is configured.
	Station  handler.SnapshotSource[weather.Observation]
	Forecast handler.SnapshotSource[weather.Forecast]
	Entities handler.Entities

	// Stations serves GET /v1/stations. The route is absent when nil.
	Stations handler.StationLister
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)

	opsCfg := handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Statuses:  cfg.Refresher,
		Metrics:   cfg.Refresher,
	}
	if cfg.Registry != nil {
		opsCfg.Providers = cfg.Registry
	}

	opsHandler := handler.NewOpsHandler(opsCfg)
	weatherHandler := handler.NewWeatherHandler(cfg.Station, cfg.Forecast)
	entityHandler := handler.NewEntityHandler(cfg.Entities)
	refreshHandler := handler.NewRefreshHandler(cfg.Refresher)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	refreshRateLimit := middleware.RateLimitByIP(middleware.RefreshRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
			r.Get("/providers/{name}", opsHandler.ProviderStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/observation", weatherHandler.GetObservation)
			r.Get("/forecast", weatherHandler.GetForecast)
			r.Get("/sensors", entityHandler.ListSensors)
			r.Get("/weather/{kind}", entityHandler.GetWeather)
		})

		// Each refresh and station listing hits upstream.
		r.With(refreshRateLimit).Post("/refresh", refreshHandler.Refresh)
		if cfg.Stations != nil {
			stationsHandler := handler.NewStationsHandler(cfg.Stations)
			r.With(refreshRateLimit).Get("/stations", stationsHandler.ListStations)
		}
	})

	return r
}
