package coordinator

import (
	"context"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/swissweather/swissweather/internal/weather"
)

// Coordinator names used by the API and the refresh trigger.
const (
	StationName  = "station"
	ForecastName = "forecast"
)

// Default polling intervals.
const (
	DefaultStationInterval  = 10 * time.Minute
	DefaultForecastInterval = 30 * time.Minute
)

// StationFetcher fetches the observation of one station.
type StationFetcher interface {
	FetchObservation(ctx context.Context, stationCode string) weather.Result[weather.Observation]
}

// ForecastFetcher fetches the forecast of one postal code.
type ForecastFetcher interface {
	FetchForecast(ctx context.Context, postalCode string) weather.Result[weather.Forecast]
}

// Options are the knobs shared by the weather coordinators.
type Options struct {
	Interval         time.Duration
	FetchTimeout     time.Duration
	FailureThreshold int
	Metrics          *Metrics
	Logger           zerolog.Logger
	Now              func() time.Time
}

// NewStationCoordinator polls the observation of one station.
func NewStationCoordinator(client StationFetcher, stationCode string, opts Options) *Coordinator[weather.Observation] {
	if opts.Interval <= 0 {
		opts.Interval = DefaultStationInterval
	}
	return New(Config[weather.Observation]{
		Name: StationName,
		Fetch: func(ctx context.Context) weather.Result[weather.Observation] {
			return client.FetchObservation(ctx, stationCode)
		},
		Compare:          CompareObservations,
		Interval:         opts.Interval,
		FetchTimeout:     opts.FetchTimeout,
		FailureThreshold: opts.FailureThreshold,
		Metrics:          opts.Metrics,
		Logger:           opts.Logger.With().Str("station", stationCode).Logger(),
		Now:              opts.Now,
	})
}

// NewForecastCoordinator polls the forecast of one postal code.
func NewForecastCoordinator(client ForecastFetcher, postalCode string, opts Options) *Coordinator[weather.Forecast] {
	if opts.Interval <= 0 {
		opts.Interval = DefaultForecastInterval
	}
	return New(Config[weather.Forecast]{
		Name: ForecastName,
		Fetch: func(ctx context.Context) weather.Result[weather.Forecast] {
			return client.FetchForecast(ctx, postalCode)
		},
		Compare:          CompareForecasts,
		Clone:            weather.Forecast.Clone,
		Interval:         opts.Interval,
		FetchTimeout:     opts.FetchTimeout,
		FailureThreshold: opts.FailureThreshold,
		Metrics:          opts.Metrics,
		Logger:           opts.Logger.With().Str("postal_code", postalCode).Logger(),
		Now:              opts.Now,
	})
}

// CompareObservations orders observations by measurement time. A record
// with the stored timestamp carries no new data even if values differ.
func CompareObservations(prev, next weather.Observation) Freshness {
	switch {
	case next.ObservedAt.After(prev.ObservedAt):
		return Newer
	case next.ObservedAt.Before(prev.ObservedAt):
		return Older
	default:
		return Same
	}
}

// CompareForecasts treats any change as newer. Forecasts carry no issue
// time, so they cannot be stale.
func CompareForecasts(prev, next weather.Forecast) Freshness {
	if reflect.DeepEqual(prev, next) {
		return Same
	}
	return Newer
}
