package entity

import (
	"fmt"
	"time"

	"github.com/swissweather/swissweather/internal/coordinator"
	"github.com/swissweather/swissweather/internal/weather"
)

// Kind selects the forecast attached to a weather entity.
type Kind string

const (
	KindHourly Kind = "hourly"
	KindDaily  Kind = "daily"
)

// ParseKind parses a weather entity kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindHourly, KindDaily:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown weather kind %q", s)
	}
}

// WeatherState is the displayed state of a weather entity.
type WeatherState struct {
	UniqueID  string
	Name      string
	Kind      Kind
	Available bool

	Condition weather.Condition

	Temperature     *float64
	TemperatureUnit weather.Unit
	Humidity        *float64
	WindSpeed       *float64
	WindSpeedUnit   weather.Unit
	WindBearing     *float64
	Pressure        *float64
	PressureUnit    weather.Unit

	Forecast []ForecastItem
}

// ForecastItem is one forecast slot as shown by the host.
type ForecastItem struct {
	DateTime      time.Time
	Condition     weather.Condition
	Temperature   *float64
	TempLow       *float64
	Precipitation *float64
	WindSpeed     *float64
	WindBearing   *float64
}

// WeatherUniqueID returns the host-wide identifier of a weather entity.
func WeatherUniqueID(postalCode string, kind Kind) string {
	return fmt.Sprintf("swiss_weather.%s.%s", postalCode, kind)
}

// weatherState folds the station and forecast snapshots into one entity.
// The station snapshot is nil when no station is configured.
func weatherState(
	postalCode string,
	kind Kind,
	station *coordinator.Snapshot[weather.Observation],
	forecast coordinator.Snapshot[weather.Forecast],
	now time.Time,
) WeatherState {
	label := "Daily"
	if kind == KindHourly {
		label = "Hourly"
	}

	state := WeatherState{
		UniqueID:  WeatherUniqueID(postalCode, kind),
		Name:      fmt.Sprintf("Weather at %s (%s)", postalCode, label),
		Kind:      kind,
		Available: forecast.Available,
	}

	var current *weather.CurrentState
	if forecast.HasData {
		current = forecast.Data.Current
	}
	if current != nil {
		state.Condition = current.Condition
	}

	if station != nil && station.HasData {
		obs := station.Data
		setMeasurement(&state.Humidity, nil, obs.RelativeHumidity)
		setMeasurement(&state.WindSpeed, &state.WindSpeedUnit, obs.WindSpeed)
		setMeasurement(&state.WindBearing, nil, obs.WindDirection)
		setMeasurement(&state.Pressure, &state.PressureUnit, obs.PressureStation)
		setMeasurement(&state.Temperature, &state.TemperatureUnit, obs.Temperature)
	}
	if state.Temperature == nil && current != nil {
		setMeasurement(&state.Temperature, &state.TemperatureUnit, current.Temperature)
	}

	if !forecast.HasData {
		return state
	}

	entries := forecast.Data.Entries(weather.Granularity(kind))
	state.Forecast = make([]ForecastItem, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if kind == KindHourly && e.ValidFor.Before(now) {
			continue
		}
		state.Forecast = append(state.Forecast, forecastItem(kind, e))
	}
	return state
}

func forecastItem(kind Kind, e *weather.ForecastEntry) ForecastItem {
	item := ForecastItem{
		DateTime:      e.ValidFor,
		Condition:     e.Condition,
		TempLow:       e.TemperatureMin.Ptr(),
		Precipitation: e.Precipitation.Ptr(),
	}
	if kind == KindHourly {
		item.Temperature = e.TemperatureMean.Ptr()
		item.WindSpeed = e.WindSpeed.Ptr()
		item.WindBearing = e.WindDirection.Ptr()
	} else {
		item.Temperature = e.TemperatureMax.Ptr()
	}
	return item
}

func setMeasurement(value **float64, unit *weather.Unit, m weather.Measurement) {
	if !m.Valid {
		return
	}
	*value = m.Ptr()
	if unit != nil {
		*unit = m.Unit
	}
}
