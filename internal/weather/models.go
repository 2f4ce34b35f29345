// Package weather defines the normalized observation and forecast records
// shared by the MeteoSwiss clients, the coordinators and the entity layer.
package weather

import (
	"errors"
	"slices"
	"time"
)

// Validation errors returned before any request is made.
var (
	ErrEmptyStationCode  = errors.New("station code is empty")
	ErrInvalidPostalCode = errors.New("postal code must be 4 digits")
	ErrStationNotFound   = errors.New("station not found in response")
)

// Measurement is a nullable numeric value with its unit.
// Valid is false when upstream did not deliver a usable value.
type Measurement struct {
	Value float64
	Unit  Unit
	Valid bool
}

// Some returns a valid measurement.
func Some(value float64, unit Unit) Measurement {
	return Measurement{Value: value, Unit: unit, Valid: true}
}

// None returns an absent measurement that still carries its unit.
func None(unit Unit) Measurement {
	return Measurement{Unit: unit}
}

// Ptr returns the value as a pointer, nil when absent.
func (m Measurement) Ptr() *float64 {
	if !m.Valid {
		return nil
	}
	v := m.Value
	return &v
}

// Observation is the latest measurement snapshot of one station.
type Observation struct {
	StationCode string

	// ObservedAt is the measurement time in UTC.
	ObservedAt time.Time

	Temperature      Measurement
	Precipitation    Measurement
	Sunshine         Measurement
	GlobalRadiation  Measurement
	RelativeHumidity Measurement
	DewPoint         Measurement
	WindDirection    Measurement
	WindSpeed        Measurement
	GustPeak         Measurement

	// PressureStation is the pressure at station level (QFE).
	PressureStation Measurement
	// PressureSeaLevel is the pressure reduced to sea level (QFF).
	PressureSeaLevel Measurement
	// PressureStandardAtmosphere is the pressure reduced to sea level
	// using the standard atmosphere (QNH).
	PressureStandardAtmosphere Measurement
}

// Granularity tags a forecast entry with its time resolution.
type Granularity string

const (
	GranularityHourly Granularity = "hourly"
	GranularityDaily  Granularity = "daily"
)

// ForecastEntry is the forecast for one time slot.
type ForecastEntry struct {
	PostalCode  string
	ValidFor    time.Time
	Granularity Granularity

	Icon      int
	HasIcon   bool
	Condition Condition

	TemperatureMin  Measurement
	TemperatureMean Measurement
	TemperatureMax  Measurement

	PrecipitationMin         Measurement
	Precipitation            Measurement
	PrecipitationMax         Measurement
	PrecipitationProbability Measurement

	WindSpeed     Measurement
	WindDirection Measurement
	GustSpeed     Measurement
}

// CurrentState is the forecast service's view of the present conditions.
type CurrentState struct {
	Temperature Measurement
	Icon        int
	HasIcon     bool
	Condition   Condition
}

// Forecast holds the normalized forecast for one postal code.
// Hourly and Daily are ordered by ascending ValidFor.
type Forecast struct {
	PostalCode string
	Current    *CurrentState
	Hourly     []ForecastEntry
	Daily      []ForecastEntry
	Sunrise    []time.Time
	Sunset     []time.Time
}

// Clone returns a deep copy of the forecast.
func (f Forecast) Clone() Forecast {
	out := f
	if f.Current != nil {
		current := *f.Current
		out.Current = &current
	}
	out.Hourly = slices.Clone(f.Hourly)
	out.Daily = slices.Clone(f.Daily)
	out.Sunrise = slices.Clone(f.Sunrise)
	out.Sunset = slices.Clone(f.Sunset)
	return out
}

// Entries returns the section for the given granularity.
func (f Forecast) Entries(g Granularity) []ForecastEntry {
	if g == GranularityDaily {
		return f.Daily
	}
	return f.Hourly
}
