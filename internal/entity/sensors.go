// Package entity maps coordinator snapshots onto the sensor and weather
// entities a home-automation host displays.
package entity

import (
	"fmt"
	"time"

	"github.com/swissweather/swissweather/internal/weather"
)

// Device classes understood by the host.
const (
	DeviceClassTemperature   = "temperature"
	DeviceClassPrecipitation = "precipitation"
	DeviceClassDuration      = "duration"
	DeviceClassIrradiance    = "irradiance"
	DeviceClassHumidity      = "humidity"
	DeviceClassWindSpeed     = "wind_speed"
	DeviceClassPressure      = "atmospheric_pressure"

	StateClassMeasurement = "measurement"
)

// SensorDescription describes one observation field exposed as a sensor.
type SensorDescription struct {
	Key         string
	Name        string
	DeviceClass string
	StateClass  string
	Value       func(weather.Observation) weather.Measurement
}

// SensorDescriptions lists every observation sensor.
var SensorDescriptions = []SensorDescription{
	{"temperature", "Air temperature", DeviceClassTemperature, StateClassMeasurement,
		func(o weather.Observation) weather.Measurement { return o.Temperature }},
	{"precipitation", "Precipitation", DeviceClassPrecipitation, StateClassMeasurement,
		func(o weather.Observation) weather.Measurement { return o.Precipitation }},
	{"sunshine", "Sunshine", DeviceClassDuration, StateClassMeasurement,
		func(o weather.Observation) weather.Measurement { return o.Sunshine }},
	{"global_radiation", "Global radiation", DeviceClassIrradiance, StateClassMeasurement,
		func(o weather.Observation) weather.Measurement { return o.GlobalRadiation }},
	{"relative_humidity", "Relative humidity", DeviceClassHumidity, StateClassMeasurement,
		func(o weather.Observation) weather.Measurement { return o.RelativeHumidity }},
	{"dew_point", "Dew point", DeviceClassTemperature, StateClassMeasurement,
		func(o weather.Observation) weather.Measurement { return o.DewPoint }},
	{"wind_direction", "Wind direction", "", StateClassMeasurement,
		func(o weather.Observation) weather.Measurement { return o.WindDirection }},
	{"wind_speed", "Wind speed", DeviceClassWindSpeed, StateClassMeasurement,
		func(o weather.Observation) weather.Measurement { return o.WindSpeed }},
	{"gust_peak", "Gust peak", DeviceClassWindSpeed, StateClassMeasurement,
		func(o weather.Observation) weather.Measurement { return o.GustPeak }},
	{"pressure_station", "Pressure at station level", DeviceClassPressure, StateClassMeasurement,
		func(o weather.Observation) weather.Measurement { return o.PressureStation }},
	{"pressure_sea_level", "Pressure at sea level", DeviceClassPressure, StateClassMeasurement,
		func(o weather.Observation) weather.Measurement { return o.PressureSeaLevel }},
	{"pressure_standard_atmosphere", "Pressure at sea level (standard atmosphere)", DeviceClassPressure, StateClassMeasurement,
		func(o weather.Observation) weather.Measurement { return o.PressureStandardAtmosphere }},
}

// SensorState is the displayed state of one sensor.
type SensorState struct {
	UniqueID    string
	Key         string
	Name        string
	DeviceClass string
	StateClass  string

	// Value is nil when unknown.
	Value     *float64
	Unit      weather.Unit
	Available bool

	ObservedAt time.Time
}

// SensorUniqueID returns the host-wide identifier of a station sensor.
func SensorUniqueID(stationCode, key string) string {
	return fmt.Sprintf("swiss_weather.%s.%s", stationCode, key)
}

func sensorState(stationCode string, d SensorDescription, obs weather.Observation, hasData, available bool) SensorState {
	state := SensorState{
		UniqueID:    SensorUniqueID(stationCode, d.Key),
		Key:         d.Key,
		Name:        fmt.Sprintf("%s at %s", d.Name, stationCode),
		DeviceClass: d.DeviceClass,
		StateClass:  d.StateClass,
		Available:   available,
	}

	m := d.Value(obs)
	state.Unit = m.Unit
	if hasData {
		state.Value = m.Ptr()
		state.ObservedAt = obs.ObservedAt
	}
	return state
}
