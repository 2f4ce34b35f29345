package mqtt

import (
	"time"

	"github.com/swissweather/swissweather/internal/entity"
	"github.com/swissweather/swissweather/internal/weather"
)

type sensorPayload struct {
	Name        string     `json:"name"`
	State       *float64   `json:"state"`
	Unit        string     `json:"unit_of_measurement,omitempty"`
	DeviceClass string     `json:"device_class,omitempty"`
	StateClass  string     `json:"state_class,omitempty"`
	ObservedAt  *time.Time `json:"observed_at,omitempty"`
}

func newSensorPayload(s entity.SensorState) sensorPayload {
	p := sensorPayload{
		Name:        s.Name,
		State:       s.Value,
		Unit:        string(s.Unit),
		DeviceClass: s.DeviceClass,
		StateClass:  s.StateClass,
	}
	if !s.ObservedAt.IsZero() {
		t := s.ObservedAt
		p.ObservedAt = &t
	}
	return p
}

type weatherPayload struct {
	Name            string            `json:"name"`
	Condition       weather.Condition `json:"condition"`
	Temperature     *float64          `json:"temperature"`
	TemperatureUnit string            `json:"temperature_unit,omitempty"`
	Humidity        *float64          `json:"humidity"`
	WindSpeed       *float64          `json:"wind_speed"`
	WindSpeedUnit   string            `json:"wind_speed_unit,omitempty"`
	WindBearing     *float64          `json:"wind_bearing"`
	Pressure        *float64          `json:"pressure"`
	PressureUnit    string            `json:"pressure_unit,omitempty"`
	Forecast        []forecastPayload `json:"forecast"`
}

type forecastPayload struct {
	DateTime      time.Time         `json:"datetime"`
	Condition     weather.Condition `json:"condition"`
	Temperature   *float64          `json:"temperature"`
	TempLow       *float64          `json:"templow,omitempty"`
	Precipitation *float64          `json:"precipitation,omitempty"`
	WindSpeed     *float64          `json:"wind_speed,omitempty"`
	WindBearing   *float64          `json:"wind_bearing,omitempty"`
}

func newWeatherPayload(w entity.WeatherState) weatherPayload {
	p := weatherPayload{
		Name:            w.Name,
		Condition:       w.Condition,
		Temperature:     w.Temperature,
		TemperatureUnit: string(w.TemperatureUnit),
		Humidity:        w.Humidity,
		WindSpeed:       w.WindSpeed,
		WindSpeedUnit:   string(w.WindSpeedUnit),
		WindBearing:     w.WindBearing,
		Pressure:        w.Pressure,
		PressureUnit:    string(w.PressureUnit),
		Forecast:        make([]forecastPayload, 0, len(w.Forecast)),
	}
	for _, f := range w.Forecast {
		p.Forecast = append(p.Forecast, forecastPayload{
			DateTime:      f.DateTime,
			Condition:     f.Condition,
			Temperature:   f.Temperature,
			TempLow:       f.TempLow,
			Precipitation: f.Precipitation,
			WindSpeed:     f.WindSpeed,
			WindBearing:   f.WindBearing,
		})
	}
	return p
}
