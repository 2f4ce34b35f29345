package handler

import (
	"time"

	"github.com/swissweather/swissweather/internal/api/models"
	"github.com/swissweather/swissweather/internal/entity"
	"github.com/swissweather/swissweather/internal/weather"
)

func measurement(m weather.Measurement) models.Measurement {
	return models.Measurement{Value: m.Ptr(), Unit: string(m.Unit)}
}

func unitValue(v *float64, u weather.Unit) models.Measurement {
	return models.Measurement{Value: v, Unit: string(u)}
}

func icon(v int, ok bool) *int {
	if !ok {
		return nil
	}
	return &v
}

func timestamps(ts []time.Time) []models.Timestamp {
	if len(ts) == 0 {
		return nil
	}
	out := make([]models.Timestamp, len(ts))
	for i, t := range ts {
		out[i] = models.Timestamp(t)
	}
	return out
}

func observationModel(o weather.Observation, available bool) models.Observation {
	return models.Observation{
		StationCode:                o.StationCode,
		ObservedAt:                 models.Timestamp(o.ObservedAt),
		Available:                  available,
		Temperature:                measurement(o.Temperature),
		Precipitation:              measurement(o.Precipitation),
		Sunshine:                   measurement(o.Sunshine),
		GlobalRadiation:            measurement(o.GlobalRadiation),
		RelativeHumidity:           measurement(o.RelativeHumidity),
		DewPoint:                   measurement(o.DewPoint),
		WindDirection:              measurement(o.WindDirection),
		WindSpeed:                  measurement(o.WindSpeed),
		GustPeak:                   measurement(o.GustPeak),
		PressureStation:            measurement(o.PressureStation),
		PressureSeaLevel:           measurement(o.PressureSeaLevel),
		PressureStandardAtmosphere: measurement(o.PressureStandardAtmosphere),
	}
}

func forecastModel(f weather.Forecast, g weather.Granularity, available bool) models.Forecast {
	out := models.Forecast{
		PostalCode:  f.PostalCode,
		Granularity: string(g),
		Available:   available,
		Sunrise:     timestamps(f.Sunrise),
		Sunset:      timestamps(f.Sunset),
	}
	if c := f.Current; c != nil {
		out.Current = &models.CurrentState{
			Temperature: measurement(c.Temperature),
			Icon:        icon(c.Icon, c.HasIcon),
			Condition:   string(c.Condition),
		}
	}

	entries := f.Entries(g)
	out.Entries = make([]models.ForecastEntry, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		out.Entries = append(out.Entries, models.ForecastEntry{
			ValidFor:                 models.Timestamp(e.ValidFor),
			Icon:                     icon(e.Icon, e.HasIcon),
			Condition:                string(e.Condition),
			TemperatureMin:           measurement(e.TemperatureMin),
			TemperatureMean:          measurement(e.TemperatureMean),
			TemperatureMax:           measurement(e.TemperatureMax),
			PrecipitationMin:         measurement(e.PrecipitationMin),
			Precipitation:            measurement(e.Precipitation),
			PrecipitationMax:         measurement(e.PrecipitationMax),
			PrecipitationProbability: measurement(e.PrecipitationProbability),
			WindSpeed:                measurement(e.WindSpeed),
			WindDirection:            measurement(e.WindDirection),
			GustSpeed:                measurement(e.GustSpeed),
		})
	}
	return out
}

func sensorModel(s entity.SensorState) models.Sensor {
	return models.Sensor{
		UniqueID:    s.UniqueID,
		Key:         s.Key,
		Name:        s.Name,
		DeviceClass: s.DeviceClass,
		StateClass:  s.StateClass,
		Value:       s.Value,
		Unit:        string(s.Unit),
		Available:   s.Available,
		ObservedAt:  models.NewTimestamp(s.ObservedAt),
	}
}

func weatherModel(s entity.WeatherState) models.Weather {
	out := models.Weather{
		UniqueID:    s.UniqueID,
		Name:        s.Name,
		Kind:        string(s.Kind),
		Available:   s.Available,
		Condition:   string(s.Condition),
		Temperature: unitValue(s.Temperature, s.TemperatureUnit),
		Humidity:    s.Humidity,
		WindSpeed:   unitValue(s.WindSpeed, s.WindSpeedUnit),
		WindBearing: s.WindBearing,
		Pressure:    unitValue(s.Pressure, s.PressureUnit),
		Forecast:    make([]models.WeatherDay, 0, len(s.Forecast)),
	}
	for _, f := range s.Forecast {
		out.Forecast = append(out.Forecast, models.WeatherDay{
			DateTime:      models.Timestamp(f.DateTime),
			Condition:     string(f.Condition),
			Temperature:   f.Temperature,
			TempLow:       f.TempLow,
			Precipitation: f.Precipitation,
			WindSpeed:     f.WindSpeed,
			WindBearing:   f.WindBearing,
		})
	}
	return out
}
