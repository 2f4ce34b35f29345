package handler

import (
	"net/http"

	"github.com/swissweather/swissweather/internal/api/models"
	"github.com/swissweather/swissweather/internal/api/response"
	"github.com/swissweather/swissweather/internal/coordinator"
	"github.com/swissweather/swissweather/internal/weather"
)

// SnapshotSource returns the latest coordinator snapshot.
type SnapshotSource[T any] interface {
	Current() coordinator.Snapshot[T]
}

// WeatherHandler serves the raw coordinator records.
type WeatherHandler struct {
	station  SnapshotSource[weather.Observation]
	forecast SnapshotSource[weather.Forecast]
}

// NewWeatherHandler creates a WeatherHandler. station is nil when no
// station is configured.
func NewWeatherHandler(station SnapshotSource[weather.Observation], forecast SnapshotSource[weather.Forecast]) *WeatherHandler {
	return &WeatherHandler{station: station, forecast: forecast}
}

// GetObservation handles GET /v1/observation.
func (h *WeatherHandler) GetObservation(w http.ResponseWriter, r *http.Request) {
	if h.station == nil {
		response.NotFound(w, r, "no station configured")
		return
	}

	snap := h.station.Current()
	if !snap.HasData {
		response.ServiceUnavailable(w, r, "no observation received yet")
		return
	}
	response.JSON(w, r, http.StatusOK, observationModel(snap.Data, snap.Available))
}

// GetForecast handles GET /v1/forecast?granularity=hourly|daily.
func (h *WeatherHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	g := weather.Granularity(r.URL.Query().Get("granularity"))
	switch g {
	case "":
		g = weather.GranularityHourly
	case weather.GranularityHourly, weather.GranularityDaily:
	default:
		response.BadRequest(w, r, "invalid query parameter", []models.FieldError{{
			Field:   "granularity",
			Message: "must be hourly or daily",
			Code:    "INVALID",
		}})
		return
	}

	snap := h.forecast.Current()
	if !snap.HasData {
		response.ServiceUnavailable(w, r, "no forecast received yet")
		return
	}
	response.JSON(w, r, http.StatusOK, forecastModel(snap.Data, g, snap.Available))
}
