package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swissweather/swissweather/internal/api/models"
	"github.com/swissweather/swissweather/internal/api/response"
	"github.com/swissweather/swissweather/internal/entity"
)

// Entities is the host-facing entity view.
type Entities interface {
	StationCode() string
	PostalCode() string
	Sensors() []entity.SensorState
	Weather(kind entity.Kind) entity.WeatherState
}

// EntityHandler serves sensor and weather entity states.
type EntityHandler struct {
	entities Entities
}

// NewEntityHandler creates an EntityHandler.
func NewEntityHandler(entities Entities) *EntityHandler {
	return &EntityHandler{entities: entities}
}

// ListSensors handles GET /v1/sensors.
func (h *EntityHandler) ListSensors(w http.ResponseWriter, r *http.Request) {
	states := h.entities.Sensors()
	list := models.SensorList{
		StationCode: h.entities.StationCode(),
		Sensors:     make([]models.Sensor, 0, len(states)),
	}
	for _, s := range states {
		list.Sensors = append(list.Sensors, sensorModel(s))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// GetWeather handles GET /v1/weather/{kind}.
func (h *EntityHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	kind, err := entity.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		response.BadRequest(w, r, err.Error(), []models.FieldError{{
			Field:   "kind",
			Message: "must be hourly or daily",
			Code:    "INVALID",
		}})
		return
	}
	out := weatherModel(h.entities.Weather(kind))
	out.PostalCode = h.entities.PostalCode()
	response.JSON(w, r, http.StatusOK, out)
}
