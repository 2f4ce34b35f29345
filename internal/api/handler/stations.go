package handler

import (
	"context"
	"net/http"

	"github.com/swissweather/swissweather/internal/api/models"
	"github.com/swissweather/swissweather/internal/api/response"
	"github.com/swissweather/swissweather/internal/weather"
)

// StationLister fetches the observations of every station.
type StationLister interface {
	FetchAllObservations(ctx context.Context) weather.Result[[]weather.Observation]
}

// StationsHandler lists the stations upstream currently reports, for
// picking a station code.
type StationsHandler struct {
	lister StationLister
}

// NewStationsHandler creates a StationsHandler.
func NewStationsHandler(lister StationLister) *StationsHandler {
	return &StationsHandler{lister: lister}
}

// ListStations handles GET /v1/stations. Every call fetches upstream.
func (h *StationsHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	result := h.lister.FetchAllObservations(r.Context())
	if !result.OK() {
		response.ServiceUnavailable(w, r, "station list unavailable: "+string(result.Err.Reason))
		return
	}

	list := models.StationList{Stations: make([]models.Observation, 0, len(result.Value))}
	for _, o := range result.Value {
		list.Stations = append(list.Stations, observationModel(o, true))
	}
	response.JSON(w, r, http.StatusOK, list)
}
