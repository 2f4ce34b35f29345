package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/swissweather/swissweather/internal/api/models"
	"github.com/swissweather/swissweather/internal/api/response"
	"github.com/swissweather/swissweather/internal/worker"
)

// Refresher runs manual refreshes.
type Refresher interface {
	Run(ctx context.Context, target string) (*worker.RefreshResult, error)
}

// RefreshHandler triggers coordinator refreshes.
type RefreshHandler struct {
	refresher Refresher
}

// NewRefreshHandler creates a RefreshHandler.
func NewRefreshHandler(refresher Refresher) *RefreshHandler {
	return &RefreshHandler{refresher: refresher}
}

// Refresh handles POST /v1/refresh?target=station|forecast|all.
// It waits for the cycles and reports each target's resulting state.
func (h *RefreshHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")

	result, err := h.refresher.Run(r.Context(), target)
	switch {
	case errors.Is(err, worker.ErrUnknownTarget):
		response.BadRequest(w, r, err.Error(), []models.FieldError{{
			Field:   "target",
			Message: "unknown refresh target",
			Code:    "INVALID",
		}})
		return
	case err != nil:
		response.InternalError(w, r, "refresh failed")
		return
	}

	resp := models.RefreshResponse{
		StartedAt:  models.Timestamp(result.StartTime),
		DurationMs: result.Duration.Milliseconds(),
		Successful: result.Successful,
		Failed:     result.Failed,
		Targets:    make([]models.CoordinatorStatus, 0, len(result.Targets)),
	}
	for _, t := range result.Targets {
		resp.Targets = append(resp.Targets, coordinatorStatus(t.Status))
	}
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, models.RefreshError{Target: e.Target, Reason: e.Reason, Error: e.Error})
	}
	response.Accepted(w, r, resp)
}
