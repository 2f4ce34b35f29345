// Package handler provides HTTP handlers for the swissweather API.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/swissweather/swissweather/internal/api/models"
	"github.com/swissweather/swissweather/internal/api/response"
	"github.com/swissweather/swissweather/internal/coordinator"
	"github.com/swissweather/swissweather/internal/provider/resilience"
)

// StatusSource reports the polling state of every coordinator.
type StatusSource interface {
	Statuses() []coordinator.Status
}

// ProviderHealthSource reports upstream circuit health.
type ProviderHealthSource interface {
	GetAllHealth() []*resilience.ProviderHealth
	GetHealth(name string) *resilience.ProviderHealth
}

// MetricsSource exposes refresh counters.
type MetricsSource interface {
	MetricsSnapshot() map[string]interface{}
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	statuses  StatusSource
	providers ProviderHealthSource
	metrics   MetricsSource
	now       func() time.Time
}

// OpsConfig holds the dependencies of an OpsHandler. Providers and
// Metrics may be nil.
type OpsConfig struct {
	Version   string
	BuildTime string
	Statuses  StatusSource
	Providers ProviderHealthSource
	Metrics   MetricsSource
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		statuses:  cfg.Statuses,
		providers: cfg.Providers,
		metrics:   cfg.Metrics,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. It fails while any coordinator
// is unavailable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	details := make(map[string]interface{})
	ready := true
	for _, s := range h.statuses.Statuses() {
		details[s.Name] = s.Available
		if !s.Available {
			ready = false
		}
	}

	if !ready {
		response.ServiceUnavailable(w, r, "one or more coordinators are unavailable")
		return
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(h.now()),
		Details: details,
	})
}

// SystemStatus handles GET /v1/ops/status - coordinator and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:       models.HealthStatusOK,
		Time:         models.Timestamp(h.now()),
		Coordinators: []models.CoordinatorStatus{},
		Providers:    []models.ProviderStatus{},
	}

	for _, s := range h.statuses.Statuses() {
		cs := coordinatorStatus(s)
		status.Status = worst(status.Status, cs.Status)
		status.Coordinators = append(status.Coordinators, cs)
	}

	if h.providers != nil {
		for _, p := range h.providers.GetAllHealth() {
			ps := providerStatus(p)
			status.Status = worst(status.Status, ps.Status)
			status.Providers = append(status.Providers, ps)
		}
	}

	if h.metrics != nil {
		status.Refresh = h.metrics.MetricsSnapshot()
	}

	response.JSON(w, r, http.StatusOK, status)
}

// ProviderStatus handles GET /v1/ops/providers/{name}.
func (h *OpsHandler) ProviderStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.providers == nil {
		response.NotFound(w, r, "no providers registered")
		return
	}
	p := h.providers.GetHealth(name)
	if p == nil {
		response.NotFound(w, r, "unknown provider "+name)
		return
	}
	response.JSON(w, r, http.StatusOK, providerStatus(p))
}

func coordinatorStatus(s coordinator.Status) models.CoordinatorStatus {
	cs := models.CoordinatorStatus{
		Name:                s.Name,
		Status:              models.HealthStatusOK,
		State:               string(s.State),
		Available:           s.Available,
		HasData:             s.HasData,
		ConsecutiveFailures: s.ConsecutiveFailures,
		IntervalSeconds:     int64(s.Interval / time.Second),
		LastAttemptAt:       models.NewTimestamp(s.LastAttemptAt),
		LastSuccessAt:       models.NewTimestamp(s.LastSuccessAt),
		LastUpdatedAt:       models.NewTimestamp(s.LastUpdatedAt),
	}
	switch {
	case !s.Available:
		cs.Status = models.HealthStatusFail
	case s.ConsecutiveFailures > 0:
		cs.Status = models.HealthStatusDegraded
	}
	if s.LastFailure != nil {
		cs.LastFailure = &models.Failure{
			Reason:     string(s.LastFailure.Reason),
			StatusCode: s.LastFailure.StatusCode,
			Message:    s.LastFailure.Error(),
		}
	}
	return cs
}

func providerStatus(p *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:     p.Name,
		Status:       models.HealthStatusOK,
		CircuitState: p.CircuitState.String(),
	}
	switch {
	case p.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case p.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	if p.LastSuccessAt != nil {
		ps.LastSuccessAt = models.NewTimestamp(*p.LastSuccessAt)
	}
	if p.LastFailureAt != nil {
		ps.LastFailureAt = models.NewTimestamp(*p.LastFailureAt)
	}
	if p.LastError != "" {
		msg := p.LastError
		ps.Message = &msg
	}
	return ps
}

var healthRank = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if healthRank[b] > healthRank[a] {
		return b
	}
	return a
}
