package resilience_test

import (
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swissweather/swissweather/internal/provider/resilience"
)

func TestRegistry_RegisterAndGetHealth(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("test-provider")
	cfg.Registry = registry

	client := resilience.NewClient(cfg)

	// Client should be registered
	assert.Len(t, registry.GetAllHealth(), 1)

	// Get health
	health := registry.GetHealth("test-provider")
	require.NotNil(t, health)
	assert.Equal(t, "test-provider", health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.False(t, health.IsDegraded())
	assert.False(t, health.IsUnhealthy())

	// Verify client name
	assert.Equal(t, "test-provider", client.Name())
}

func TestRegistry_RecordSuccess(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("test-provider")
	cfg.Registry = registry

	_ = resilience.NewClient(cfg)

	// Before recording success
	health := registry.GetHealth("test-provider")
	require.NotNil(t, health)
	assert.Nil(t, health.LastSuccessAt)

	// Record success
	registry.RecordSuccess("test-provider")

	// After recording success
	health = registry.GetHealth("test-provider")
	require.NotNil(t, health)
	require.NotNil(t, health.LastSuccessAt)
	assert.WithinDuration(t, time.Now(), *health.LastSuccessAt, time.Second)
}

func TestRegistry_RecordFailure(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("test-provider")
	cfg.Registry = registry

	_ = resilience.NewClient(cfg)

	// Before recording failure
	health := registry.GetHealth("test-provider")
	require.NotNil(t, health)
	assert.Nil(t, health.LastFailureAt)
	assert.Empty(t, health.LastError)

	// Record failure
	registry.RecordFailure("test-provider", assert.AnError)

	// After recording failure
	health = registry.GetHealth("test-provider")
	require.NotNil(t, health)
	require.NotNil(t, health.LastFailureAt)
	assert.WithinDuration(t, time.Now(), *health.LastFailureAt, time.Second)
	assert.Equal(t, assert.AnError.Error(), health.LastError)
}

func TestRegistry_GetAllHealth_SortedByName(t *testing.T) {
	registry := resilience.NewRegistry()

	for _, name := range []string{"meteoswiss-stations", "meteoswiss-forecast", "other"} {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		_ = resilience.NewClient(cfg)
	}

	healthList := registry.GetAllHealth()
	require.Len(t, healthList, 3)

	assert.Equal(t, "meteoswiss-forecast", healthList[0].Name)
	assert.Equal(t, "meteoswiss-stations", healthList[1].Name)
	assert.Equal(t, "other", healthList[2].Name)
	for _, h := range healthList {
		assert.Equal(t, gobreaker.StateClosed, h.CircuitState)
	}
}

func TestRegistry_GetHealthNotFound(t *testing.T) {
	registry := resilience.NewRegistry()

	health := registry.GetHealth("nonexistent")
	assert.Nil(t, health)
}

func TestRegistry_RecordSuccessNotFound(t *testing.T) {
	registry := resilience.NewRegistry()

	// Should not panic
	registry.RecordSuccess("nonexistent")
}

func TestRegistry_RecordFailureNotFound(t *testing.T) {
	registry := resilience.NewRegistry()

	// Should not panic
	registry.RecordFailure("nonexistent", assert.AnError)
}

func TestProviderHealth_States(t *testing.T) {
	tests := []struct {
		state      gobreaker.State
		isHealthy  bool
		isDegraded bool
		isUnhealth bool
	}{
		{gobreaker.StateClosed, true, false, false},
		{gobreaker.StateHalfOpen, false, true, false},
		{gobreaker.StateOpen, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := &resilience.ProviderHealth{CircuitState: tt.state}
			assert.Equal(t, tt.isHealthy, h.IsHealthy())
			assert.Equal(t, tt.isDegraded, h.IsDegraded())
			assert.Equal(t, tt.isUnhealth, h.IsUnhealthy())
		})
	}
}
