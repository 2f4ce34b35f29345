package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status       HealthStatus           `json:"status"`
	Time         Timestamp              `json:"time"`
	Coordinators []CoordinatorStatus    `json:"coordinators"`
	Providers    []ProviderStatus       `json:"providers"`
	Refresh      map[string]interface{} `json:"refresh,omitempty"`
}

// CoordinatorStatus is the polling state of one coordinator.
type CoordinatorStatus struct {
	Name                string       `json:"name"`
	Status              HealthStatus `json:"status"`
	State               string       `json:"state"`
	Available           bool         `json:"available"`
	HasData             bool         `json:"hasData"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	IntervalSeconds     int64        `json:"intervalSeconds,omitempty"`
	LastFailure         *Failure     `json:"lastFailure,omitempty"`
	LastAttemptAt       *Timestamp   `json:"lastAttemptAt,omitempty"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastUpdatedAt       *Timestamp   `json:"lastUpdatedAt,omitempty"`
}

// Failure is a classified fetch failure.
type Failure struct {
	Reason     string `json:"reason"`
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
