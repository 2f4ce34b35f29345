// Package meteoswiss provides clients for the public MeteoSwiss endpoints:
// the current-conditions CSV of the automatic measurement network and the
// postal-code forecast used by the MeteoSwiss app.
package meteoswiss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	// Daily forecast dates are civil dates in Europe/Zurich.
	_ "time/tzdata"

	"github.com/swissweather/swissweather/internal/provider/resilience"
	"github.com/swissweather/swissweather/internal/weather"
)

const (
	// DefaultCurrentConditionURL serves the latest 10-minute values of all stations.
	DefaultCurrentConditionURL = "https://data.geo.admin.ch/ch.meteoschweiz.messwerte-aktuell/VQHA80.csv"

	// DefaultForecastBaseURL is the base URL of the app forecast service.
	DefaultForecastBaseURL = "https://app-prod-ws.meteoswiss-app.ch"

	// StationProviderName identifies the station client in the provider registry.
	StationProviderName = "meteoswiss-stations"

	// ForecastProviderName identifies the forecast client in the provider registry.
	ForecastProviderName = "meteoswiss-forecast"

	forecastUserAgent = "android-31 ch.admin.meteoswiss-2160000"

	maxBodySize = 16 << 20
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration shared by the MeteoSwiss clients.
type ClientConfig struct {
	// BaseURL overrides DefaultCurrentConditionURL for the station client
	// and DefaultForecastBaseURL for the forecast client.
	BaseURL string

	// HTTPClient is the HTTP client to use.
	// If nil, a resilient client without retries is created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Units is the unit system records are normalized to (default: metric).
	Units weather.UnitSystem

	// Language is sent as Accept-Language to the forecast service (default: en).
	Language string

	// Registry, when set, tracks provider health for the status endpoint.
	Registry *resilience.Registry
}

func newHTTPClient(name string, cfg ClientConfig) HTTPDoer {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}

	rc := resilience.DefaultClientConfig(name)
	if cfg.Timeout > 0 {
		rc.Timeout = cfg.Timeout
	}
	rc.Registry = cfg.Registry
	return resilience.NewClient(rc)
}

// get performs one GET request and classifies its failure.
func get(ctx context.Context, doer HTTPDoer, url string, header http.Header) ([]byte, *weather.FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, weather.NetworkError(fmt.Errorf("create request: %w", err))
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, weather.NetworkError(fmt.Errorf("fetch %s: %w", req.URL.Path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, weather.UpstreamError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, weather.NetworkError(fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

func record(registry *resilience.Registry, name string, fetchErr *weather.FetchError) {
	if registry == nil {
		return
	}
	if fetchErr == nil {
		registry.RecordSuccess(name)
		return
	}
	registry.RecordFailure(name, fetchErr)
}
