package meteoswiss_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swissweather/swissweather/internal/weather"
	"github.com/swissweather/swissweather/internal/weather/meteoswiss"
)

// 2024-06-01T10:00:00Z
const forecastStartMs = 1717236000000

const forecastJSON = `{
  "currentWeather": {"time": 1717236000000, "icon": 2, "temperature": 17.3},
  "forecast": [
    {"dayDate": "2024-06-03", "iconDay": 6, "temperatureMax": 19.0, "temperatureMin": 11.0, "precipitation": 4.2},
    {"dayDate": "2024-06-01", "iconDay": 1, "temperatureMax": 24.0, "temperatureMin": 12.0, "precipitation": 0.0},
    {"dayDate": "2024-06-02", "iconDay": 3, "temperatureMax": 22.5, "temperatureMin": 13.1, "precipitation": 0.3},
    {"dayDate": "2024-06-04", "iconDay": 14, "temperatureMax": 17.0, "temperatureMin": 10.2, "precipitation": 8.0},
    {"dayDate": "2024-06-05", "iconDay": 999, "temperatureMax": 18.0, "temperatureMin": null, "precipitation": 1.0},
    {"iconDay": 1, "temperatureMax": 30.0}
  ],
  "graph": {
    "start": 1717236000000,
    "startLowResolution": 1717239600000,
    "precipitation10m": [0.0, 0.0, 0.1],
    "precipitationMin10m": [0.0, 0.0, 0.0],
    "precipitationMax10m": [0.0, 0.1, 0.2],
    "temperatureMin1h": [15.0, 16.0, 17.0],
    "temperatureMean1h": [16.0, 17.0, 18.0],
    "temperatureMax1h": [17.0, 18.0, 19.0, 20.0],
    "precipitation1h": [0.1, 0.2],
    "precipitationMin1h": [0.0, 0.1],
    "precipitationMax1h": [0.3, 0.4],
    "gustSpeed1h": [20.0, 22.0],
    "windSpeed1h": [10.0, 11.0],
    "weatherIcon3h": [2, 101],
    "windDirection3h": [180, 200],
    "sunrise": [1717212600000, 1717298940000],
    "sunset": [1717270500000, 1717356960000]
  }
}`

func newForecastServer(t *testing.T, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		assert.Equal(t, "/v1/plzDetail", r.URL.Path)
		assert.Equal(t, "android-31 ch.admin.meteoswiss-2160000", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newForecastClient(url string) *meteoswiss.ForecastClient {
	return meteoswiss.NewForecastClient(meteoswiss.ClientConfig{
		BaseURL:    url,
		HTTPClient: http.DefaultClient,
	})
}

func TestForecastClient_FetchForecast_Request(t *testing.T) {
	var gotPLZ, gotLanguage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPLZ = r.URL.Query().Get("plz")
		gotLanguage = r.Header.Get("Accept-Language")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := meteoswiss.NewForecastClient(meteoswiss.ClientConfig{
		BaseURL:    server.URL + "/",
		HTTPClient: http.DefaultClient,
		Language:   "de",
	})

	result := client.FetchForecast(context.Background(), "8001")
	require.True(t, result.OK())
	assert.Equal(t, "800100", gotPLZ)
	assert.Equal(t, "de", gotLanguage)
}

func TestForecastClient_FetchForecast_Daily(t *testing.T) {
	server := newForecastServer(t, forecastJSON, nil)
	client := newForecastClient(server.URL)

	result := client.FetchForecast(context.Background(), "8001")
	require.True(t, result.OK(), "unexpected failure: %v", result.Err)

	daily := result.Value.Daily
	require.Len(t, daily, 5, "entry without dayDate is skipped")

	wantDates := []string{"2024-06-01", "2024-06-02", "2024-06-03", "2024-06-04", "2024-06-05"}
	for i, entry := range daily {
		assert.Equal(t, wantDates[i], entry.ValidFor.Format(time.DateOnly))
		assert.Equal(t, "Europe/Zurich", entry.ValidFor.Location().String())
		assert.Equal(t, weather.GranularityDaily, entry.Granularity)
		assert.Equal(t, "8001", entry.PostalCode)
	}

	first := daily[0]
	assert.Equal(t, 1, first.Icon)
	assert.Equal(t, weather.ConditionSunny, first.Condition)
	assert.Equal(t, weather.Some(24, weather.UnitCelsius), first.TemperatureMax)
	assert.Equal(t, weather.Some(12, weather.UnitCelsius), first.TemperatureMin)
	assert.Equal(t, weather.Some(0, weather.UnitMillimeters), first.Precipitation)

	last := daily[4]
	assert.True(t, last.HasIcon)
	assert.Equal(t, weather.ConditionUnknown, last.Condition, "icon outside the table")
	assert.False(t, last.TemperatureMin.Valid)
}

func TestForecastClient_FetchForecast_CurrentAndSun(t *testing.T) {
	server := newForecastServer(t, forecastJSON, nil)
	client := newForecastClient(server.URL)

	result := client.FetchForecast(context.Background(), "8001")
	require.True(t, result.OK())

	current := result.Value.Current
	require.NotNil(t, current)
	assert.Equal(t, weather.Some(17.3, weather.UnitCelsius), current.Temperature)
	assert.Equal(t, 2, current.Icon)
	assert.Equal(t, weather.ConditionPartlyCloudy, current.Condition)

	require.Len(t, result.Value.Sunrise, 2)
	require.Len(t, result.Value.Sunset, 2)
	assert.Equal(t, time.UnixMilli(1717212600000).UTC(), result.Value.Sunrise[0])
	assert.Equal(t, time.UTC, result.Value.Sunset[1].Location())
}

func TestForecastClient_FetchForecast_HourlyMerge(t *testing.T) {
	server := newForecastServer(t, forecastJSON, nil)
	client := newForecastClient(server.URL)

	result := client.FetchForecast(context.Background(), "8001")
	require.True(t, result.OK())

	start := time.UnixMilli(forecastStartMs).UTC()
	hourly := result.Value.Hourly

	// 1h temperatures cover start..start+2h, low-resolution covers
	// start+1h..start+2h and the 3h series covers start and start+3h.
	require.Len(t, hourly, 4)
	for i, entry := range hourly {
		assert.Equal(t, start.Add(time.Duration(i)*time.Hour), entry.ValidFor)
		assert.Equal(t, weather.GranularityHourly, entry.Granularity)
	}

	h0 := hourly[0]
	assert.Equal(t, weather.Some(16, weather.UnitCelsius), h0.TemperatureMean)
	assert.Equal(t, weather.ConditionPartlyCloudy, h0.Condition)
	assert.Equal(t, weather.Some(180, weather.UnitDegrees), h0.WindDirection)
	assert.False(t, h0.Precipitation.Valid, "10-minute series is not merged")
	assert.False(t, h0.WindSpeed.Valid)

	h1 := hourly[1]
	assert.Equal(t, weather.Some(17, weather.UnitCelsius), h1.TemperatureMean)
	assert.Equal(t, weather.Some(0.1, weather.UnitMillimeters), h1.Precipitation)
	assert.Equal(t, weather.Some(0.3, weather.UnitMillimeters), h1.PrecipitationMax)
	assert.Equal(t, weather.Some(20, weather.UnitKilometersPerHour), h1.GustSpeed)
	assert.Equal(t, weather.Some(10, weather.UnitKilometersPerHour), h1.WindSpeed)
	assert.False(t, h1.HasIcon)

	h3 := hourly[3]
	assert.Equal(t, 101, h3.Icon)
	assert.Equal(t, weather.ConditionClearNight, h3.Condition)
	assert.False(t, h3.TemperatureMean.Valid, "temperature series is as long as its shortest member")
}

func TestForecastClient_FetchForecast_EmptySections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty object", body: `{}`},
		{name: "graph without start", body: `{"graph": {"temperatureMean1h": [1.0]}, "forecast": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newForecastServer(t, tt.body, nil)
			client := newForecastClient(server.URL)

			result := client.FetchForecast(context.Background(), "3000")
			require.True(t, result.OK())
			assert.Empty(t, result.Value.Hourly)
			assert.Empty(t, result.Value.Daily)
			assert.Nil(t, result.Value.Current)
		})
	}
}

func TestForecastClient_FetchForecast_Idempotent(t *testing.T) {
	server := newForecastServer(t, forecastJSON, nil)
	client := newForecastClient(server.URL)

	first := client.FetchForecast(context.Background(), "8001")
	second := client.FetchForecast(context.Background(), "8001")
	require.True(t, first.OK())
	assert.Equal(t, first.Value, second.Value)
}

func TestForecastClient_FetchForecast_InvalidPostalCode(t *testing.T) {
	var hits atomic.Int32
	server := newForecastServer(t, forecastJSON, &hits)
	client := newForecastClient(server.URL)

	for _, plz := range []string{"", "801", "80011", "80a1"} {
		result := client.FetchForecast(context.Background(), plz)
		require.False(t, result.OK(), plz)
		assert.Equal(t, weather.ReasonParse, result.Err.Reason)
		assert.ErrorIs(t, result.Err, weather.ErrInvalidPostalCode)
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestForecastClient_FetchForecast_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		reason weather.FailureReason
	}{
		{name: "malformed json", status: http.StatusOK, body: `{"forecast": [`, reason: weather.ReasonParse},
		{name: "wrong shape", status: http.StatusOK, body: `{"forecast": {"dayDate": 1}}`, reason: weather.ReasonParse},
		{name: "not found", status: http.StatusNotFound, body: `{}`, reason: weather.ReasonUpstream},
		{name: "server error", status: http.StatusBadGateway, body: ``, reason: weather.ReasonUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newForecastClient(server.URL)

			result := client.FetchForecast(context.Background(), "8001")
			require.False(t, result.OK())
			assert.Equal(t, tt.reason, result.Err.Reason)
			if tt.reason == weather.ReasonUpstream {
				assert.Equal(t, tt.status, result.Err.StatusCode)
			}
		})
	}
}

func TestForecastClient_FetchForecast_Imperial(t *testing.T) {
	server := newForecastServer(t, forecastJSON, nil)
	client := meteoswiss.NewForecastClient(meteoswiss.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
		Units:      weather.Imperial,
	})

	result := client.FetchForecast(context.Background(), "8001")
	require.True(t, result.OK())

	day := result.Value.Daily[0]
	assert.Equal(t, weather.UnitFahrenheit, day.TemperatureMax.Unit)
	assert.InDelta(t, 75.2, day.TemperatureMax.Value, 0.001)
	assert.Equal(t, weather.UnitInches, day.Precipitation.Unit)
	assert.Equal(t, weather.UnitFahrenheit, result.Value.Current.Temperature.Unit)
}

func TestForecastClient_FetchForecast_TolerantValues(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		assert func(t *testing.T, forecast weather.Forecast)
	}{
		{
			name: "string in numeric field",
			body: `{"forecast": [{"dayDate": "2024-06-01", "iconDay": 1, "temperatureMax": "-", "temperatureMin": 12.0}]}`,
			assert: func(t *testing.T, forecast weather.Forecast) {
				require.Len(t, forecast.Daily, 1)
				day := forecast.Daily[0]
				assert.False(t, day.TemperatureMax.Valid)
				assert.Equal(t, weather.Some(12, weather.UnitCelsius), day.TemperatureMin)
				assert.Equal(t, 1, day.Icon)
			},
		},
		{
			name: "integral float icon",
			body: `{"currentWeather": {"icon": 2.0, "temperature": 17.3}, "forecast": [{"dayDate": "2024-06-01", "iconDay": 1.0}]}`,
			assert: func(t *testing.T, forecast weather.Forecast) {
				require.Len(t, forecast.Daily, 1)
				assert.True(t, forecast.Daily[0].HasIcon)
				assert.Equal(t, 1, forecast.Daily[0].Icon)
				assert.Equal(t, weather.ConditionSunny, forecast.Daily[0].Condition)
				require.NotNil(t, forecast.Current)
				assert.Equal(t, 2, forecast.Current.Icon)
			},
		},
		{
			name: "fractional icon",
			body: `{"forecast": [{"dayDate": "2024-06-01", "iconDay": 1.5, "temperatureMax": 20.0}]}`,
			assert: func(t *testing.T, forecast weather.Forecast) {
				require.Len(t, forecast.Daily, 1)
				assert.False(t, forecast.Daily[0].HasIcon)
				assert.Equal(t, weather.Some(20, weather.UnitCelsius), forecast.Daily[0].TemperatureMax)
			},
		},
		{
			name: "object in numeric field",
			body: `{"currentWeather": {"icon": 2, "temperature": {"value": 17.3}}}`,
			assert: func(t *testing.T, forecast weather.Forecast) {
				require.NotNil(t, forecast.Current)
				assert.False(t, forecast.Current.Temperature.Valid)
				assert.True(t, forecast.Current.HasIcon)
			},
		},
		{
			name: "numeric day date skips the entry",
			body: `{"forecast": [{"dayDate": 20240601, "iconDay": 1}, {"dayDate": "2024-06-02", "iconDay": 3}]}`,
			assert: func(t *testing.T, forecast weather.Forecast) {
				require.Len(t, forecast.Daily, 1)
				assert.Equal(t, 3, forecast.Daily[0].Icon)
			},
		},
		{
			name: "mixed series values",
			body: `{"graph": {"start": 1717236000000.0,
				"temperatureMin1h": [1.0, "x"], "temperatureMean1h": [2.0, null], "temperatureMax1h": [3.0, true],
				"sunrise": [1717212600000, "soon"]}}`,
			assert: func(t *testing.T, forecast weather.Forecast) {
				require.Len(t, forecast.Hourly, 2)
				assert.Equal(t, time.UnixMilli(forecastStartMs).UTC(), forecast.Hourly[0].ValidFor)
				assert.Equal(t, weather.Some(2, weather.UnitCelsius), forecast.Hourly[0].TemperatureMean)
				assert.False(t, forecast.Hourly[1].TemperatureMin.Valid)
				assert.False(t, forecast.Hourly[1].TemperatureMean.Valid)
				assert.False(t, forecast.Hourly[1].TemperatureMax.Valid)
				assert.Len(t, forecast.Sunrise, 1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newForecastServer(t, tt.body, nil)
			client := newForecastClient(server.URL)

			result := client.FetchForecast(context.Background(), "8001")
			require.True(t, result.OK(), "a wrong-typed value must not fail the forecast")
			tt.assert(t, result.Value)
		})
	}
}

func TestForecastClient_FetchForecast_DuplicateValidFor(t *testing.T) {
	t.Run("daily", func(t *testing.T) {
		body := `{"forecast": [
			{"dayDate": "2024-06-01", "iconDay": 1, "temperatureMax": 24.0},
			{"dayDate": "2024-06-02", "iconDay": 3, "temperatureMax": 22.0},
			{"dayDate": "2024-06-01", "iconDay": 5, "temperatureMax": 25.0}
		]}`
		server := newForecastServer(t, body, nil)
		client := newForecastClient(server.URL)

		result := client.FetchForecast(context.Background(), "8001")
		require.True(t, result.OK())

		daily := result.Value.Daily
		require.Len(t, daily, 2)
		assert.Equal(t, "2024-06-01", daily[0].ValidFor.Format(time.DateOnly))
		assert.Equal(t, weather.Some(25, weather.UnitCelsius), daily[0].TemperatureMax)
		assert.Equal(t, 5, daily[0].Icon)
		assert.Equal(t, "2024-06-02", daily[1].ValidFor.Format(time.DateOnly))
	})

	t.Run("hourly", func(t *testing.T) {
		// startLowResolution repeats the 1h slots, so both series land on the same entries.
		body := `{"graph": {"start": 1717236000000, "startLowResolution": 1717236000000,
			"temperatureMin1h": [15.0, 16.0], "temperatureMean1h": [16.0, 17.0], "temperatureMax1h": [17.0, 18.0],
			"precipitation1h": [0.1, 0.2], "precipitationMin1h": [0.0, 0.1], "precipitationMax1h": [0.3, 0.4],
			"gustSpeed1h": [20.0, 22.0], "windSpeed1h": [10.0, 11.0]}}`
		server := newForecastServer(t, body, nil)
		client := newForecastClient(server.URL)

		result := client.FetchForecast(context.Background(), "8001")
		require.True(t, result.OK())

		hourly := result.Value.Hourly
		require.Len(t, hourly, 2)
		start := time.UnixMilli(forecastStartMs).UTC()
		assert.Equal(t, start, hourly[0].ValidFor)
		assert.Equal(t, start.Add(time.Hour), hourly[1].ValidFor)
		assert.Equal(t, weather.Some(16, weather.UnitCelsius), hourly[0].TemperatureMean)
		assert.Equal(t, weather.Some(0.1, weather.UnitMillimeters), hourly[0].Precipitation)
		assert.Equal(t, weather.Some(11, weather.UnitKilometersPerHour), hourly[1].WindSpeed)
	})
}
