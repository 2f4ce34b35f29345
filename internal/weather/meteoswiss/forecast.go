package meteoswiss

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/swissweather/swissweather/internal/provider/resilience"
	"github.com/swissweather/swissweather/internal/weather"
)

var postalCodePattern = regexp.MustCompile(`^[0-9]{4}$`)

// zurich is the zone daily forecast dates are expressed in.
var zurich = mustLoadLocation("Europe/Zurich")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// ForecastClient fetches postal-code forecasts from the MeteoSwiss app service.
type ForecastClient struct {
	baseURL    string
	httpClient HTTPDoer
	language   string
	units      weather.UnitSystem
	registry   *resilience.Registry
}

// NewForecastClient creates a new forecast client.
func NewForecastClient(cfg ClientConfig) *ForecastClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultForecastBaseURL
	}
	language := cfg.Language
	if language == "" {
		language = "en"
	}
	units := cfg.Units
	if units == "" {
		units = weather.Metric
	}

	return &ForecastClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: newHTTPClient(ForecastProviderName, cfg),
		language:   language,
		units:      units,
		registry:   cfg.Registry,
	}
}

// API response types (from the MeteoSwiss app plzDetail endpoint).
// Every value is optional upstream. A value of the wrong JSON type marks
// that one field absent instead of failing the whole document.

type forecastResponse struct {
	CurrentWeather *currentWeatherData `json:"currentWeather"`
	Forecast       []dailyData         `json:"forecast"`
	Graph          *graphData          `json:"graph"`
}

type currentWeatherData struct {
	Icon        optionalInt   `json:"icon"`
	Temperature optionalFloat `json:"temperature"`
}

type dailyData struct {
	DayDate                  json.RawMessage `json:"dayDate"`
	IconDay                  optionalInt     `json:"iconDay"`
	TemperatureMax           optionalFloat   `json:"temperatureMax"`
	TemperatureMin           optionalFloat   `json:"temperatureMin"`
	Precipitation            optionalFloat   `json:"precipitation"`
	PrecipitationMin         optionalFloat   `json:"precipitationMin"`
	PrecipitationMax         optionalFloat   `json:"precipitationMax"`
	PrecipitationProbability optionalFloat   `json:"precipitationProbability"`
}

type graphData struct {
	Start              optionalInt `json:"start"`
	StartLowResolution optionalInt `json:"startLowResolution"`

	TemperatureMin1h  []optionalFloat `json:"temperatureMin1h"`
	TemperatureMean1h []optionalFloat `json:"temperatureMean1h"`
	TemperatureMax1h  []optionalFloat `json:"temperatureMax1h"`

	Precipitation1h    []optionalFloat `json:"precipitation1h"`
	PrecipitationMin1h []optionalFloat `json:"precipitationMin1h"`
	PrecipitationMax1h []optionalFloat `json:"precipitationMax1h"`
	GustSpeed1h        []optionalFloat `json:"gustSpeed1h"`
	WindSpeed1h        []optionalFloat `json:"windSpeed1h"`

	WeatherIcon3h   []optionalInt   `json:"weatherIcon3h"`
	WindDirection3h []optionalFloat `json:"windDirection3h"`

	Sunrise []optionalInt `json:"sunrise"`
	Sunset  []optionalInt `json:"sunset"`
}

// optionalFloat is a JSON number that is absent when null or not a number.
type optionalFloat struct {
	value float64
	ok    bool
}

func (f *optionalFloat) UnmarshalJSON(data []byte) error {
	*f = optionalFloat{}
	if isNull(data) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	*f = optionalFloat{value: v, ok: true}
	return nil
}

// optionalInt is a JSON integer that is absent when null, not a number or
// fractional. Integral floats such as 1.0 are accepted.
type optionalInt struct {
	value int64
	ok    bool
}

func (n *optionalInt) UnmarshalJSON(data []byte) error {
	*n = optionalInt{}
	if isNull(data) {
		return nil
	}
	if v, err := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 64); err == nil {
		*n = optionalInt{value: v, ok: true}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return nil
	}
	*n = optionalInt{value: int64(f), ok: true}
	return nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// FetchForecast returns the normalized forecast for a 4-digit Swiss postal code.
func (c *ForecastClient) FetchForecast(ctx context.Context, postalCode string) weather.Result[weather.Forecast] {
	plz := strings.TrimSpace(postalCode)
	if !postalCodePattern.MatchString(plz) {
		return weather.Failure[weather.Forecast](weather.ParseError(
			fmt.Errorf("%w: %q", weather.ErrInvalidPostalCode, postalCode)))
	}

	// The service addresses locations as the postal code followed by "00".
	url := fmt.Sprintf("%s/v1/plzDetail?plz=%s00", c.baseURL, plz)
	header := http.Header{
		"User-Agent":      {forecastUserAgent},
		"Accept-Language": {c.language},
		"Accept":          {"application/json"},
	}

	body, fetchErr := get(ctx, c.httpClient, url, header)
	if fetchErr != nil {
		record(c.registry, ForecastProviderName, fetchErr)
		return weather.Failure[weather.Forecast](fetchErr)
	}

	forecast, err := c.parseForecast(body, plz)
	if err != nil {
		fetchErr = weather.ParseError(err)
		record(c.registry, ForecastProviderName, fetchErr)
		return weather.Failure[weather.Forecast](fetchErr)
	}

	record(c.registry, ForecastProviderName, nil)
	return weather.Success(forecast)
}

func (c *ForecastClient) parseForecast(body []byte, plz string) (weather.Forecast, error) {
	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return weather.Forecast{}, fmt.Errorf("decode forecast response: %w", err)
	}

	forecast := weather.Forecast{
		PostalCode: plz,
		Current:    c.toCurrentState(resp.CurrentWeather),
		Daily:      c.toDaily(plz, resp.Forecast),
		Hourly:     c.toHourly(plz, resp.Graph),
	}
	if resp.Graph != nil {
		forecast.Sunrise = epochList(resp.Graph.Sunrise)
		forecast.Sunset = epochList(resp.Graph.Sunset)
	}
	return forecast, nil
}

func (c *ForecastClient) toCurrentState(cw *currentWeatherData) *weather.CurrentState {
	if cw == nil {
		return nil
	}
	state := &weather.CurrentState{
		Temperature: c.measurement(cw.Temperature, weather.UnitCelsius),
	}
	if cw.Icon.ok {
		state.Icon = int(cw.Icon.value)
		state.HasIcon = true
		state.Condition = weather.ConditionForIcon(state.Icon)
	}
	return state
}

func (c *ForecastClient) toDaily(plz string, days []dailyData) []weather.ForecastEntry {
	entries := make([]weather.ForecastEntry, 0, len(days))
	for i := range days {
		d := &days[i]
		var date string
		if err := json.Unmarshal(d.DayDate, &date); err != nil {
			continue
		}
		day, err := time.ParseInLocation(time.DateOnly, date, zurich)
		if err != nil {
			continue
		}

		entry := weather.ForecastEntry{
			PostalCode:               plz,
			ValidFor:                 day,
			Granularity:              weather.GranularityDaily,
			TemperatureMin:           c.measurement(d.TemperatureMin, weather.UnitCelsius),
			TemperatureMean:          weather.None(weather.UnitCelsius).In(c.units),
			TemperatureMax:           c.measurement(d.TemperatureMax, weather.UnitCelsius),
			PrecipitationMin:         c.measurement(d.PrecipitationMin, weather.UnitMillimeters),
			Precipitation:            c.measurement(d.Precipitation, weather.UnitMillimeters),
			PrecipitationMax:         c.measurement(d.PrecipitationMax, weather.UnitMillimeters),
			PrecipitationProbability: c.measurement(d.PrecipitationProbability, weather.UnitPercent),
			WindSpeed:                weather.None(weather.UnitKilometersPerHour).In(c.units),
			WindDirection:            weather.None(weather.UnitDegrees),
			GustSpeed:                weather.None(weather.UnitKilometersPerHour).In(c.units),
		}
		setIcon(&entry, d.IconDay)
		entries = append(entries, entry)
	}
	return normalizeEntries(entries)
}

// toHourly merges the 1h, 1h low-resolution and 3h series onto one timeline.
// Each group is as long as its shortest member series.
func (c *ForecastClient) toHourly(plz string, g *graphData) []weather.ForecastEntry {
	if g == nil || !g.Start.ok {
		return []weather.ForecastEntry{}
	}

	slots := make(map[int64]*weather.ForecastEntry)
	slot := func(t time.Time) *weather.ForecastEntry {
		key := t.UnixMilli()
		if e, ok := slots[key]; ok {
			return e
		}
		e := c.emptyHourly(plz, t)
		slots[key] = e
		return e
	}

	start := time.UnixMilli(g.Start.value).UTC()

	n := minLen(len(g.TemperatureMin1h), len(g.TemperatureMean1h), len(g.TemperatureMax1h))
	for i := 0; i < n; i++ {
		e := slot(start.Add(time.Duration(i) * time.Hour))
		e.TemperatureMin = c.measurement(g.TemperatureMin1h[i], weather.UnitCelsius)
		e.TemperatureMean = c.measurement(g.TemperatureMean1h[i], weather.UnitCelsius)
		e.TemperatureMax = c.measurement(g.TemperatureMax1h[i], weather.UnitCelsius)
	}

	if g.StartLowResolution.ok {
		lowStart := time.UnixMilli(g.StartLowResolution.value).UTC()
		n = minLen(len(g.Precipitation1h), len(g.PrecipitationMin1h), len(g.PrecipitationMax1h),
			len(g.GustSpeed1h), len(g.WindSpeed1h))
		for i := 0; i < n; i++ {
			e := slot(lowStart.Add(time.Duration(i) * time.Hour))
			e.Precipitation = c.measurement(g.Precipitation1h[i], weather.UnitMillimeters)
			e.PrecipitationMin = c.measurement(g.PrecipitationMin1h[i], weather.UnitMillimeters)
			e.PrecipitationMax = c.measurement(g.PrecipitationMax1h[i], weather.UnitMillimeters)
			e.GustSpeed = c.measurement(g.GustSpeed1h[i], weather.UnitKilometersPerHour)
			e.WindSpeed = c.measurement(g.WindSpeed1h[i], weather.UnitKilometersPerHour)
		}
	}

	n = minLen(len(g.WeatherIcon3h), len(g.WindDirection3h))
	for i := 0; i < n; i++ {
		e := slot(start.Add(time.Duration(3*i) * time.Hour))
		setIcon(e, g.WeatherIcon3h[i])
		e.WindDirection = c.measurement(g.WindDirection3h[i], weather.UnitDegrees)
	}

	entries := make([]weather.ForecastEntry, 0, len(slots))
	for _, e := range slots {
		entries = append(entries, *e)
	}
	return normalizeEntries(entries)
}

func (c *ForecastClient) emptyHourly(plz string, t time.Time) *weather.ForecastEntry {
	none := func(u weather.Unit) weather.Measurement { return weather.None(u).In(c.units) }
	return &weather.ForecastEntry{
		PostalCode:               plz,
		ValidFor:                 t,
		Granularity:              weather.GranularityHourly,
		TemperatureMin:           none(weather.UnitCelsius),
		TemperatureMean:          none(weather.UnitCelsius),
		TemperatureMax:           none(weather.UnitCelsius),
		PrecipitationMin:         none(weather.UnitMillimeters),
		Precipitation:            none(weather.UnitMillimeters),
		PrecipitationMax:         none(weather.UnitMillimeters),
		PrecipitationProbability: none(weather.UnitPercent),
		WindSpeed:                none(weather.UnitKilometersPerHour),
		WindDirection:            none(weather.UnitDegrees),
		GustSpeed:                none(weather.UnitKilometersPerHour),
	}
}

func (c *ForecastClient) measurement(v optionalFloat, unit weather.Unit) weather.Measurement {
	if !v.ok {
		return weather.None(unit).In(c.units)
	}
	return weather.Some(v.value, unit).In(c.units)
}

func setIcon(e *weather.ForecastEntry, icon optionalInt) {
	if !icon.ok {
		return
	}
	e.Icon = int(icon.value)
	e.HasIcon = true
	e.Condition = weather.ConditionForIcon(e.Icon)
}

// normalizeEntries orders entries by ValidFor; of entries sharing a
// timestamp the one parsed last wins.
func normalizeEntries(entries []weather.ForecastEntry) []weather.ForecastEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ValidFor.Before(entries[j].ValidFor)
	})

	out := entries[:0]
	for _, e := range entries {
		if n := len(out); n > 0 && out[n-1].ValidFor.Equal(e.ValidFor) {
			out[n-1] = e
			continue
		}
		out = append(out, e)
	}
	return out
}

func epochList(ms []optionalInt) []time.Time {
	out := make([]time.Time, 0, len(ms))
	for _, v := range ms {
		if v.ok {
			out = append(out, time.UnixMilli(v.value).UTC())
		}
	}
	return out
}

func minLen(lengths ...int) int {
	n := lengths[0]
	for _, l := range lengths[1:] {
		n = min(n, l)
	}
	return n
}
