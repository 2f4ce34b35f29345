package meteoswiss

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/swissweather/swissweather/internal/provider/resilience"
	"github.com/swissweather/swissweather/internal/weather"
)

const (
	columnStation = "Station/Location"
	columnDate    = "Date"

	observationDateLayout = "200601021504"
)

// stationColumn binds a CSV parameter column to an observation field.
type stationColumn struct {
	name  string
	unit  weather.Unit
	field func(*weather.Observation) *weather.Measurement
}

var stationColumns = []stationColumn{
	{"tre200s0", weather.UnitCelsius, func(o *weather.Observation) *weather.Measurement { return &o.Temperature }},
	{"rre150z0", weather.UnitMillimeters, func(o *weather.Observation) *weather.Measurement { return &o.Precipitation }},
	{"sre000z0", weather.UnitMinutes, func(o *weather.Observation) *weather.Measurement { return &o.Sunshine }},
	{"gre000z0", weather.UnitWattsPerSquareM, func(o *weather.Observation) *weather.Measurement { return &o.GlobalRadiation }},
	{"ure200s0", weather.UnitPercent, func(o *weather.Observation) *weather.Measurement { return &o.RelativeHumidity }},
	{"tde200s0", weather.UnitCelsius, func(o *weather.Observation) *weather.Measurement { return &o.DewPoint }},
	{"dkl010z0", weather.UnitDegrees, func(o *weather.Observation) *weather.Measurement { return &o.WindDirection }},
	{"fu3010z0", weather.UnitKilometersPerHour, func(o *weather.Observation) *weather.Measurement { return &o.WindSpeed }},
	{"fu3010z1", weather.UnitKilometersPerHour, func(o *weather.Observation) *weather.Measurement { return &o.GustPeak }},
	{"prestas0", weather.UnitHectopascal, func(o *weather.Observation) *weather.Measurement { return &o.PressureStation }},
	{"pp0qffs0", weather.UnitHectopascal, func(o *weather.Observation) *weather.Measurement { return &o.PressureSeaLevel }},
	{"pp0qnhs0", weather.UnitHectopascal, func(o *weather.Observation) *weather.Measurement { return &o.PressureStandardAtmosphere }},
}

// StationClient fetches current observations of the automatic measurement network.
type StationClient struct {
	url        string
	httpClient HTTPDoer
	units      weather.UnitSystem
	registry   *resilience.Registry
}

// NewStationClient creates a new station observation client.
func NewStationClient(cfg ClientConfig) *StationClient {
	url := cfg.BaseURL
	if url == "" {
		url = DefaultCurrentConditionURL
	}
	units := cfg.Units
	if units == "" {
		units = weather.Metric
	}

	return &StationClient{
		url:        url,
		httpClient: newHTTPClient(StationProviderName, cfg),
		units:      units,
		registry:   cfg.Registry,
	}
}

// FetchObservation returns the latest observation of one station.
// The station code is matched case-insensitively.
func (c *StationClient) FetchObservation(ctx context.Context, stationCode string) weather.Result[weather.Observation] {
	code := strings.TrimSpace(stationCode)
	if code == "" {
		return weather.Failure[weather.Observation](weather.ParseError(weather.ErrEmptyStationCode))
	}

	body, fetchErr := get(ctx, c.httpClient, c.url, nil)
	if fetchErr != nil {
		record(c.registry, StationProviderName, fetchErr)
		return weather.Failure[weather.Observation](fetchErr)
	}

	obs, err := c.parseStation(body, code)
	if err != nil {
		fetchErr = weather.ParseError(err)
		record(c.registry, StationProviderName, fetchErr)
		return weather.Failure[weather.Observation](fetchErr)
	}

	record(c.registry, StationProviderName, nil)
	return weather.Success(obs)
}

// FetchAllObservations returns the observations of every station in the
// response ordered by station code. Rows without a usable date are skipped.
func (c *StationClient) FetchAllObservations(ctx context.Context) weather.Result[[]weather.Observation] {
	body, fetchErr := get(ctx, c.httpClient, c.url, nil)
	if fetchErr != nil {
		record(c.registry, StationProviderName, fetchErr)
		return weather.Failure[[]weather.Observation](fetchErr)
	}

	observations := make([]weather.Observation, 0, 160)
	err := c.scan(body, func(row csvRow) bool {
		obs, err := c.toObservation(row)
		if err == nil {
			observations = append(observations, obs)
		}
		return true
	})
	if err != nil {
		fetchErr = weather.ParseError(err)
		record(c.registry, StationProviderName, fetchErr)
		return weather.Failure[[]weather.Observation](fetchErr)
	}

	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].StationCode < observations[j].StationCode
	})

	record(c.registry, StationProviderName, nil)
	return weather.Success(observations)
}

func (c *StationClient) parseStation(body []byte, code string) (weather.Observation, error) {
	var (
		found bool
		obs   weather.Observation
		err   error
	)
	scanErr := c.scan(body, func(row csvRow) bool {
		if !strings.EqualFold(row.get(columnStation), code) {
			return true
		}
		found = true
		obs, err = c.toObservation(row)
		return false
	})
	if scanErr != nil {
		return weather.Observation{}, scanErr
	}
	if !found {
		return weather.Observation{}, fmt.Errorf("%w: %s", weather.ErrStationNotFound, code)
	}
	return obs, err
}

// csvRow is one record addressed by header name.
type csvRow struct {
	columns map[string]int
	record  []string
}

func (r csvRow) get(name string) string {
	i, ok := r.columns[name]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

// scan iterates the CSV records until fn returns false.
func (c *StationClient) scan(body []byte, fn func(csvRow) bool) error {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, []byte("\uFEFF"))))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty response")
		}
		return fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{columnStation, columnDate} {
		if _, ok := columns[required]; !ok {
			return fmt.Errorf("missing column %q", required)
		}
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}
		if !fn(csvRow{columns: columns, record: record}) {
			return nil
		}
	}
}

// toObservation converts a CSV row to an observation in the client's unit system.
func (c *StationClient) toObservation(row csvRow) (weather.Observation, error) {
	code := row.get(columnStation)
	if code == "" {
		return weather.Observation{}, errors.New("row without station code")
	}

	observedAt, err := time.ParseInLocation(observationDateLayout, row.get(columnDate), time.UTC)
	if err != nil {
		return weather.Observation{}, fmt.Errorf("station %s: parse date: %w", code, err)
	}

	obs := weather.Observation{
		StationCode: code,
		ObservedAt:  observedAt,
	}
	for _, col := range stationColumns {
		*col.field(&obs) = parseMeasurement(row.get(col.name), col.unit).In(c.units)
	}
	return obs, nil
}

// parseMeasurement treats "-", blanks and non-numeric values as absent.
func parseMeasurement(raw string, unit weather.Unit) weather.Measurement {
	if raw == "" || raw == "-" {
		return weather.None(unit)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return weather.None(unit)
	}
	return weather.Some(v, unit)
}
