package weather

import "fmt"

// Unit is the display unit of a measurement.
type Unit string

const (
	UnitCelsius           Unit = "°C"
	UnitFahrenheit        Unit = "°F"
	UnitMillimeters       Unit = "mm"
	UnitInches            Unit = "in"
	UnitPercent           Unit = "%"
	UnitDegrees           Unit = "°"
	UnitKilometersPerHour Unit = "km/h"
	UnitMilesPerHour      Unit = "mph"
	UnitHectopascal       Unit = "hPa"
	UnitInchesOfMercury   Unit = "inHg"
	UnitMinutes           Unit = "min"
	UnitWattsPerSquareM   Unit = "W/m²"
)

// UnitSystem selects the units records are normalized to.
type UnitSystem string

const (
	// Metric keeps the upstream units.
	Metric   UnitSystem = "metric"
	Imperial UnitSystem = "imperial"
)

// ParseUnitSystem parses a unit system name. Empty means Metric.
func ParseUnitSystem(s string) (UnitSystem, error) {
	switch UnitSystem(s) {
	case "", Metric:
		return Metric, nil
	case Imperial:
		return Imperial, nil
	default:
		return "", fmt.Errorf("unknown unit system %q", s)
	}
}

// In converts the measurement to the given unit system.
// Units without an imperial counterpart pass through unchanged.
func (m Measurement) In(system UnitSystem) Measurement {
	if system != Imperial {
		return m
	}

	out := m
	switch m.Unit {
	case UnitCelsius:
		out.Unit = UnitFahrenheit
		out.Value = m.Value*9/5 + 32
	case UnitMillimeters:
		out.Unit = UnitInches
		out.Value = m.Value / 25.4
	case UnitKilometersPerHour:
		out.Unit = UnitMilesPerHour
		out.Value = m.Value / 1.609344
	case UnitHectopascal:
		out.Unit = UnitInchesOfMercury
		out.Value = m.Value * 0.0295299830714
	}
	if !m.Valid {
		out.Value = 0
	}
	return out
}
