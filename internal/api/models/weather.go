package models

// Measurement is a nullable value with its unit.
type Measurement struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

// Observation is the latest station measurement set.
type Observation struct {
	StationCode string    `json:"stationCode"`
	ObservedAt  Timestamp `json:"observedAt"`
	Available   bool      `json:"available"`

	Temperature                Measurement `json:"temperature"`
	Precipitation              Measurement `json:"precipitation"`
	Sunshine                   Measurement `json:"sunshine"`
	GlobalRadiation            Measurement `json:"globalRadiation"`
	RelativeHumidity           Measurement `json:"relativeHumidity"`
	DewPoint                   Measurement `json:"dewPoint"`
	WindDirection              Measurement `json:"windDirection"`
	WindSpeed                  Measurement `json:"windSpeed"`
	GustPeak                   Measurement `json:"gustPeak"`
	PressureStation            Measurement `json:"pressureStation"`
	PressureSeaLevel           Measurement `json:"pressureSeaLevel"`
	PressureStandardAtmosphere Measurement `json:"pressureStandardAtmosphere"`
}

// StationList is the latest observation of every reporting station.
type StationList struct {
	Stations []Observation `json:"stations"`
}

// Forecast is one forecast section for a postal code.
type Forecast struct {
	PostalCode  string          `json:"postalCode"`
	Granularity string          `json:"granularity"`
	Available   bool            `json:"available"`
	Current     *CurrentState   `json:"current,omitempty"`
	Entries     []ForecastEntry `json:"entries"`
	Sunrise     []Timestamp     `json:"sunrise,omitempty"`
	Sunset      []Timestamp     `json:"sunset,omitempty"`
}

// CurrentState is the forecast's view of the present conditions.
type CurrentState struct {
	Temperature Measurement `json:"temperature"`
	Icon        *int        `json:"icon,omitempty"`
	Condition   string      `json:"condition,omitempty"`
}

// ForecastEntry is the forecast for one time slot.
type ForecastEntry struct {
	ValidFor  Timestamp `json:"validFor"`
	Icon      *int      `json:"icon,omitempty"`
	Condition string    `json:"condition,omitempty"`

	TemperatureMin           Measurement `json:"temperatureMin"`
	TemperatureMean          Measurement `json:"temperatureMean"`
	TemperatureMax           Measurement `json:"temperatureMax"`
	PrecipitationMin         Measurement `json:"precipitationMin"`
	Precipitation            Measurement `json:"precipitation"`
	PrecipitationMax         Measurement `json:"precipitationMax"`
	PrecipitationProbability Measurement `json:"precipitationProbability"`
	WindSpeed                Measurement `json:"windSpeed"`
	WindDirection            Measurement `json:"windDirection"`
	GustSpeed                Measurement `json:"gustSpeed"`
}

// Sensor is the state of one sensor entity.
type Sensor struct {
	UniqueID    string     `json:"uniqueId"`
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	DeviceClass string     `json:"deviceClass,omitempty"`
	StateClass  string     `json:"stateClass,omitempty"`
	Value       *float64   `json:"value"`
	Unit        string     `json:"unit"`
	Available   bool       `json:"available"`
	ObservedAt  *Timestamp `json:"observedAt,omitempty"`
}

// SensorList wraps the sensor entities.
type SensorList struct {
	StationCode string   `json:"stationCode,omitempty"`
	Sensors     []Sensor `json:"sensors"`
}

// Weather is the state of a weather entity.
type Weather struct {
	UniqueID   string `json:"uniqueId"`
	Name       string `json:"name"`
	PostalCode string `json:"postalCode"`
	Kind       string `json:"kind"`
	Available  bool   `json:"available"`
	Condition  string `json:"condition,omitempty"`

	Temperature Measurement  `json:"temperature"`
	Humidity    *float64     `json:"humidity"`
	WindSpeed   Measurement  `json:"windSpeed"`
	WindBearing *float64     `json:"windBearing"`
	Pressure    Measurement  `json:"pressure"`
	Forecast    []WeatherDay `json:"forecast"`
}

// WeatherDay is one forecast slot of a weather entity.
type WeatherDay struct {
	DateTime      Timestamp `json:"datetime"`
	Condition     string    `json:"condition,omitempty"`
	Temperature   *float64  `json:"temperature"`
	TempLow       *float64  `json:"templow"`
	Precipitation *float64  `json:"precipitation"`
	WindSpeed     *float64  `json:"windSpeed,omitempty"`
	WindBearing   *float64  `json:"windBearing,omitempty"`
}

// RefreshResponse reports a manual refresh.
type RefreshResponse struct {
	StartedAt  Timestamp           `json:"startedAt"`
	DurationMs int64               `json:"durationMs"`
	Successful int                 `json:"successful"`
	Failed     int                 `json:"failed"`
	Targets    []CoordinatorStatus `json:"targets"`
	Errors     []RefreshError      `json:"errors,omitempty"`
}

// RefreshError is the failure of one refresh target.
type RefreshError struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}
