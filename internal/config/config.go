// Package config loads the service configuration from the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/swissweather/swissweather/internal/weather"
)

// ErrInvalid is wrapped by every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete service configuration.
type Config struct {
	Env      string `env:"APP_ENV" validate:"oneof=development production test"`
	Port     string `env:"APP_PORT" validate:"required,numeric"`
	LogLevel string `env:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`

	PostalCode  string             `env:"SWISSWEATHER_POST_CODE" validate:"required,len=4,numeric"`
	StationCode string             `env:"SWISSWEATHER_STATION_CODE" validate:"omitempty,min=2,max=5,alphanum"`
	Language    string             `env:"SWISSWEATHER_LANGUAGE" validate:"oneof=en de fr it"`
	Units       weather.UnitSystem `env:"SWISSWEATHER_UNITS" validate:"oneof=metric imperial"`

	StationInterval  time.Duration `env:"STATION_POLL_INTERVAL" validate:"min=1m"`
	ForecastInterval time.Duration `env:"FORECAST_POLL_INTERVAL" validate:"min=1m"`
	FetchTimeout     time.Duration `env:"FETCH_TIMEOUT" validate:"gt=0"`
	RefreshTimeout   time.Duration `env:"REFRESH_TIMEOUT" validate:"gtefield=FetchTimeout"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" validate:"gt=0"`
	FailureThreshold int           `env:"FAILURE_THRESHOLD" validate:"min=1"`

	CurrentConditionURL string `env:"CURRENT_CONDITION_URL" validate:"omitempty,url"`
	ForecastBaseURL     string `env:"FORECAST_BASE_URL" validate:"omitempty,url"`

	Telemetry TelemetryConfig
	MQTT      MQTTConfig
	PubSub    PubSubConfig
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `env:"OTEL_ENABLED"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" validate:"required_if=Enabled true"`
}

// MQTTConfig enables the MQTT state publisher when Broker is set.
type MQTTConfig struct {
	Broker      string `env:"MQTT_BROKER" validate:"omitempty,url"`
	ClientID    string `env:"MQTT_CLIENT_ID" validate:"required_with=Broker"`
	TopicPrefix string `env:"MQTT_TOPIC_PREFIX" validate:"required_with=Broker,excludesall=#+"`
}

// PubSubConfig enables the refresh trigger when Subscription is set.
type PubSubConfig struct {
	ProjectID    string `env:"PUBSUB_PROJECT_ID" validate:"required_with=Subscription"`
	Subscription string `env:"PUBSUB_SUBSCRIPTION"`
}

// Lookup resolves one environment key.
type Lookup func(key string) (string, bool)

// Load reads the given .env files, when present, and then the process
// environment. Variables already set in the environment take precedence.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds and validates the configuration from lookup.
func FromLookup(lookup Lookup) (*Config, error) {
	p := parser{lookup: lookup}

	cfg := &Config{
		Env:      p.getString("APP_ENV", "development"),
		Port:     p.getString("APP_PORT", "8080"),
		LogLevel: strings.ToLower(p.getString("LOG_LEVEL", "info")),

		PostalCode:  p.getString("SWISSWEATHER_POST_CODE", ""),
		StationCode: strings.ToUpper(p.getString("SWISSWEATHER_STATION_CODE", "")),
		Language:    strings.ToLower(p.getString("SWISSWEATHER_LANGUAGE", "en")),
		Units:       p.getUnits("SWISSWEATHER_UNITS"),

		StationInterval:  p.getDuration("STATION_POLL_INTERVAL", 10*time.Minute),
		ForecastInterval: p.getDuration("FORECAST_POLL_INTERVAL", 30*time.Minute),
		FetchTimeout:     p.getDuration("FETCH_TIMEOUT", 30*time.Second),
		RefreshTimeout:   p.getDuration("REFRESH_TIMEOUT", time.Minute),
		HTTPTimeout:      p.getDuration("HTTP_TIMEOUT", 10*time.Second),
		FailureThreshold: p.getInt("FAILURE_THRESHOLD", 3),

		CurrentConditionURL: p.getString("CURRENT_CONDITION_URL", ""),
		ForecastBaseURL:     p.getString("FORECAST_BASE_URL", ""),

		Telemetry: TelemetryConfig{
			Enabled:      p.getBool("OTEL_ENABLED", false),
			OTLPEndpoint: p.getString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		MQTT: MQTTConfig{
			Broker:      p.getString("MQTT_BROKER", ""),
			ClientID:    p.getString("MQTT_CLIENT_ID", "swissweather"),
			TopicPrefix: strings.TrimSuffix(p.getString("MQTT_TOPIC_PREFIX", "swissweather"), "/"),
		},
		PubSub: PubSubConfig{
			ProjectID:    p.getString("PUBSUB_PROJECT_ID", ""),
			Subscription: p.getString("PUBSUB_SUBSCRIPTION", ""),
		},
	}

	if len(p.errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(p.errs...))
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasStation reports whether a station is configured.
func (c *Config) HasStation() bool {
	return c.StationCode != ""
}

// Level returns the parsed log level.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

var validate = func() func(*Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})

	return func(cfg *Config) error {
		err := v.Struct(cfg)
		if err == nil {
			return nil
		}

		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %q)", fe.Field(), fe.Tag(), fmt.Sprint(fe.Value())))
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
}()

// parser reads typed values and collects conversion errors.
type parser struct {
	lookup Lookup
	errs   []error
}

func (p *parser) getString(key, def string) string {
	if v, ok := p.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *parser) getDuration(key string, def time.Duration) time.Duration {
	raw := p.getString(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) getInt(key string, def int) int {
	raw := p.getString(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) getBool(key string, def bool) bool {
	raw := p.getString(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) getUnits(key string) weather.UnitSystem {
	units, err := weather.ParseUnitSystem(strings.ToLower(p.getString(key, "")))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return weather.Metric
	}
	return units
}
