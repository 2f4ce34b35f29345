package entity

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/swissweather/swissweather/internal/coordinator"
	"github.com/swissweather/swissweather/internal/weather"
)

// Source is the host-facing side of a coordinator.
type Source[T any] interface {
	Current() coordinator.Snapshot[T]
	Subscribe(fn func(coordinator.Snapshot[T])) (unsubscribe func())
}

// PlatformConfig holds configuration for a Platform.
type PlatformConfig struct {
	// StationCode is empty when no station is configured.
	StationCode string
	PostalCode  string

	// Station may be nil when StationCode is empty.
	Station  Source[weather.Observation]
	Forecast Source[weather.Forecast]

	Logger zerolog.Logger

	// Now overrides the clock used to drop past hourly slots.
	Now func() time.Time
}

// Platform exposes the sensor and weather entities of one configured
// location. It reads coordinator snapshots on demand and keeps no copies.
type Platform struct {
	cfg    PlatformConfig
	logger zerolog.Logger

	mu        sync.Mutex
	listeners map[uint64]func()
	nextID    uint64

	unsubscribe []func()
}

// NewPlatform creates a platform subscribed to its coordinators.
func NewPlatform(cfg PlatformConfig) *Platform {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.StationCode == "" {
		cfg.Station = nil
	}

	p := &Platform{
		cfg:       cfg,
		logger:    cfg.Logger,
		listeners: make(map[uint64]func()),
	}

	if cfg.Station != nil {
		p.unsubscribe = append(p.unsubscribe, cfg.Station.Subscribe(func(s coordinator.Snapshot[weather.Observation]) {
			p.logger.Debug().Bool("available", s.Available).Time("observed_at", s.Data.ObservedAt).Msg("station entities updated")
			p.notify()
		}))
	}
	if cfg.Forecast != nil {
		p.unsubscribe = append(p.unsubscribe, cfg.Forecast.Subscribe(func(s coordinator.Snapshot[weather.Forecast]) {
			p.logger.Debug().Bool("available", s.Available).Int("daily", len(s.Data.Daily)).Msg("forecast entities updated")
			p.notify()
		}))
	}
	return p
}

// StationCode returns the configured station, empty if none.
func (p *Platform) StationCode() string {
	return p.cfg.StationCode
}

// PostalCode returns the configured forecast location.
func (p *Platform) PostalCode() string {
	return p.cfg.PostalCode
}

// Sensors returns the state of every station sensor in description order.
// It is empty when no station is configured.
func (p *Platform) Sensors() []SensorState {
	if p.cfg.Station == nil {
		return []SensorState{}
	}

	snap := p.cfg.Station.Current()
	states := make([]SensorState, 0, len(SensorDescriptions))
	for _, d := range SensorDescriptions {
		states = append(states, sensorState(p.cfg.StationCode, d, snap.Data, snap.HasData, snap.Available))
	}
	return states
}

// Weather returns the weather entity of the given kind.
func (p *Platform) Weather(kind Kind) WeatherState {
	var station *coordinator.Snapshot[weather.Observation]
	if p.cfg.Station != nil {
		snap := p.cfg.Station.Current()
		station = &snap
	}

	var forecast coordinator.Snapshot[weather.Forecast]
	if p.cfg.Forecast != nil {
		forecast = p.cfg.Forecast.Current()
	}

	return weatherState(p.cfg.PostalCode, kind, station, forecast, p.cfg.Now())
}

// OnChange registers fn to run after either coordinator publishes.
func (p *Platform) OnChange(fn func()) (remove func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.listeners[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Close detaches the platform from its coordinators.
func (p *Platform) Close() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
}

func (p *Platform) notify() {
	p.mu.Lock()
	listeners := make([]func(), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
