// Package mqtt publishes entity states to an MQTT broker as retained
// messages so home-automation consumers get the last state on subscribe.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/swissweather/swissweather/internal/entity"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"

	defaultPublishTimeout = 5 * time.Second
	connectPoll           = 200 * time.Millisecond
	quiesceMillis         = 250
)

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("mqtt publisher stopped")

// Client is the subset of the paho client used by the publisher.
type Client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// States is the entity view published to the broker.
type States interface {
	Sensors() []entity.SensorState
	Weather(kind entity.Kind) entity.WeatherState
	OnChange(fn func()) (remove func())
}

// Config holds configuration for a Publisher.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	// PublishTimeout bounds each publish acknowledgement.
	PublishTimeout time.Duration
	Logger         zerolog.Logger
}

// Publisher mirrors the entity platform onto MQTT topics.
type Publisher struct {
	client Client
	cfg    Config
	states States
	logger zerolog.Logger

	changed chan struct{}
	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup

	mu     sync.Mutex
	remove func()
}

// NewPublisher creates a publisher backed by a paho client for cfg.Broker.
func NewPublisher(cfg Config, states States) *Publisher {
	p := newPublisher(nil, cfg, states)

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetWill(p.StatusTopic(), PayloadOffline, 1, true)

	opts.SetOnConnectHandler(func(_ paho.Client) {
		p.logger.Info().Str("broker", cfg.Broker).Msg("mqtt connected")
		// Republish after reconnects.
		p.signal()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	p.client = paho.NewClient(opts)
	return p
}

// NewPublisherWithClient creates a publisher using an existing client.
func NewPublisherWithClient(client Client, cfg Config, states States) *Publisher {
	return newPublisher(client, cfg, states)
}

func newPublisher(client Client, cfg Config, states States) *Publisher {
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	return &Publisher{
		client:  client,
		cfg:     cfg,
		states:  states,
		logger:  cfg.Logger.With().Str("component", "mqtt").Logger(),
		changed: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// StatusTopic is the retained bridge liveness topic.
func (p *Publisher) StatusTopic() string {
	return p.cfg.TopicPrefix + "/status"
}

// StateTopic returns the state topic of an entity.
func (p *Publisher) StateTopic(uniqueID string) string {
	return fmt.Sprintf("%s/%s/state", p.cfg.TopicPrefix, uniqueID)
}

// AvailabilityTopic returns the availability topic of an entity.
func (p *Publisher) AvailabilityTopic(uniqueID string) string {
	return fmt.Sprintf("%s/%s/availability", p.cfg.TopicPrefix, uniqueID)
}

// Start connects to the broker, publishes the current states and keeps
// publishing after every platform change until Stop.
func (p *Publisher) Start(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return ErrStopped
	default:
	}

	if err := p.connect(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	select {
	case <-p.stopCh:
		p.mu.Unlock()
		return ErrStopped
	default:
	}
	p.remove = p.states.OnChange(p.signal)
	p.wg.Add(1)
	p.mu.Unlock()

	go p.loop()

	p.signal()
	return nil
}

func (p *Publisher) connect(ctx context.Context) error {
	if p.client.IsConnected() {
		return nil
	}

	token := p.client.Connect()
	for {
		if token.WaitTimeout(connectPoll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return ErrStopped
		default:
		}
	}
}

func (p *Publisher) signal() {
	select {
	case p.changed <- struct{}{}:
	default:
	}
}

func (p *Publisher) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.changed:
			if err := p.PublishAll(); err != nil {
				p.logger.Error().Err(err).Msg("failed to publish entity states")
			}
		}
	}
}

// PublishAll publishes the state and availability of every entity.
func (p *Publisher) PublishAll() error {
	var errs []error

	if err := p.publish(p.StatusTopic(), PayloadOnline); err != nil {
		errs = append(errs, err)
	}

	sensors := p.states.Sensors()
	for _, s := range sensors {
		if err := p.publishEntity(s.UniqueID, s.Available, newSensorPayload(s)); err != nil {
			errs = append(errs, err)
		}
	}
	for _, kind := range []entity.Kind{entity.KindHourly, entity.KindDaily} {
		w := p.states.Weather(kind)
		if err := p.publishEntity(w.UniqueID, w.Available, newWeatherPayload(w)); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	p.logger.Debug().Int("sensors", len(sensors)).Msg("published entity states")
	return nil
}

func (p *Publisher) publishEntity(uniqueID string, available bool, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", uniqueID, err)
	}
	if err := p.publish(p.StateTopic(uniqueID), data); err != nil {
		return err
	}

	availability := PayloadOffline
	if available {
		availability = PayloadOnline
	}
	return p.publish(p.AvailabilityTopic(uniqueID), availability)
}

func (p *Publisher) publish(topic string, payload any) error {
	token := p.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(p.cfg.PublishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Stop detaches from the platform, marks the bridge offline and disconnects.
// It is safe to call more than once.
func (p *Publisher) Stop() {
	p.stopped.Do(func() {
		close(p.stopCh)

		p.mu.Lock()
		remove := p.remove
		p.remove = nil
		p.mu.Unlock()
		if remove != nil {
			remove()
		}

		p.wg.Wait()

		if p.client.IsConnected() {
			if err := p.publish(p.StatusTopic(), PayloadOffline); err != nil {
				p.logger.Warn().Err(err).Msg("failed to publish offline status")
			}
		}
		p.client.Disconnect(quiesceMillis)
		p.logger.Info().Msg("mqtt disconnected")
	})
}
