package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types understood by the Processor.
const (
	JobRefresh     = "refresh"
	JobHealthCheck = "health_check"
)

// ErrMalformedMessage is returned for a message body that is not a job.
var ErrMalformedMessage = errors.New("malformed job message")

// JobMessage is a refresh job message.
type JobMessage struct {
	JobType string `json:"job_type"`
	Target  string `json:"target,omitempty"`
}

// Processor decodes and runs job messages.
type Processor struct {
	refresher *Refresher
	logger    zerolog.Logger
}

// NewProcessor creates a processor running jobs on refresher.
func NewProcessor(refresher *Refresher, logger zerolog.Logger) *Processor {
	return &Processor{refresher: refresher, logger: logger}
}

// Process runs the job in data. A nil error means the message should be
// acked. Unknown job types are acked to prevent redelivery.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch strings.ToLower(msg.JobType) {
	case JobRefresh:
		return p.handleRefresh(ctx, msg)
	case JobHealthCheck:
		return p.handleHealthCheck()
	default:
		p.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return nil
	}
}

func (p *Processor) handleRefresh(ctx context.Context, msg JobMessage) error {
	result, err := p.refresher.Run(ctx, msg.Target)
	if errors.Is(err, ErrUnknownTarget) {
		// Redelivery cannot fix an unknown target.
		p.logger.Warn().Str("target", msg.Target).Msg("ignoring refresh for unknown target")
		return nil
	}
	if err != nil {
		return err
	}

	if result.Failed > result.Successful {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, len(result.Targets))
	}
	return nil
}

func (p *Processor) handleHealthCheck() error {
	var unavailable []string
	for _, s := range p.refresher.Statuses() {
		if !s.Available {
			unavailable = append(unavailable, s.Name)
		}
	}
	if len(unavailable) > 0 {
		return fmt.Errorf("health check failed: unavailable %s", strings.Join(unavailable, ", "))
	}

	p.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler feeds Pub/Sub messages to a Processor.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Processor        *Processor
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 5 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, h.handleMessage)
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	if err := h.processor.Process(ctx, msg.Data); err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("job completed")
	msg.Ack()
}
