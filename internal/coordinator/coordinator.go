// Package coordinator owns the polling cadence of one upstream client. It
// runs fetch cycles on a fixed interval, keeps the last good record,
// classifies failures into availability and notifies subscribers.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/swissweather/swissweather/internal/weather"
)

const tracerName = "github.com/swissweather/swissweather/internal/coordinator"

// ErrStopped is returned by Refresh once the coordinator has been stopped.
var ErrStopped = errors.New("coordinator stopped")

// State is the position of the coordinator in its fetch cycle.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateUpdated     State = "updated"
	StateFetchFailed State = "fetch_failed"
)

// Freshness is the ordering of a fetched record relative to the stored one.
type Freshness int

const (
	// Newer replaces the stored record and notifies subscribers.
	Newer Freshness = iota
	// Same carries no new data.
	Same
	// Older is stale and discarded.
	Older
)

// Trigger records what started a fetch cycle.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// Snapshot is the published polling state. Data is a private copy owned by
// the receiver.
type Snapshot[T any] struct {
	Name    string
	Data    T
	HasData bool
	State   State

	// Available is false once ConsecutiveFailures reaches the threshold.
	Available           bool
	ConsecutiveFailures int
	LastFailure         *weather.FetchError

	LastAttemptAt time.Time
	LastSuccessAt time.Time
	// LastUpdatedAt is when Data last changed.
	LastUpdatedAt time.Time
}

// Status is the polling state of a Snapshot without its data.
type Status struct {
	Name                string
	HasData             bool
	State               State
	Available           bool
	ConsecutiveFailures int
	LastFailure         *weather.FetchError
	LastAttemptAt       time.Time
	LastSuccessAt       time.Time
	LastUpdatedAt       time.Time

	// Interval is the polling interval. Unset on Snapshot.Status.
	Interval time.Duration
}

// Status drops the data of s.
func (s Snapshot[T]) Status() Status {
	return Status{
		Name:                s.Name,
		HasData:             s.HasData,
		State:               s.State,
		Available:           s.Available,
		ConsecutiveFailures: s.ConsecutiveFailures,
		LastFailure:         copyFailure(s.LastFailure),
		LastAttemptAt:       s.LastAttemptAt,
		LastSuccessAt:       s.LastSuccessAt,
		LastUpdatedAt:       s.LastUpdatedAt,
	}
}

// Config holds configuration for a Coordinator.
type Config[T any] struct {
	// Name identifies the coordinator in logs, metrics and the API.
	Name string

	// Fetch runs one upstream request. It must honor ctx cancellation.
	Fetch func(ctx context.Context) weather.Result[T]

	// Compare orders a fetched record against the stored one.
	// If nil, every success is Newer.
	Compare func(prev, next T) Freshness

	// Clone deep-copies a record. If nil, records are copied by value.
	Clone func(T) T

	// Interval is the fixed polling interval (default: 10m).
	Interval time.Duration

	// FetchTimeout bounds one fetch cycle (default: 30s).
	FetchTimeout time.Duration

	// FailureThreshold is the number of consecutive failures after which
	// the coordinator reports itself unavailable (default: 3).
	FailureThreshold int

	// Metrics records cycle outcomes (optional).
	Metrics *Metrics

	Logger zerolog.Logger

	// Now overrides the clock (optional, for tests).
	Now func() time.Time
}

// Coordinator polls one upstream source and publishes snapshots of the last
// good record. Fetch cycles never overlap.
type Coordinator[T any] struct {
	cfg    Config[T]
	logger zerolog.Logger
	tracer trace.Tracer

	scheduler *gocron.Scheduler

	// sem holds a token while a cycle runs.
	sem chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	snap        Snapshot[T]
	stopped     bool
	started     bool
	subscribers map[uint64]func(Snapshot[T])
	nextSubID   uint64

	stopOnce sync.Once
}

// New creates a coordinator. Polling starts with Start.
func New[T any](cfg Config[T]) *Coordinator[T] {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Compare == nil {
		cfg.Compare = func(_, _ T) Freshness { return Newer }
	}
	if cfg.Clone == nil {
		cfg.Clone = func(v T) T { return v }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator[T]{
		cfg:       cfg,
		logger:    cfg.Logger.With().Str("coordinator", cfg.Name).Logger(),
		tracer:    otel.Tracer(tracerName),
		scheduler: gocron.NewScheduler(time.UTC),
		sem:       make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		snap: Snapshot[T]{
			Name:      cfg.Name,
			State:     StateIdle,
			Available: true,
		},
		subscribers: make(map[uint64]func(Snapshot[T])),
	}
}

// Name returns the coordinator name.
func (c *Coordinator[T]) Name() string {
	return c.cfg.Name
}

// Start schedules the polling job. The first cycle runs immediately.
func (c *Coordinator[T]) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	if c.started {
		return nil
	}

	_, err := c.scheduler.Every(c.cfg.Interval).SingletonMode().Do(c.tick)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", c.cfg.Name, err)
	}
	c.scheduler.StartAsync()
	c.started = true

	c.logger.Info().Dur("interval", c.cfg.Interval).Msg("polling started")
	return nil
}

// Stop cancels the timer and any in-flight fetch and waits for the running
// cycle to finish. No subscriber is called after Stop returns.
// Stop must not be called from a subscriber.
func (c *Coordinator[T]) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()

		c.cancel()
		c.scheduler.Stop()
		c.wg.Wait()

		c.mu.Lock()
		clear(c.subscribers)
		c.mu.Unlock()

		c.logger.Info().Msg("polling stopped")
	})
}

// Current returns a snapshot of the polling state.
func (c *Coordinator[T]) Current() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cloneOf(c.snap)
}

// Available reports whether subscribers should treat the data as usable.
func (c *Coordinator[T]) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.Available
}

// Status returns the polling state without copying the data.
func (c *Coordinator[T]) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.snap.Status()
	st.Interval = c.cfg.Interval
	return st
}

// Subscribe registers fn for update notifications and returns a function
// that removes it. fn runs synchronously on the fetch cycle.
func (c *Coordinator[T]) Subscribe(fn func(Snapshot[T])) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// Refresh runs one fetch cycle now. It waits for an in-flight cycle to
// complete first and never runs concurrently with one.
func (c *Coordinator[T]) Refresh(ctx context.Context) error {
	_, err := c.RefreshStatus(ctx)
	return err
}

// RefreshStatus is Refresh returning the status the cycle left behind,
// read before any later cycle can start.
func (c *Coordinator[T]) RefreshStatus(ctx context.Context) (Status, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-c.ctx.Done():
		return Status{}, ErrStopped
	}
	defer func() { <-c.sem }()

	if !c.run(TriggerManual) {
		return Status{}, ErrStopped
	}
	return c.Status(), nil
}

// tick is the scheduled job. A tick that finds a cycle in flight is skipped.
func (c *Coordinator[T]) tick() {
	select {
	case c.sem <- struct{}{}:
	default:
		c.logger.Debug().Msg("fetch in flight, skipping tick")
		c.cfg.Metrics.RecordSkip(c.cfg.Name)
		return
	}
	defer func() { <-c.sem }()

	c.run(TriggerSchedule)
}

// run executes one cycle. The caller holds the semaphore.
func (c *Coordinator[T]) run(trigger Trigger) bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return false
	}
	c.wg.Add(1)
	c.snap.State = StateFetching
	c.mu.Unlock()
	defer c.wg.Done()

	ctx, span := c.tracer.Start(c.ctx, "coordinator.fetch",
		trace.WithAttributes(
			attribute.String("coordinator.name", c.cfg.Name),
			attribute.String("coordinator.trigger", string(trigger)),
		),
	)
	defer span.End()

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	start := time.Now()
	result := c.cfg.Fetch(fetchCtx)
	duration := time.Since(start)
	cancel()

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		span.SetStatus(codes.Error, "stopped")
		return false
	}
	outcome, notify := c.apply(result)
	snap := c.snap
	subscribers := make([]func(Snapshot[T]), 0, len(c.subscribers))
	if notify {
		for _, fn := range c.subscribers {
			subscribers = append(subscribers, fn)
		}
	}
	c.mu.Unlock()

	span.SetAttributes(attribute.String("coordinator.outcome", string(outcome)))
	c.cfg.Metrics.RecordCycle(c.cfg.Name, outcome, result.Err, duration, snap.ConsecutiveFailures)

	event := c.logger.Debug()
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, string(result.Err.Reason))
		event = c.logger.Warn().Err(result.Err).Str("reason", string(result.Err.Reason))
	}
	event.
		Str("trigger", string(trigger)).
		Str("outcome", string(outcome)).
		Int("consecutive_failures", snap.ConsecutiveFailures).
		Bool("available", snap.Available).
		Dur("duration", duration).
		Msg("fetch cycle completed")

	for _, fn := range subscribers {
		fn(c.cloneOf(snap))
	}
	return true
}

// Outcome classifies a completed cycle.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeStale     Outcome = "stale"
	OutcomeFailed    Outcome = "failed"
)

// apply folds a fetch result into the stored state. Called with mu held.
func (c *Coordinator[T]) apply(result weather.Result[T]) (Outcome, bool) {
	now := c.cfg.Now()
	wasAvailable := c.snap.Available
	c.snap.LastAttemptAt = now

	if !result.OK() {
		c.snap.State = StateFetchFailed
		c.snap.ConsecutiveFailures++
		c.snap.LastFailure = copyFailure(result.Err)
		if c.snap.ConsecutiveFailures >= c.cfg.FailureThreshold {
			c.snap.Available = false
		}
		return OutcomeFailed, wasAvailable != c.snap.Available
	}

	c.snap.State = StateUpdated
	c.snap.ConsecutiveFailures = 0
	c.snap.LastFailure = nil
	c.snap.Available = true
	c.snap.LastSuccessAt = now

	freshness := Newer
	if c.snap.HasData {
		freshness = c.cfg.Compare(c.snap.Data, result.Value)
	}

	switch freshness {
	case Newer:
		c.snap.Data = c.cfg.Clone(result.Value)
		c.snap.HasData = true
		c.snap.LastUpdatedAt = now
		return OutcomeUpdated, true
	case Older:
		c.logger.Info().Msg("discarding stale record older than the stored one")
		return OutcomeStale, !wasAvailable
	default:
		return OutcomeUnchanged, !wasAvailable
	}
}

func (c *Coordinator[T]) cloneOf(s Snapshot[T]) Snapshot[T] {
	out := s
	if s.HasData {
		out.Data = c.cfg.Clone(s.Data)
	}
	out.LastFailure = copyFailure(s.LastFailure)
	return out
}

// copyFailure copies the error record. The wrapped cause is shared.
func copyFailure(e *weather.FetchError) *weather.FetchError {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}
