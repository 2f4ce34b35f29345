// Package worker runs manual refreshes of the polling coordinators, either
// on API request or from Pub/Sub job messages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/swissweather/swissweather/internal/coordinator"
)

// TargetAll refreshes every registered target.
const TargetAll = "all"

const defaultRefreshTimeout = time.Minute

// ErrUnknownTarget is returned for a target name that is not registered.
var ErrUnknownTarget = errors.New("unknown refresh target")

// Target is a coordinator that can be refreshed on demand.
type Target interface {
	Name() string
	// RefreshStatus runs one cycle and returns the status it produced.
	RefreshStatus(ctx context.Context) (coordinator.Status, error)
	Status() coordinator.Status
}

// Refresher runs manual refreshes on named targets.
type Refresher struct {
	targets map[string]Target
	order   []string
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time

	metrics *RefreshMetrics
}

// RefresherConfig holds configuration for creating a Refresher.
type RefresherConfig struct {
	Targets []Target

	// Timeout bounds one refresh, including the wait for an in-flight
	// scheduled cycle (default: 1m).
	Timeout time.Duration

	Logger zerolog.Logger
	Now    func() time.Time
}

// RefreshMetrics tracks refresh statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRefreshes    int64
	SuccessfulRefresh int64
	FailedRefreshes   int64
	TargetRefreshes   map[string]int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshResult contains the result of a refresh.
type RefreshResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Targets    []TargetResult
	Successful int
	Failed     int
	Errors     []RefreshError
}

// TargetResult is the state of one target after its refresh.
type TargetResult struct {
	Name   string
	Status coordinator.Status
}

// RefreshError represents an error during refresh.
type RefreshError struct {
	Target string
	Reason string
	Error  string
}

// NewRefresher creates a refresher over targets. Nil targets are ignored.
func NewRefresher(cfg RefresherConfig) *Refresher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRefreshTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	r := &Refresher{
		targets: make(map[string]Target, len(cfg.Targets)),
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		now:     cfg.Now,
		metrics: &RefreshMetrics{TargetRefreshes: make(map[string]int64)},
	}
	for _, t := range cfg.Targets {
		if t == nil {
			continue
		}
		if _, dup := r.targets[t.Name()]; !dup {
			r.order = append(r.order, t.Name())
		}
		r.targets[t.Name()] = t
	}
	return r
}

// Names returns the registered target names in registration order.
func (r *Refresher) Names() []string {
	return append([]string(nil), r.order...)
}

// Statuses returns the current status of every target.
func (r *Refresher) Statuses() []coordinator.Status {
	statuses := make([]coordinator.Status, 0, len(r.order))
	for _, name := range r.order {
		statuses = append(statuses, r.targets[name].Status())
	}
	return statuses
}

// Run refreshes the named target, or every target for TargetAll or "".
// Targets are refreshed concurrently.
func (r *Refresher) Run(ctx context.Context, target string) (*RefreshResult, error) {
	names, err := r.resolve(target)
	if err != nil {
		return nil, err
	}

	startTime := r.now()
	result := &RefreshResult{StartTime: startTime}

	r.logger.Info().
		Strs("targets", names).
		Msg("starting manual refresh")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := make([]targetOutcome, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			results[i] = r.refreshTarget(ctx, t)
		}(i, r.targets[name])
	}
	wg.Wait()

	for _, o := range results {
		result.Targets = append(result.Targets, TargetResult{Name: o.name, Status: o.status})
		if o.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, *o.err)
			continue
		}
		result.Successful++
	}

	result.EndTime = r.now()
	result.Duration = result.EndTime.Sub(startTime)

	r.updateMetrics(result)

	r.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("manual refresh completed")

	return result, nil
}

func (r *Refresher) resolve(target string) ([]string, error) {
	if target == "" || target == TargetAll {
		return r.Names(), nil
	}
	if _, ok := r.targets[target]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	return []string{target}, nil
}

type targetOutcome struct {
	name   string
	status coordinator.Status
	err    *RefreshError
}

func (r *Refresher) refreshTarget(ctx context.Context, t Target) targetOutcome {
	out := targetOutcome{name: t.Name()}

	status, err := t.RefreshStatus(ctx)
	if err != nil {
		status = t.Status()
	}
	out.status = status

	switch {
	case err != nil:
		out.err = &RefreshError{Target: out.name, Reason: "refresh", Error: err.Error()}
	case out.status.State == coordinator.StateFetchFailed && out.status.LastFailure != nil:
		out.err = &RefreshError{
			Target: out.name,
			Reason: string(out.status.LastFailure.Reason),
			Error:  out.status.LastFailure.Error(),
		}
	}

	if out.err != nil {
		r.logger.Warn().
			Str("target", out.name).
			Str("reason", out.err.Reason).
			Str("error", out.err.Error).
			Msg("target refresh failed")
	}
	return out
}

func (r *Refresher) updateMetrics(result *RefreshResult) {
	r.metrics.mu.Lock()
	defer r.metrics.mu.Unlock()

	r.metrics.TotalRefreshes++
	r.metrics.SuccessfulRefresh += int64(result.Successful)
	r.metrics.FailedRefreshes += int64(result.Failed)
	for _, t := range result.Targets {
		r.metrics.TargetRefreshes[t.Name]++
	}
	r.metrics.LastRefreshAt = result.EndTime
	r.metrics.LastRefreshDuration = result.Duration
	r.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (r *Refresher) GetMetrics() RefreshMetrics {
	r.metrics.mu.RLock()
	defer r.metrics.mu.RUnlock()

	perTarget := make(map[string]int64, len(r.metrics.TargetRefreshes))
	for k, v := range r.metrics.TargetRefreshes {
		perTarget[k] = v
	}

	return RefreshMetrics{
		TotalRefreshes:      r.metrics.TotalRefreshes,
		SuccessfulRefresh:   r.metrics.SuccessfulRefresh,
		FailedRefreshes:     r.metrics.FailedRefreshes,
		TargetRefreshes:     perTarget,
		LastRefreshAt:       r.metrics.LastRefreshAt,
		LastRefreshDuration: r.metrics.LastRefreshDuration,
		TotalDuration:       r.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (r *Refresher) MetricsSnapshot() map[string]interface{} {
	m := r.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"target_refreshes":      m.TargetRefreshes,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
