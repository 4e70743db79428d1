// Package scheduler owns the timing of scan-and-notify passes: a cron-style
// recurring trigger, a manual trigger sharing the same single-flight guard,
// run statistics, and a health signal for external monitoring.
//
// Only one pass runs at a time. A tick that fires while a pass is still in
// flight is dropped and logged, never queued.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/table-talk25/tabletalk-notify/internal/pipeline"
)

var (
	// ErrInvalidCadence rejects a malformed cron expression before any
	// trigger is registered.
	ErrInvalidCadence = errors.New("invalid cadence expression")
	// ErrAlreadyRunning reports a manual trigger rejected by single-flight.
	ErrAlreadyRunning = errors.New("a pass is already running")
)

// Health is the scheduler liveness signal.
type Health string

const (
	HealthDisabled   Health = "DISABLED"
	HealthNotStarted Health = "NOT_STARTED"
	HealthRunning    Health = "RUNNING"
	HealthStale      Health = "STALE"
	HealthHealthy    Health = "HEALTHY"
)

// stalenessCeiling caps the staleness threshold regardless of cadence.
const stalenessCeiling = 48 * time.Hour

// Runner executes one pipeline pass.
type Runner interface {
	Run(ctx context.Context, lookback time.Duration) (pipeline.Outcome, error)
}

// Stats is a snapshot of accumulated run statistics. Counters grow for the
// life of the process unless an operator resets them.
type Stats struct {
	IsRunning              bool              `json:"isRunning"`
	Cadence                string            `json:"cadence,omitempty"`
	LastRunAt              *time.Time        `json:"lastRunAt,omitempty"`
	LastSuccessAt          *time.Time        `json:"lastSuccessAt,omitempty"`
	NextRunAt              *time.Time        `json:"nextRunAt,omitempty"`
	TotalRuns              int64             `json:"totalRuns"`
	SuccessfulRuns         int64             `json:"successfulRuns"`
	FailedRuns             int64             `json:"failedRuns"`
	DroppedTicks           int64             `json:"droppedTicks"`
	TotalNotificationsSent int64             `json:"totalNotificationsSent"`
	LastRunDurationMs      int64             `json:"lastRunDurationMs"`
	LastOutcome            *pipeline.Outcome `json:"lastOutcome,omitempty"`
}

// Job drives the pipeline on a recurring cadence.
type Job struct {
	runner   Runner
	lookback time.Duration
	enabled  bool
	logger   *slog.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	entryID  cron.EntryID
	cadence  string
	interval time.Duration // derived from the schedule, for staleness
	started  bool
	running  bool
	stats    Stats
}

// New builds a Job. lookback is the window scheduled passes scan; enabled
// false produces a permanently DISABLED job (manual triggers still work).
func New(runner Runner, lookback time.Duration, enabled bool, logger *slog.Logger) *Job {
	return &Job{
		runner:   runner,
		lookback: lookback,
		enabled:  enabled,
		logger:   logger,
	}
}

// Start validates the cadence and registers the recurring trigger. The job
// keeps its previous state when the expression is malformed.
func (j *Job) Start(cadence string) error {
	schedule, err := cron.ParseStandard(cadence)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCadence, cadence, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		j.stopLocked()
	}

	c := cron.New()
	id, err := c.AddFunc(cadence, j.tick)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCadence, cadence, err)
	}
	c.Start()

	now := time.Now()
	first := schedule.Next(now)
	j.interval = schedule.Next(first).Sub(first)

	j.cron = c
	j.entryID = id
	j.cadence = cadence
	j.started = true
	j.stats.Cadence = cadence
	j.stats.NextRunAt = &first

	j.logger.Info("scheduler started", "cadence", cadence, "next_run", first)
	return nil
}

// Stop cancels the recurring trigger. Idempotent: stopping a stopped job is
// a no-op. A pass already in flight completes.
func (j *Job) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stopLocked()
}

func (j *Job) stopLocked() {
	if j.cron == nil {
		return
	}
	j.cron.Stop()
	j.cron = nil
	j.started = false
	j.cadence = ""
	j.stats.Cadence = ""
	j.stats.NextRunAt = nil
	j.logger.Info("scheduler stopped")
}

// Reconfigure swaps the cadence without losing accumulated statistics.
func (j *Job) Reconfigure(newCadence string) error {
	// Validate before touching the current trigger so a bad expression
	// leaves the job in its previous state.
	if _, err := cron.ParseStandard(newCadence); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCadence, newCadence, err)
	}
	return j.Start(newCadence)
}

// TriggerManual runs one pass outside the schedule, honoring single-flight.
// Returns ErrAlreadyRunning without running when a pass is in flight.
func (j *Job) TriggerManual(ctx context.Context, lookback time.Duration) (pipeline.Outcome, error) {
	if lookback <= 0 {
		lookback = j.lookback
	}
	if !j.tryBegin() {
		return pipeline.Outcome{}, ErrAlreadyRunning
	}
	return j.run(ctx, lookback)
}

// tick is the cron callback. Overlapping ticks are dropped, not queued.
func (j *Job) tick() {
	if !j.tryBegin() {
		j.mu.Lock()
		j.stats.DroppedTicks++
		j.mu.Unlock()
		j.logger.Warn("scheduled tick dropped, pass still running")
		return
	}
	// A pass always runs to completion over its fetched set; there is no
	// mid-pass cancellation, so the tick runs on a background context.
	if _, err := j.run(context.Background(), j.lookback); err != nil {
		j.logger.Error("scheduled pass failed", "error", err)
	}
}

// tryBegin atomically claims the running flag.
func (j *Job) tryBegin() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return false
	}
	j.running = true
	j.stats.IsRunning = true
	return true
}

// run executes one pass and folds the result into the statistics.
func (j *Job) run(ctx context.Context, lookback time.Duration) (pipeline.Outcome, error) {
	start := time.Now()
	outcome, err := j.runner.Run(ctx, lookback)
	elapsed := time.Since(start)

	j.mu.Lock()
	defer j.mu.Unlock()

	j.running = false
	j.stats.IsRunning = false
	j.stats.TotalRuns++
	j.stats.LastRunAt = &start
	j.stats.LastRunDurationMs = elapsed.Milliseconds()

	if err != nil {
		j.stats.FailedRuns++
	} else {
		j.stats.SuccessfulRuns++
		j.stats.LastSuccessAt = &start
		j.stats.TotalNotificationsSent += int64(outcome.NotificationsSent)
		o := outcome
		j.stats.LastOutcome = &o
	}

	if j.cron != nil {
		next := j.cron.Entry(j.entryID).Next
		j.stats.NextRunAt = &next
	}
	return outcome, err
}

// Snapshot returns a copy of the current statistics.
func (j *Job) Snapshot() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

// ResetStats clears accumulated counters. Explicit operator action only.
func (j *Job) ResetStats() {
	j.mu.Lock()
	defer j.mu.Unlock()
	cadence, next := j.stats.Cadence, j.stats.NextRunAt
	j.stats = Stats{IsRunning: j.running, Cadence: cadence, NextRunAt: next}
}

// HealthStatus reports scheduler liveness. STALE means the last successful
// pass is older than twice the cadence interval (capped at 48h); it is a
// monitoring signal, not a correctness guarantee.
func (j *Job) HealthStatus() Health {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch {
	case !j.enabled:
		return HealthDisabled
	case j.running:
		return HealthRunning
	case !j.started:
		return HealthNotStarted
	}

	threshold := stalenessCeiling
	if j.interval > 0 && 2*j.interval < threshold {
		threshold = 2 * j.interval
	}
	if j.stats.LastSuccessAt == nil || time.Since(*j.stats.LastSuccessAt) > threshold {
		// A freshly started job with no run yet is healthy until the first
		// scheduled pass has had a chance to fire.
		if j.stats.TotalRuns == 0 && j.stats.LastSuccessAt == nil {
			return HealthHealthy
		}
		return HealthStale
	}
	return HealthHealthy
}
