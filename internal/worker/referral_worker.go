// Package worker runs background jobs on a schedule.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/reputation-engine/internal/logging"
	"github.com/reputation-engine/internal/service"
)

// Sweeper runs one referral payout pass
type Sweeper interface {
	Run(ctx context.Context) (*service.SweepResult, error)
}

// ReferralWorkerConfig holds configuration for the referral sweep worker
type ReferralWorkerConfig struct {
	Sweeper Sweeper
	// Schedule is a standard cron expression or descriptor such as "@every 1h"
	Schedule string
	// RunTimeout bounds a single sweep (default: 10m)
	RunTimeout time.Duration
	// RunOnStart triggers a sweep immediately after Start
	RunOnStart bool
	Logger     *logging.Logger
}

// WorkerStatus reports the last sweep outcome
type WorkerStatus struct {
	Running    bool                 `json:"running"`
	Schedule   string               `json:"schedule"`
	LastRun    *time.Time           `json:"lastRun,omitempty"`
	LastResult *service.SweepResult `json:"lastResult,omitempty"`
	LastError  string               `json:"lastError,omitempty"`
	Runs       int                  `json:"runs"`
}

// ReferralWorker runs the referral sweep on a cron schedule.
// Overlapping runs are skipped rather than queued.
type ReferralWorker struct {
	sweeper    Sweeper
	schedule   cron.Schedule
	expr       string
	runTimeout time.Duration
	runOnStart bool
	logger     *logging.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	status  WorkerStatus
	runMu   sync.Mutex
	now     func() time.Time
}

// NewReferralWorker validates the config and parses the schedule
func NewReferralWorker(cfg *ReferralWorkerConfig) (*ReferralWorker, error) {
	if cfg.Sweeper == nil {
		return nil, fmt.Errorf("sweeper cannot be nil")
	}
	if cfg.Schedule == "" {
		return nil, fmt.Errorf("schedule cannot be empty")
	}

	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}

	timeout := cfg.RunTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &ReferralWorker{
		sweeper:    cfg.Sweeper,
		schedule:   schedule,
		expr:       cfg.Schedule,
		runTimeout: timeout,
		runOnStart: cfg.RunOnStart,
		logger:     logger.WithField("component", "referral_worker"),
		status:     WorkerStatus{Schedule: cfg.Schedule},
		now:        time.Now,
	}, nil
}

// Start schedules the sweep. Runs use ctx as their parent.
func (w *ReferralWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("referral worker is already running")
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{w.logger}),
		cron.WithChain(cron.Recover(cronLogger{w.logger})),
	)
	c.Schedule(w.schedule, cron.FuncJob(func() { w.runScheduled(ctx) }))
	c.Start()

	w.cron = c
	w.running = true
	w.status.Running = true
	w.logger.WithField("schedule", w.expr).Info("referral worker started")

	if w.runOnStart {
		go w.runScheduled(ctx)
	}
	return nil
}

// Stop stops scheduling and waits for an in-flight sweep to finish or ctx to expire
func (w *ReferralWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("referral worker is not running")
	}
	c := w.cron
	w.running = false
	w.status.Running = false
	w.mu.Unlock()

	done := c.Stop()
	select {
	case <-done.Done():
		w.logger.Info("referral worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.Warn("referral worker stop timed out")
		return ctx.Err()
	}
}

// runScheduled skips the tick when a sweep is still in progress
func (w *ReferralWorker) runScheduled(ctx context.Context) {
	if !w.runMu.TryLock() {
		w.logger.Warn("previous referral sweep still running, skipping tick")
		return
	}
	defer w.runMu.Unlock()

	_, _ = w.run(ctx)
}

// RunOnce runs a sweep immediately, waiting for any in-flight sweep first
func (w *ReferralWorker) RunOnce(ctx context.Context) (*service.SweepResult, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()
	return w.run(ctx)
}

func (w *ReferralWorker) run(parent context.Context) (*service.SweepResult, error) {
	if err := parent.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(parent, w.runTimeout)
	defer cancel()

	start := w.now()
	result, err := w.sweeper.Run(ctx)

	w.mu.Lock()
	w.status.Runs++
	w.status.LastRun = &start
	if err != nil {
		w.status.LastError = err.Error()
	} else {
		w.status.LastError = ""
		w.status.LastResult = result
	}
	w.mu.Unlock()

	logger := w.logger.WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("referral sweep canceled")
		} else {
			logger.WithError(err).Error("referral sweep failed")
		}
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"referrers":         result.Referrers,
		"updated":           result.UpdatedCount,
		"total_distributed": result.TotalDistributed,
		"failed":            result.Failed,
	}).Info("referral sweep completed")
	return result, nil
}

// Status returns a copy of the worker status
func (w *ReferralWorker) Status() WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.status
	if s.LastResult != nil {
		r := *s.LastResult
		s.LastResult = &r
	}
	return s
}

// cronLogger adapts logging.Logger to cron.Logger
type cronLogger struct {
	l *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.WithFields(kvFields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
