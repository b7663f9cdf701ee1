// Package retry wraps cenkalti/backoff for startup connection attempts.
// Provider calls never go through here: a failed fetch degrades instead of retrying.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/reputation-engine/internal/logging"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns a default retry configuration.
// Pattern: 1s, 2s, 4s, 8s, capped at 30s.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  6,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryResult contains information about the retry operation
type RetryResult struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     error         `json:"lastError,omitempty"`
}

// RetryFunc is a function that can be retried
type RetryFunc func(ctx context.Context, attempt int) error

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// WithExponentialBackoff executes fn until it succeeds, returns a permanent
// error, the attempts run out, or ctx is done.
func WithExponentialBackoff(ctx context.Context, config *RetryConfig, fn RetryFunc) *RetryResult {
	logger := logging.FromContext(ctx)
	start := time.Now()
	result := &RetryResult{}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.InitialDelay
	b.MaxInterval = config.MaxDelay
	b.Multiplier = config.Multiplier
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = b
	if config.MaxAttempts > 0 {
		policy = backoff.WithMaxRetries(b, uint64(config.MaxAttempts-1))
	}

	operation := func() error {
		result.Attempts++
		return fn(ctx, result.Attempts)
	}
	notify := func(err error, delay time.Duration) {
		logger.WithFields(map[string]interface{}{
			"attempt":     result.Attempts,
			"maxAttempts": config.MaxAttempts,
			"delay":       delay.String(),
		}).WithError(err).Warn("Operation failed, retrying with exponential backoff")
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
	result.TotalDuration = time.Since(start)
	if err != nil {
		result.LastError = err
		logger.WithField("attempts", result.Attempts).WithError(err).Error("Operation failed after retries")
		return result
	}

	result.Success = true
	if result.Attempts > 1 {
		logger.WithFields(map[string]interface{}{
			"attempts":      result.Attempts,
			"totalDuration": result.TotalDuration.String(),
		}).Info("Operation succeeded after retry")
	}
	return result
}
