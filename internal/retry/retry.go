// Package retry re-runs history store operations that fail for transient reasons.
// Classification requests are never retried; only bookkeeping writes and reads go through here.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/loykin/intentrun/internal/common"
)

// Config holds configuration for store operation retries
type Config struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialDelay    time.Duration // Initial delay before first retry
	MaxDelay        time.Duration // Maximum delay between retries
	BackoffFactor   float64       // Multiplier for exponential backoff
	RetryableErrors []string      // Error substrings that trigger retries
}

// DefaultRetryConfig returns the retry policy used by the history store
func DefaultRetryConfig() *Config {
	return &Config{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: []string{
			"database is locked",
			"sqlite_busy",
			"connection refused",
			"connection reset",
			"broken pipe",
			"deadlock",
			"could not serialize access",
		},
	}
}

// IsRetryable checks if an error should trigger a retry
func (rc *Config) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range rc.RetryableErrors {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Delay returns the backoff before retry number attempt (0-based), capped at MaxDelay.
func (rc *Config) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return rc.InitialDelay
	}
	d := time.Duration(float64(rc.InitialDelay) * math.Pow(rc.BackoffFactor, float64(attempt)))
	if d > rc.MaxDelay {
		d = rc.MaxDelay
	}
	return d
}

// Operation is a store call that may be retried
type Operation func() error

// WithRetry runs op until it succeeds, fails with a non-retryable error, or retries run out.
func WithRetry(ctx context.Context, config *Config, op Operation) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	logger := common.GetLogger().WithComponent("store-retry")

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			if attempt > 0 {
				logger.Info("store operation succeeded after retry", "attempt", attempt+1)
			}
			return nil
		}
		lastErr = err

		if attempt == config.MaxRetries {
			break
		}
		if !config.IsRetryable(err) {
			return err
		}

		delay := config.Delay(attempt)
		logger.Warn("store operation failed, retrying",
			"error", err,
			"attempt", attempt+1,
			"max_attempts", config.MaxRetries+1,
			"retry_delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("operation cancelled during retry: %w", ctx.Err())
		case <-timer.C:
		}
	}

	logger.Error("store operation failed after all retry attempts", "error", lastErr, "attempts", config.MaxRetries+1)
	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}
