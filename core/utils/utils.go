// Package utils provides the retry and polling loops shared by watching sources.
//
// Overview:
//   - Responsibility: Exponential-backoff retry and fixed-interval polling bound to a context
//   - Key Types: RetryConfig
//   - Concurrency Model: Functions block the calling goroutine until done or cancelled
//   - Error Semantics: Cancellation returns ctx.Err(); exhausted retries wrap the last failure
//   - Performance Notes: One timer per wait; no goroutines are started
//
// Usage:
//
//	err := utils.Retry(ctx, utils.DefaultRetryConfig(), func() error { return src.Refresh(ctx) })
//	utils.Poll(ctx, time.Second, func() { _ = src.Reload() })
package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds configuration for retry operations.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts (0 = retry until cancelled)
	BaseDelay   time.Duration // Delay before the second attempt
	MaxDelay    time.Duration // Upper bound for the delay
	Multiplier  float64       // Delay multiplier for exponential backoff
}

// DefaultRetryConfig returns the retry policy used by watching sources.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
	}
}

// Backoff returns the delay to wait after the given zero-based attempt.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	delay := c.BaseDelay
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * mult)
		if c.MaxDelay > 0 && delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	return delay
}

// Retry executes fn until it succeeds, the attempts are exhausted or ctx is done.
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; config.MaxAttempts <= 0 || attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if config.MaxAttempts > 0 && attempt == config.MaxAttempts-1 {
			break
		}
		if err := Sleep(ctx, config.Backoff(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("retry failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poll calls fn every interval until ctx is done. A non-positive interval
// defaults to one second.
func Poll(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
