package base

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ajitpratap0/idconnect/pkg/config"
	"github.com/ajitpratap0/idconnect/pkg/errors"
)

// RetryPolicy defines retry behavior
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
	// OnRetry, when set, is called before each wait with the failed attempt
	// number (starting at 1) and its error.
	OnRetry func(attempt int, err error)
}

// NewRetryPolicy creates a new retry policy with exponential backoff
func NewRetryPolicy(maxAttempts int, initialDelay time.Duration) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryPolicy{
		MaxAttempts:     maxAttempts,
		InitialDelay:    initialDelay,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}
}

// RetryPolicyFromConfig builds the policy for connector instance creation.
func RetryPolicyFromConfig(cfg config.ReliabilityConfig) *RetryPolicy {
	return NewRetryPolicy(cfg.RetryAttempts, cfg.RetryDelay)
}

// Execute runs fn, retrying every error.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	return rp.ExecuteWithCondition(ctx, fn, func(error) bool { return true })
}

// ExecuteWithCondition runs fn, retrying only errors shouldRetry accepts.
// A non-retryable error is returned as is.
func (rp *RetryPolicy) ExecuteWithCondition(ctx context.Context, fn func() error, shouldRetry func(error) bool) error {
	var lastErr error

	for attempt := 0; attempt < rp.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return err
		}
		if attempt == rp.MaxAttempts-1 {
			break
		}
		if rp.OnRetry != nil {
			rp.OnRetry(attempt+1, err)
		}

		timer := time.NewTimer(rp.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, fmt.Sprintf("retry cancelled after %d attempts: %v", attempt+1, lastErr))
		case <-timer.C:
		}
	}

	if rp.MaxAttempts <= 1 {
		return lastErr
	}
	return fmt.Errorf("all %d attempts failed: %w", rp.MaxAttempts, lastErr)
}

// calculateDelay calculates the delay for a given attempt
func (rp *RetryPolicy) calculateDelay(attempt int) time.Duration {
	delay := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))

	if rp.MaxDelay > 0 && delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}

	// jitter
	if rp.RandomizeFactor > 0 {
		delta := delay * rp.RandomizeFactor
		minDelay := delay - delta
		maxDelay := delay + delta
		delay = minDelay + (rand.Float64() * (maxDelay - minDelay)) //nolint:gosec // jitter does not need crypto randomness
	}

	return time.Duration(delay)
}

// GetDelay returns the delay for a specific attempt (for testing/preview)
func (rp *RetryPolicy) GetDelay(attempt int) time.Duration {
	return rp.calculateDelay(attempt)
}

// NoRetryPolicy returns a policy that doesn't retry
func NoRetryPolicy() *RetryPolicy {
	return &RetryPolicy{MaxAttempts: 1}
}
