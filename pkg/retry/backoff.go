package retry

import (
	"context"
	"time"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay to apply before the given retry attempt
	NextDelay(attempt int) time.Duration
}

// LinearBackoff implements linear backoff: delay grows by Increment on
// every attempt, starting at BaseDelay.
type LinearBackoff struct {
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// Increment is the amount added for each further attempt
	Increment time.Duration
	// MaxDelay caps the delay; zero means no cap
	MaxDelay time.Duration
}

// DefaultLinearBackoff matches the feature service defaults: 500ms base,
// growing by 500ms per attempt (sleep = base x attempt number).
func DefaultLinearBackoff() *LinearBackoff {
	return &LinearBackoff{
		BaseDelay: 500 * time.Millisecond,
		Increment: 500 * time.Millisecond,
		MaxDelay:  30 * time.Second,
	}
}

// NextDelay calculates the delay before the given attempt
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := lb.BaseDelay + lb.Increment*time.Duration(attempt-1)
	if lb.MaxDelay > 0 && delay > lb.MaxDelay {
		delay = lb.MaxDelay
	}
	return delay
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until the context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
