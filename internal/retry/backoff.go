package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff configures exponential reconnect delays.
type Backoff struct {
	BaseDelay  time.Duration // delay before the first retry (default: 500ms)
	MaxDelay   time.Duration // upper bound for any delay (default: 30s)
	Multiplier float64       // growth factor per attempt (default: 2.0)
	Jitter     bool          // +/-10% random jitter to avoid reconnect storms
}

// DefaultBackoff returns the reconnect policy used by the connection manager.
func DefaultBackoff() Backoff {
	return Backoff{
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(b.BaseDelay) * math.Pow(multiplier, float64(attempt))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}

	if b.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(b.BaseDelay)
		}
	}
	return time.Duration(delay)
}

// Wait sleeps for Delay(attempt) or until ctx is done.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
