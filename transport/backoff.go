package transport

import (
	"context"
	"time"
)

// Backoff is a bounded exponential retry schedule applied to transient
// transport failures: socket dialing and polling-transport sends.
type Backoff struct {
	// MaxAttempts bounds the total number of tries, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration
	// Multiplier grows the delay after each failed attempt.
	Multiplier float64
	// MaxDelay caps the grown delay.
	MaxDelay time.Duration

	// Sleep waits between attempts. Nil selects a context-aware timer;
	// tests inject an instant variant.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff mirrors the retry schedule the transports shipped with:
// three attempts, one second base, doubling, capped at ten seconds.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    10 * time.Second,
	}
}

// Delay returns the wait before attempt n, where the first retry is n=1.
func (b Backoff) Delay(n int) time.Duration {
	d := float64(b.BaseDelay)
	for i := 1; i < n; i++ {
		d *= b.Multiplier
	}
	if max := float64(b.MaxDelay); b.MaxDelay > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}

// Retry runs op up to MaxAttempts times, sleeping the scheduled delay
// between failures. It returns nil on the first success, the context error
// if ctx ends first, and otherwise the last failure.
func (b Backoff) Retry(ctx context.Context, op func() error) error {
	attempts := b.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	sleep := b.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if serr := sleep(ctx, b.Delay(attempt)); serr != nil {
			return serr
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
