package translate

import (
	"context"
	"time"

	"glossa/internal/config"
)

// RetryPolicy controls how transient provider failures are retried. The
// zero value is usable; missing fields fall back to defaults.
type RetryPolicy struct {
	// MaxAttempts counts the first try. Values below 1 mean one attempt.
	MaxAttempts int
	// InitialDelay precedes the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps backoff growth.
	MaxDelay time.Duration
	// Multiplier scales the delay after each failed attempt.
	Multiplier float64
	// Retryable classifies errors. Defaults to IsTransient.
	Retryable func(error) bool
	// Sleep waits between attempts. Injectable so tests run without real
	// delays. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy mirrors the shipped configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2,
	}
}

// PolicyFromConfig builds the policy from the translation settings.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	if cfg == nil {
		return DefaultRetryPolicy()
	}
	return RetryPolicy{
		MaxAttempts:  cfg.Translation.MaxAttempts,
		InitialDelay: time.Duration(cfg.Translation.InitialBackoffMS) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Translation.MaxBackoffMS) * time.Millisecond,
		Multiplier:   2,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	defaults := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = defaults.InitialDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = defaults.Multiplier
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	if p.Sleep == nil {
		p.Sleep = sleepWithContext
	}
	return p
}

// Do runs fn until it succeeds, fails permanently, exhausts attempts, or the
// context ends. The context error wins over fn's error so cancellation stays
// classifiable.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p = p.normalized()
	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !p.Retryable(lastErr) || attempt == p.MaxAttempts {
			return lastErr
		}
		if err := p.Sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
