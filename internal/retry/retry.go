// Package retry provides exponential backoff with jitter for network calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Config configures retry behavior with exponential backoff.
type Config struct {
	// MaxRetries is the number of retries after the first attempt (0 = single attempt)
	MaxRetries int

	// InitialDelay is the first backoff delay
	InitialDelay time.Duration

	// MaxDelay caps any single delay
	MaxDelay time.Duration

	// Multiplier grows the delay per attempt
	Multiplier float64

	// Jitter is the fractional spread applied to each delay, e.g. 0.125 for +/-12.5%
	Jitter float64
}

// DefaultConfig backs off from 350ms doubling up to 6s with +/-12.5% jitter
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 350 * time.Millisecond,
		MaxDelay:     6 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.125,
	}
}

// RetryAfterError is implemented by errors that carry a server-provided wait hint
type RetryAfterError interface {
	error
	RetryAfterDuration() time.Duration
}

// Permanent wraps an error that must not be retried
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Backoff returns the delay before the given retry attempt (attempt 0 is the first retry)
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(c.InitialDelay) * math.Pow(mult, float64(attempt))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter > 0 {
		d += d * c.Jitter * (2*rand.Float64() - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Do executes fn, retrying with backoff until it succeeds, returns a permanent
// error, runs out of attempts or ctx is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoResult is Do for functions that also return a value
func DoResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := cfg.Backoff(attempt - 1)

			var rae RetryAfterError
			if errors.As(lastErr, &rae) && rae.RetryAfterDuration() > delay {
				delay = rae.RetryAfterDuration()
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}
		result = res
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return result, perm.err
		}
	}

	if cfg.MaxRetries == 0 {
		return result, lastErr
	}
	return result, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}
