// Package retry wraps a single external call in exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes how often and how patiently a call is retried.
// MaxRetries counts retries after the first attempt.
type Policy struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
	// Retryable decides whether an error is worth another attempt. A nil
	// predicate retries every error.
	Retryable func(error) bool
}

// DefaultPolicy returns 3 retries starting at 1s, doubling up to 60s, jittered.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2,
		Jitter:          true,
	}
}

// ExhaustedError reports that every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// NotifyFunc observes a failed attempt before the policy sleeps.
type NotifyFunc func(attempt int, err error, wait time.Duration)

// Delay returns the un-jittered wait before retry number attempt (0-based):
// min(BaseDelay * ExponentialBase^attempt, MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.multiplier(), float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do runs op until it succeeds, fails with a non-retryable error, the
// attempt budget runs out, or ctx ends. Non-retryable errors are returned
// unchanged; an exhausted budget yields *ExhaustedError.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), notify NotifyFunc) (T, error) {
	attempts := 0
	var last error
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		last = err
		if !p.retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(max(p.MaxRetries, 0)+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if notify != nil {
				notify(attempts, err, wait)
			}
		}),
	)
	if err == nil {
		return res, nil
	}
	if last == nil || !p.retryable(last) {
		return res, last
	}
	if ctx.Err() != nil {
		return res, err
	}
	return res, &ExhaustedError{Attempts: attempts, Err: last}
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p Policy) multiplier() float64 {
	if p.ExponentialBase <= 0 {
		return 2
	}
	return p.ExponentialBase
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval: p.BaseDelay,
		Multiplier:      p.multiplier(),
		MaxInterval:     p.MaxDelay,
	}
	if b.MaxInterval <= 0 {
		b.MaxInterval = backoff.DefaultMaxInterval
	}
	if b.InitialInterval > b.MaxInterval {
		b.InitialInterval = b.MaxInterval
	}
	if p.Jitter {
		b.RandomizationFactor = 0.5
	}
	return b
}
