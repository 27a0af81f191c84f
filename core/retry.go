package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how an operation is retried. Delays grow as
// BaseDelay * Multiplier^n with no jitter.
type RetryPolicy struct {
	MaxAttempts    int           `koanf:"max_attempts" validate:"min=1,max=10"`
	BaseDelay      time.Duration `koanf:"base_delay"`
	Multiplier     float64       `koanf:"multiplier" validate:"gte=1"`
	MaxDelay       time.Duration `koanf:"max_delay"`
	AttemptTimeout time.Duration `koanf:"attempt_timeout"`

	// Retryable reports whether a failed attempt may be retried. Nil
	// retries every error.
	Retryable func(error) bool `koanf:"-"`

	// OnRetry is called before sleeping between attempts.
	OnRetry func(attempt int, err error, wait time.Duration) `koanf:"-"`
}

// DefaultRetryPolicy is three attempts waiting 1s then 2s, each attempt
// capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		Multiplier:     2,
		MaxDelay:       4 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(b, uint64(retries))
}

// Retry runs fn until it succeeds, returns a non-retryable error, the
// attempts are used up, or ctx is done. Each attempt gets its own
// deadline when AttemptTimeout is set; an attempt that hits it counts as
// a failed, retryable attempt.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	op := func() (T, error) {
		attempt++
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, backoff.Permanent(err)
		}

		actx, cancel := attemptContext(ctx, p.AttemptTimeout)
		defer cancel()

		v, err := fn(actx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}

	notify := func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
	}

	v, err := backoff.RetryNotifyWithData(op, backoff.WithContext(p.backOff(), ctx), notify)
	if err != nil {
		return v, fmt.Errorf("after %d attempt(s): %w", attempt, err)
	}
	return v, nil
}

// Do is Retry for operations without a result.
func Do(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	_, err := Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func attemptContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
