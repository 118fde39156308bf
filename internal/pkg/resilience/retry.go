// Package resilience implements retry with exponential backoff and
// deduplication of concurrent identical calls.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// RetryConfig configures Retry.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Jitter spreads each wait by +/- this fraction (0.0 to 1.0).
	Jitter float64
	// IsTransient decides whether an error is worth another attempt.
	// DefaultClassifier is used when nil.
	IsTransient func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultRetryConfig returns the defaults used by the API client.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

// StatusError carries an HTTP status code from a failed call.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
	}
	return fmt.Sprintf("http %d %s", e.Code, http.StatusText(e.Code))
}

// Transient reports whether the status is a server-side failure.
func (e *StatusError) Transient() bool {
	return e.Code >= 500
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// DefaultClassifier treats 5xx status errors and network timeouts as
// transient. 4xx, cancellation and permanent errors are terminal. Errors of
// unknown shape are transient.
func DefaultClassifier(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return true
}

// Retry calls fn until it succeeds, returns a terminal error, or the retry
// budget is spent. Waiting honours ctx cancellation.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := RetryValue(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryValue is Retry for functions returning a value.
func RetryValue[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	classify := cfg.IsTransient
	if classify == nil {
		classify = DefaultClassifier
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := Backoff(cfg, attempt)
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, wait, lastErr)
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, errors.Join(ctx.Err(), lastErr)
			case <-timer.C:
			}
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !classify(err) {
			var perm *permanentError
			if errors.As(err, &perm) {
				return zero, perm.err
			}
			return zero, err
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

// Backoff returns the wait before the given attempt (1-based).
func Backoff(cfg RetryConfig, attempt int) time.Duration {
	mult := cfg.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	backoff := float64(cfg.InitialBackoff) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxBackoff > 0 && backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	if cfg.Jitter > 0 {
		backoff += backoff * cfg.Jitter * (rand.Float64()*2 - 1)
	}
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}
