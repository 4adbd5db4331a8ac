// Package retry provides retry utilities with exponential backoff for transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrMaxAttemptsExceeded is returned when max retry attempts are exceeded
	ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")
	// ErrContextCancelled is returned when the context is cancelled during retry
	ErrContextCancelled = errors.New("context cancelled during retry")
)

// Config configures retry behavior
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first one
	MaxAttempts int
	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier (default: 2.0)
	Multiplier float64
	// IsRetryable determines if an error should be retried
	IsRetryable func(error) bool
	// OnRetry is called before sleeping ahead of the next attempt
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig returns a default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		IsRetryable:  DefaultIsRetryable,
	}
}

// Retryable is implemented by errors that know whether they are transient,
// such as HTTP status errors.
type Retryable interface {
	Retryable() bool
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do stops retrying immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

var retryablePatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"no such host",
	"temporary failure",
	"network is unreachable",
	"unexpected eof",
	"too many requests",
	"rate limit",
}

// DefaultIsRetryable returns true for network errors, timeouts and errors
// that report themselves as retryable.
func DefaultIsRetryable(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Backoff returns the delay before retry number attempt (1-based).
func (c Config) Backoff(attempt int) time.Duration {
	c = c.withDefaults()
	d := time.Duration(float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1)))
	if d > c.MaxDelay || d <= 0 {
		d = c.MaxDelay
	}
	return d
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	if c.IsRetryable == nil {
		c.IsRetryable = def.IsRetryable
	}
	return c
}

// Do executes fn with retry logic and exponential backoff. Errors that are
// not retryable, or wrapped with Permanent, are returned unwrapped of the
// permanent marker.
func Do(ctx context.Context, config Config, fn func() error) error {
	config = config.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}
		if !config.IsRetryable(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		delay := config.Backoff(attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, config.MaxAttempts, lastErr)
}
