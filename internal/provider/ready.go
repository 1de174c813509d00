package provider

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"
)

// ErrNotReady is returned by Ping while a backend is starting up.
var ErrNotReady = errors.New("backend not ready")

const jitterPercent = 30 // ±30% jitter

// ReadyPolicy controls WaitReady.
type ReadyPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultReadyPolicy suits a local model server loading weights.
var DefaultReadyPolicy = ReadyPolicy{
	Attempts:  6,
	BaseDelay: 500 * time.Millisecond,
	MaxDelay:  8 * time.Second,
}

// IsRetryable reports whether a Ping error is worth retrying: not-ready,
// rate limit, server errors, and transient network failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNotReady) {
		return true
	}
	msg := err.Error()

	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "overloaded") {
		return true
	}
	for _, code := range []string{"500", "502", "503", "504", "529"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "temporary failure")
}

// delay returns the backoff for attempt n (0-indexed) with jitter.
func (p ReadyPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		return 0
	}
	for range attempt {
		d *= 2
		if p.MaxDelay > 0 && d > p.MaxDelay {
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	span := int(d) * jitterPercent * 2 / 100
	if span <= 0 {
		return d
	}
	return d + time.Duration(rand.IntN(span)) - time.Duration(int(d)*jitterPercent/100)
}

// WaitReady pings p until it succeeds, a non-retryable error occurs, the
// attempts run out, or ctx ends. onRetry, when set, is called before each sleep.
func WaitReady(ctx context.Context, p Pinger, policy ReadyPolicy, onRetry func(attempt int, wait time.Duration, err error)) error {
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := range attempts {
		if err = p.Ping(ctx); err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == attempts-1 {
			return err
		}
		wait := policy.delay(attempt)
		if onRetry != nil {
			onRetry(attempt+1, wait, err)
		}
		if serr := sleepWithContext(ctx, wait); serr != nil {
			return serr
		}
	}
	return err
}

// sleepWithContext sleeps for d, but returns early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
