// Package retry decides which failures are transient and paces retries with
// capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

type statusCoder interface {
	StatusCode() int
}

// ShouldRetry reports whether a failed attempt should be retried. attempt is
// the number of attempts already made.
func ShouldRetry(err error, attempt, maxAttempts int) bool {
	if err == nil || attempt >= maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		status := sc.StatusCode()
		switch {
		case status == 0:
			return true
		case status >= 500:
			return true
		case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
			return true
		default:
			return false
		}
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Policy configures attempts and backoff.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Multiplier  float64
	Cap         time.Duration
	// Jitter spreads each delay uniformly by ±Jitter (0..1) of its value.
	Jitter float64
}

// Critical is used for booking and payment writes.
var Critical = Policy{
	MaxAttempts: 5,
	Base:        500 * time.Millisecond,
	Multiplier:  2,
	Cap:         5 * time.Second,
	Jitter:      0.2,
}

// Default is used for reads.
var Default = Policy{
	MaxAttempts: 3,
	Base:        500 * time.Millisecond,
	Multiplier:  2,
	Cap:         5 * time.Second,
	Jitter:      0.2,
}

// None performs a single attempt.
var None = Policy{MaxAttempts: 1}

// Delay returns the wait before retry number attempt (zero based), without jitter.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}
	d := float64(p.Base) * math.Pow(mult, float64(attempt))
	if p.Cap > 0 && d > float64(p.Cap) {
		return p.Cap
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (p Policy) jittered(attempt int) time.Duration {
	d := p.Delay(attempt)
	if p.Jitter <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * p.Jitter
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}

// Do runs fn until it succeeds, ShouldRetry says stop, or ctx is done. The
// last error is returned unchanged, joined with ctx.Err() when ctx ended the
// wait.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	max := p.MaxAttempts
	if max <= 0 {
		max = 1
	}
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !ShouldRetry(err, attempt, max) {
			return err
		}
		timer := time.NewTimer(p.jittered(attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
