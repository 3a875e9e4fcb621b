// Package countdown tracks the payment window of unpaid bookings.
package countdown

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Remaining returns the whole seconds left until bookedAt+timeout, never
// negative.
func Remaining(bookedAt time.Time, timeout time.Duration, now time.Time) int {
	left := bookedAt.Add(timeout).Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Floor(left.Seconds()))
}

// Format renders seconds as "m:ss".
func Format(seconds int) string {
	if seconds <= 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// Ticker delivers ticks until stopped.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) Chan() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()                  { s.t.Stop() }

func newStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

// WithTicker replaces the one second ticker used by Start.
func WithTicker(factory func(time.Duration) Ticker) Option {
	return func(t *Timer) { t.newTicker = factory }
}

// OnExpire registers fn to run once when a running timer reaches zero.
func OnExpire(fn func()) Option {
	return func(t *Timer) { t.onExpire = fn }
}

// Timer counts down to a deadline. Remaining time is always derived from
// the deadline and the clock, so missed ticks never cause drift.
type Timer struct {
	mu        sync.Mutex
	deadline  time.Time
	remaining int
	running   bool
	fired     bool
	ticker    Ticker
	done      chan struct{}

	now       func() time.Time
	newTicker func(time.Duration) Ticker
	onExpire  func()
}

// New builds a stopped Timer counting down to deadline.
func New(deadline time.Time, opts ...Option) *Timer {
	t := &Timer{deadline: deadline, now: time.Now, newTicker: newStdTicker}
	for _, opt := range opts {
		opt(t)
	}
	t.remaining = t.secondsLeft()
	return t
}

// ForBooking builds a Timer for the payment window of a booking.
func ForBooking(bookedAt time.Time, timeout time.Duration, opts ...Option) *Timer {
	return New(bookedAt.Add(timeout), opts...)
}

func (t *Timer) secondsLeft() int {
	return Remaining(t.deadline, 0, t.now())
}

// Start begins ticking once per second. It does nothing when the timer is
// already running or has expired.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remaining = t.secondsLeft()
	if t.running || t.remaining <= 0 {
		return
	}
	t.running = true
	t.ticker = t.newTicker(time.Second)
	t.done = make(chan struct{})
	go t.loop(t.ticker, t.done)
}

func (t *Timer) loop(tk Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-tk.Chan():
			if t.Tick() {
				return
			}
		}
	}
}

// Tick recomputes the remaining time. It reports whether this call expired
// the timer, in which case the expiry callback has run.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return false
	}
	t.remaining = t.secondsLeft()
	if t.remaining > 0 || t.fired {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	t.stopLocked()
	fn := t.onExpire
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// Stop halts ticking. The remaining time is kept.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if t.ticker != nil {
		t.ticker.Stop()
		t.ticker = nil
	}
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
	t.running = false
}

// Reset stops the timer and points it at a new deadline. The expiry
// callback may fire again for the new deadline.
func (t *Timer) Reset(deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.deadline = deadline
	t.fired = false
	t.remaining = t.secondsLeft()
}

// Deadline returns the moment the timer expires.
func (t *Timer) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline
}

// Remaining returns the seconds left as of the last Start, Tick or Reset.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// IsExpired reports whether no time is left.
func (t *Timer) IsExpired() bool {
	return t.Remaining() <= 0
}

// IsRunning reports whether the timer is ticking.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Formatted renders the remaining time as "m:ss".
func (t *Timer) Formatted() string {
	return Format(t.Remaining())
}
