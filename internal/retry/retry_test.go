package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		attempt int
		max     int
		want    bool
	}{
		{"500 below ceiling", statusErr(500), 1, 5, true},
		{"502 below ceiling", statusErr(502), 1, 5, true},
		{"429 below ceiling", statusErr(429), 1, 5, true},
		{"408 below ceiling", statusErr(408), 1, 5, true},
		{"network status zero", statusErr(0), 1, 3, true},
		{"400 terminal", statusErr(400), 1, 5, false},
		{"401 terminal", statusErr(401), 1, 5, false},
		{"403 terminal", statusErr(403), 1, 5, false},
		{"404 terminal", statusErr(404), 1, 5, false},
		{"409 terminal", statusErr(409), 1, 5, false},
		{"422 terminal", statusErr(422), 1, 5, false},
		{"at ceiling", statusErr(500), 5, 5, false},
		{"over ceiling", statusErr(500), 6, 5, false},
		{"cancelled", fmt.Errorf("x: %w", context.Canceled), 1, 5, false},
		{"dial failure", &net.OpError{Op: "dial", Err: errors.New("refused")}, 1, 5, true},
		{"plain error", errors.New("boom"), 1, 5, false},
		{"nil", nil, 1, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRetry(tt.err, tt.attempt, tt.max); got != tt.want {
				t.Fatalf("ShouldRetry(%v, %d, %d) = %v, want %v", tt.err, tt.attempt, tt.max, got, tt.want)
			}
		})
	}
}

func TestShouldRetry_FalseExactlyAtCeiling(t *testing.T) {
	for max := 1; max <= 6; max++ {
		for attempt := 0; attempt <= 8; attempt++ {
			got := ShouldRetry(statusErr(503), attempt, max)
			if got != (attempt < max) {
				t.Fatalf("ShouldRetry(503, %d, %d) = %v", attempt, max, got)
			}
		}
	}
}

func TestPolicyDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 500 * time.Millisecond},
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{30, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := Critical.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicyJitterStaysInRange(t *testing.T) {
	p := Policy{Base: time.Second, Multiplier: 2, Cap: 10 * time.Second, Jitter: 0.25}
	for i := 0; i < 200; i++ {
		d := p.jittered(1)
		if d < 1500*time.Millisecond || d > 2500*time.Millisecond {
			t.Fatalf("jittered(1) = %v, want within 2s±25%%", d)
		}
	}
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 5, Base: time.Millisecond, Cap: 2 * time.Millisecond}
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return statusErr(503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v, want nil", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDo_StopsAtCeilingAndOnTerminal(t *testing.T) {
	p := Policy{MaxAttempts: 4, Base: time.Millisecond, Cap: time.Millisecond}

	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return statusErr(500)
	})
	if calls != 4 {
		t.Fatalf("transient calls = %d, want 4", calls)
	}
	if !errors.Is(err, statusErr(500)) {
		t.Fatalf("err = %v, want last error", err)
	}

	calls = 0
	_ = Do(context.Background(), p, func(context.Context) error {
		calls++
		return statusErr(409)
	})
	if calls != 1 {
		t.Fatalf("terminal calls = %d, want 1", calls)
	}
}

func TestDo_HonoursCancellationBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, Base: time.Hour, Cap: time.Hour}
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, p, func(context.Context) error {
			calls++
			return statusErr(500)
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, statusErr(500)) {
			t.Fatalf("err = %v, want last attempt error", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want it to carry context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
