package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/marquee/internal/cache"
	"github.com/five82/marquee/internal/logging"
	"github.com/five82/marquee/internal/state"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // Would be 32s, capped to 30s
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	// Verify that backoff never exceeds maxBackoff regardless of input
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 20; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

func TestSyncerRound_RecordsProbeOutcome(t *testing.T) {
	store := cache.NewStore(cache.Options{})
	t.Cleanup(store.Dispose)
	tracker := state.NewStore(nil)

	fail := true
	s := &Syncer{
		Cache: store,
		State: tracker,
		Probe: func(context.Context) error {
			if fail {
				return errors.New("connection refused")
			}
			return nil
		},
		Logger: logging.Discard(),
	}

	s.Round(context.Background())
	snap := s.Round(context.Background())
	if !snap.IsOffline() || snap.ConsecutiveFailures != 2 {
		t.Fatalf("after two failures snapshot = %#v", snap)
	}

	fail = false
	snap = s.Round(context.Background())
	if snap.IsOffline() || !snap.Synced() {
		t.Fatalf("after recovery snapshot = %#v", snap)
	}
}

func TestSyncerRound_RevalidatesSubscribedStaleEntries(t *testing.T) {
	now := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	store := cache.NewStore(cache.Options{DefaultStale: 10 * time.Second, Now: clock})
	t.Cleanup(store.Dispose)

	key := cache.NewKey("sessions", 1)
	var fetches atomic.Int32
	fetch := func(context.Context) (any, error) {
		fetches.Add(1)
		return "seat map", nil
	}
	if _, err := store.Load(context.Background(), key, fetch); err != nil {
		t.Fatalf("Load: %v", err)
	}
	unsubscribe := store.Subscribe(key, func(cache.Entry) {})
	defer unsubscribe()

	s := &Syncer{Cache: store, State: state.NewStore(clock), Logger: logging.Discard()}
	if snap := s.Round(context.Background()); snap.Revalidated != 0 {
		t.Fatalf("fresh entry revalidated: %#v", snap)
	}

	mu.Lock()
	now = now.Add(11 * time.Second)
	mu.Unlock()

	if snap := s.Round(context.Background()); snap.Revalidated != 1 {
		t.Fatalf("Revalidated = %d, want 1", snap.Revalidated)
	}
	deadline := time.Now().Add(2 * time.Second)
	for fetches.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := fetches.Load(); got != 2 {
		t.Fatalf("fetches = %d, want 2", got)
	}
}
