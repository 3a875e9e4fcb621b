package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/five82/marquee/internal/cache"
	"github.com/five82/marquee/internal/state"
)

const (
	defaultPollInterval = 15 * time.Second
	maxBackoff          = 30 * time.Second
)

// Syncer periodically revalidates stale cache entries that are on screen
// and probes the backend so the UI can show connectivity.
type Syncer struct {
	Cache    *cache.Store
	Probe    func(ctx context.Context) error
	State    *state.Store
	Interval time.Duration
	Logger   *slog.Logger
}

// Start launches the sync loop in a goroutine. It returns immediately and
// stops when ctx is cancelled.
func (s *Syncer) Start(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		for {
			snap := s.Round(ctx)
			timer := time.NewTimer(calculateBackoff(snap.ConsecutiveFailures, interval))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

// Round runs one sync pass and records its outcome.
func (s *Syncer) Round(ctx context.Context) state.Snapshot {
	if s.Probe != nil {
		if err := s.Probe(ctx); err != nil {
			if ctx.Err() != nil {
				return s.State.Snapshot()
			}
			snap := s.State.Record(0, err)
			s.logger().Warn("sync probe failed", "error", err, "failures", snap.ConsecutiveFailures)
			return snap
		}
	}
	n := s.Cache.RevalidateStale()
	if n > 0 {
		s.logger().Debug("revalidating stale entries", "count", n)
	}
	return s.State.Record(n, nil)
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
