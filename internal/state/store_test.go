package state

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestStore_RecordSuccess(t *testing.T) {
	now := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	s := NewStore(func() time.Time { return now })

	if s.Snapshot().Synced() {
		t.Fatal("fresh store reports Synced")
	}

	snap := s.Record(4, nil)
	if !snap.LastSync.Equal(now) || !snap.LastTry.Equal(now) {
		t.Fatalf("timestamps = %v / %v, want %v", snap.LastSync, snap.LastTry, now)
	}
	if snap.Revalidated != 4 || snap.LastError != nil || !snap.Synced() {
		t.Fatalf("snapshot = %#v", snap)
	}
}

func TestStore_RecordErrorKeepsLastSync(t *testing.T) {
	now := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	s := NewStore(func() time.Time { return now })
	s.Record(2, nil)

	synced := now
	now = now.Add(30 * time.Second)
	origErr := errors.New("boom")
	s.Record(0, origErr)

	snap := s.Snapshot()
	if !snap.LastSync.Equal(synced) {
		t.Fatalf("LastSync = %v, want %v", snap.LastSync, synced)
	}
	if !snap.LastTry.Equal(now) {
		t.Fatalf("LastTry = %v, want %v", snap.LastTry, now)
	}
	if snap.Revalidated != 2 {
		t.Fatalf("Revalidated = %d, want previous 2", snap.Revalidated)
	}
	if snap.LastError == nil || snap.LastError.Error() != "boom" {
		t.Fatalf("LastError = %v, want boom", snap.LastError)
	}
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatal("Snapshot should clone error instance")
	}
}

func TestStore_ConsecutiveFailures(t *testing.T) {
	var s Store

	tests := []struct {
		err     error
		count   int
		offline bool
	}{
		{errors.New("fail 1"), 1, false},
		{errors.New("fail 2"), 2, true},
		{errors.New("fail 3"), 3, true},
		{nil, 0, false},
	}
	for i, tt := range tests {
		snap := s.Record(0, tt.err)
		if snap.ConsecutiveFailures != tt.count {
			t.Fatalf("step %d: ConsecutiveFailures = %d, want %d", i, snap.ConsecutiveFailures, tt.count)
		}
		if snap.IsOffline() != tt.offline {
			t.Fatalf("step %d: IsOffline = %v, want %v", i, snap.IsOffline(), tt.offline)
		}
	}
}
