package procs

import (
	"errors"
	"testing"
	"time"
)

func TestSnapshotCachesWithinTTL(t *testing.T) {
	scans := 0
	inv := &Inventory{
		ttl: time.Minute,
		scan: func() ([]ProcessSnapshot, error) {
			scans++
			return []ProcessSnapshot{{PID: 100, Cmdline: []string{"claude"}}}, nil
		},
	}

	for i := 0; i < 5; i++ {
		procs, err := inv.Snapshot()
		if err != nil {
			t.Fatalf("Snapshot() error: %v", err)
		}
		if len(procs) != 1 || procs[0].PID != 100 {
			t.Fatalf("unexpected snapshot: %+v", procs)
		}
	}

	if scans != 1 {
		t.Errorf("expected 1 scan for 5 snapshots within TTL, got %d", scans)
	}
}

func TestSnapshotRescansAfterTTL(t *testing.T) {
	scans := 0
	inv := &Inventory{
		ttl: 0, // every call is past the TTL
		scan: func() ([]ProcessSnapshot, error) {
			scans++
			return []ProcessSnapshot{{PID: scans}}, nil
		},
	}

	inv.Snapshot()
	procs, _ := inv.Snapshot()
	if scans != 2 {
		t.Errorf("expected 2 scans with zero TTL, got %d", scans)
	}
	if procs[0].PID != 2 {
		t.Errorf("expected fresh scan result, got pid %d", procs[0].PID)
	}
}

func TestSnapshotFallsBackToLastGood(t *testing.T) {
	calls := 0
	inv := &Inventory{
		ttl: 0,
		scan: func() ([]ProcessSnapshot, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("ps exploded")
			}
			return []ProcessSnapshot{{PID: 42, Cmdline: []string{"codex"}}}, nil
		},
	}

	if _, err := inv.Snapshot(); err != nil {
		t.Fatalf("first Snapshot() error: %v", err)
	}

	// Second call's scan fails; the last good listing should be served.
	procs, err := inv.Snapshot()
	if err != nil {
		t.Fatalf("degraded Snapshot() error: %v", err)
	}
	if len(procs) != 1 || procs[0].PID != 42 {
		t.Errorf("expected last-good snapshot, got %+v", procs)
	}
}

func TestSnapshotErrorWithNoCache(t *testing.T) {
	inv := &Inventory{
		ttl:  time.Minute,
		scan: func() ([]ProcessSnapshot, error) { return nil, errors.New("no /proc") },
	}

	if _, err := inv.Snapshot(); err == nil {
		t.Fatal("expected error when scan fails with empty cache")
	}
}

func TestInvalidateForcesRescan(t *testing.T) {
	scans := 0
	inv := &Inventory{
		ttl: time.Hour,
		scan: func() ([]ProcessSnapshot, error) {
			scans++
			return []ProcessSnapshot{{PID: 1}}, nil
		},
	}

	inv.Snapshot()
	inv.Invalidate()
	inv.Snapshot()

	if scans != 2 {
		t.Errorf("expected 2 scans after Invalidate, got %d", scans)
	}
}

func TestProcessSnapshotCommand(t *testing.T) {
	p := ProcessSnapshot{Cmdline: []string{"/usr/bin/claude", "--resume", "abc"}}
	want := "/usr/bin/claude --resume abc"
	if got := p.Command(); got != want {
		t.Errorf("Command() = %q, want %q", got, want)
	}
}

func TestProcessSnapshotElapsed(t *testing.T) {
	now := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)

	p := ProcessSnapshot{StartedAt: now.Add(-90 * time.Second)}
	if got := p.Elapsed(now); got != 90*time.Second {
		t.Errorf("Elapsed() = %v, want 90s", got)
	}

	var unstarted ProcessSnapshot
	if got := unstarted.Elapsed(now); got != 0 {
		t.Errorf("Elapsed() with zero start = %v, want 0", got)
	}
}
