package session

import (
	"testing"
	"time"
)

var base = time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)

func mkSession(id string, pid int, st Status, lastActivity time.Time) Session {
	return Session{ID: id, Agent: ClaudeCode, PID: pid, Status: st, LastActivityAt: lastActivity}
}

func keys(list []Session) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = list[i].RenderKey()
	}
	return out
}

func TestSortForegroundBuckets(t *testing.T) {
	list := []Session{
		mkSession("stale", 1, Stale, base.Add(-time.Hour)),
		mkSession("idle", 2, Idle, base),
		mkSession("waiting", 3, Waiting, base.Add(-2*time.Minute)),
		mkSession("thinking", 4, Thinking, base.Add(-time.Minute)),
		mkSession("processing", 5, Processing, base),
	}

	SortForeground(list)

	got := []string{list[0].ID, list[1].ID, list[2].ID, list[3].ID, list[4].ID}
	want := []string{"processing", "thinking", "waiting", "idle", "stale"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted order = %v, want %v", got, want)
		}
	}
}

func TestSortForegroundRecencyWithinBucket(t *testing.T) {
	list := []Session{
		mkSession("older", 1, Waiting, base.Add(-time.Minute)),
		mkSession("newer", 2, Processing, base),
	}
	SortForeground(list)
	if list[0].ID != "newer" {
		t.Errorf("expected most recent first within shared bucket, got %v", keys(list))
	}
}

func TestMergeOrderedPreservesOrderOnCosmeticChange(t *testing.T) {
	prev := []Session{
		mkSession("a", 1, Thinking, base),
		mkSession("b", 2, Waiting, base.Add(-time.Minute)),
	}
	// Next poll: "a" flipped thinking→processing (same bucket) and both
	// refreshed activity; freshly sorted order happens to differ.
	next := []Session{
		mkSession("b", 2, Waiting, base.Add(2*time.Minute)),
		mkSession("a", 1, Processing, base.Add(time.Minute)),
	}

	merged := MergeOrdered(prev, next)

	if merged[0].ID != "a" || merged[1].ID != "b" {
		t.Fatalf("expected previous order preserved, got %v", keys(merged))
	}
	// Field values must come from the fresh list.
	if merged[0].Status != Processing {
		t.Errorf("merged[0].Status = %v, want refreshed Processing", merged[0].Status)
	}
	if !merged[1].LastActivityAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("merged[1].LastActivityAt not refreshed: %v", merged[1].LastActivityAt)
	}
}

func TestMergeOrderedAdoptsNewOrderOnBucketChange(t *testing.T) {
	prev := []Session{
		mkSession("a", 1, Processing, base),
		mkSession("b", 2, Waiting, base.Add(-time.Minute)),
	}
	// "a" went idle: meaningful transition, fresh order wins.
	next := []Session{
		mkSession("b", 2, Waiting, base.Add(time.Minute)),
		mkSession("a", 1, Idle, base),
	}

	merged := MergeOrdered(prev, next)
	if merged[0].ID != "b" || merged[1].ID != "a" {
		t.Errorf("expected new order adopted, got %v", keys(merged))
	}
}

func TestMergeOrderedAdoptsNewOrderOnMembershipChange(t *testing.T) {
	prev := []Session{mkSession("a", 1, Waiting, base)}

	appeared := []Session{
		mkSession("c", 3, Processing, base),
		mkSession("a", 1, Waiting, base),
	}
	merged := MergeOrdered(prev, appeared)
	if len(merged) != 2 || merged[0].ID != "c" {
		t.Errorf("new session should adopt fresh order, got %v", keys(merged))
	}

	departed := []Session{}
	merged = MergeOrdered(prev, departed)
	if len(merged) != 0 {
		t.Errorf("departed session should yield fresh (empty) list, got %v", keys(merged))
	}
}

func TestMergeOrderedReplacedSessionSamePosition(t *testing.T) {
	// Same length but a different render key: membership changed.
	prev := []Session{mkSession("a", 1, Waiting, base)}
	next := []Session{mkSession("z", 9, Waiting, base)}

	merged := MergeOrdered(prev, next)
	if merged[0].RenderKey() != next[0].RenderKey() {
		t.Errorf("expected fresh list on membership swap, got %v", keys(merged))
	}
}

func TestCounts(t *testing.T) {
	list := []Session{
		mkSession("a", 1, Waiting, base),
		mkSession("b", 2, Processing, base),
		mkSession("c", 3, Waiting, base),
		{ID: "d", Agent: Codex, PID: 4, Status: Stale},
	}

	total, waiting, byAgent := Counts(list)
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if waiting != 2 {
		t.Errorf("waiting = %d, want 2", waiting)
	}
	if byAgent["claude"] != 3 || byAgent["codex"] != 1 {
		t.Errorf("byAgent = %v, want claude:3 codex:1", byAgent)
	}
}

func TestSortBackground(t *testing.T) {
	list := []Session{
		{ID: "oc", Agent: OpenCode, PID: 1, LastActivityAt: base},
		{ID: "cl-old", Agent: ClaudeCode, PID: 2, LastActivityAt: base.Add(-time.Minute)},
		{ID: "cl-new", Agent: ClaudeCode, PID: 3, LastActivityAt: base},
	}

	SortBackground(list)

	want := []string{"cl-new", "cl-old", "oc"}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("background order = %v, want %v", keys(list), want)
		}
	}
}
