package engine

import (
	"errors"
	"testing"

	"github.com/agentdeck/agentdeck/internal/session"
)

func TestHealthTrackerThreshold(t *testing.T) {
	h := newHealthTracker()

	h.recordFailure("claude", errors.New("boom"))
	h.recordFailure("claude", errors.New("boom"))

	snap := h.snapshot()
	if snap["claude"].Status != StatusHealthy {
		t.Errorf("status after 2 failures = %v, want healthy", snap["claude"].Status)
	}

	h.recordFailure("claude", errors.New("boom again"))
	snap = h.snapshot()
	if snap["claude"].Status != StatusFailed {
		t.Errorf("status after 3 failures = %v, want failed", snap["claude"].Status)
	}
	if snap["claude"].ConsecutiveFailures != 3 {
		t.Errorf("ConsecutiveFailures = %d", snap["claude"].ConsecutiveFailures)
	}
	if snap["claude"].LastError != "boom again" {
		t.Errorf("LastError = %q", snap["claude"].LastError)
	}

	// One success resets the streak.
	h.recordSuccess("claude")
	snap = h.snapshot()
	if snap["claude"].Status != StatusHealthy || snap["claude"].ConsecutiveFailures != 0 {
		t.Errorf("after success: %+v", snap["claude"])
	}
}

func TestPassRecordsDetectorHealth(t *testing.T) {
	failing := &fakeDetector{agent: session.ClaudeCode, err: errors.New("store unreadable")}
	healthy := &fakeDetector{agent: session.Codex}
	e := testEngine(failing, healthy)

	for i := 0; i < failedThreshold; i++ {
		e.pass()
	}

	h := e.Health()
	if h["claude"].Status != StatusFailed {
		t.Errorf("claude health = %+v, want failed", h["claude"])
	}
	if h["codex"].Status != StatusHealthy {
		t.Errorf("codex health = %+v, want healthy", h["codex"])
	}

	// Detector recovers.
	failing.err = nil
	e.pass()
	if got := e.Health()["claude"].Status; got != StatusHealthy {
		t.Errorf("claude health after recovery = %v", got)
	}
}
