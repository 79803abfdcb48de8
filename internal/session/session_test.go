package session

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStatusJSONRoundTrip(t *testing.T) {
	for _, s := range []Status{Thinking, Processing, Waiting, Idle, Stale} {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("Marshal(%v) error: %v", s, err)
		}
		var back Status
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", data, err)
		}
		if back != s {
			t.Errorf("round trip %v -> %s -> %v", s, data, back)
		}
	}
}

func TestStatusPriority(t *testing.T) {
	tests := []struct {
		status Status
		want   int
	}{
		{Thinking, 0},
		{Processing, 0},
		{Waiting, 0},
		{Idle, 1},
		{Stale, 2},
	}

	for _, tt := range tests {
		if got := tt.status.Priority(); got != tt.want {
			t.Errorf("%v.Priority() = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestAgentJSON(t *testing.T) {
	data, err := json.Marshal(Codex)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"codex"` {
		t.Errorf("Marshal(Codex) = %s, want \"codex\"", data)
	}

	var a Agent
	if err := json.Unmarshal([]byte(`"opencode"`), &a); err != nil {
		t.Fatal(err)
	}
	if a != OpenCode {
		t.Errorf("Unmarshal(opencode) = %v, want OpenCode", a)
	}
}

func TestRenderKey(t *testing.T) {
	a := Session{ID: "sess-1", Agent: ClaudeCode, PID: 100}
	b := Session{ID: "sess-1", Agent: ClaudeCode, PID: 200}
	c := Session{ID: "sess-1", Agent: Codex, PID: 100}

	if a.RenderKey() == b.RenderKey() {
		t.Error("same transcript id on different pids must have distinct keys")
	}
	if a.RenderKey() == c.RenderKey() {
		t.Error("same id+pid on different agents must have distinct keys")
	}
	if a.RenderKey() != "claude:100:sess-1" {
		t.Errorf("RenderKey() = %q, want claude:100:sess-1", a.RenderKey())
	}
}

func TestSessionJSONFieldNames(t *testing.T) {
	s := Session{
		ID:             "abc",
		Agent:          ClaudeCode,
		PID:            42,
		Status:         Waiting,
		ProjectPath:    "/home/u/proj",
		ProjectName:    "proj",
		CPUPercent:     12.5,
		MemoryBytes:    256 << 20,
		LastActivityAt: time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(&s)
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"id", "agent", "pid", "status", "projectPath", "projectName", "cpuPercent", "memoryBytes", "lastActivityAt"} {
		if _, ok := m[key]; !ok {
			t.Errorf("marshalled session missing key %q (got %v)", key, m)
		}
	}
	if m["status"] != "waiting" {
		t.Errorf("status = %v, want waiting", m["status"])
	}
	if m["memoryBytes"] != float64(256<<20) {
		t.Errorf("memoryBytes = %v, want %d", m["memoryBytes"], 256<<20)
	}
}
