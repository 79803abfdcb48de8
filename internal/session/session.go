package session

import (
	"encoding/json"
	"strconv"
	"time"
)

// Agent identifies which agent family a session belongs to.
type Agent int

const (
	ClaudeCode Agent = iota
	Codex
	OpenCode
)

var agentNames = map[Agent]string{
	ClaudeCode: "claude",
	Codex:      "codex",
	OpenCode:   "opencode",
}

var agentFromName = map[string]Agent{
	"claude":   ClaudeCode,
	"codex":    Codex,
	"opencode": OpenCode,
}

func (a Agent) String() string {
	if s, ok := agentNames[a]; ok {
		return s
	}
	return "unknown"
}

func (a Agent) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Agent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := agentFromName[s]; ok {
		*a = v
	}
	return nil
}

// Status is the inferred live state of one agent session.
type Status int

const (
	Thinking Status = iota
	Processing
	Waiting
	Idle
	Stale
)

var statusNames = map[Status]string{
	Thinking:   "thinking",
	Processing: "processing",
	Waiting:    "waiting",
	Idle:       "idle",
	Stale:      "stale",
}

var statusFromName = map[string]Status{
	"thinking":   Thinking,
	"processing": Processing,
	"waiting":    Waiting,
	"idle":       Idle,
	"stale":      Stale,
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var n string
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if v, ok := statusFromName[n]; ok {
		*s = v
	}
	return nil
}

// Priority buckets the status for sort ordering. Thinking, processing and
// waiting share a bucket so a session flipping between them keeps its place
// in the list; only active→idle→stale transitions reorder.
func (s Status) Priority() int {
	switch s {
	case Thinking, Processing, Waiting:
		return 0
	case Idle:
		return 1
	default:
		return 2
	}
}

// Session is one detected agent session, correlated to a live process where
// possible. ID is transcript-local and may repeat across processes; use
// RenderKey for identity.
type Session struct {
	ID              string    `json:"id"`
	Agent           Agent     `json:"agent"`
	PID             int       `json:"pid"`
	Status          Status    `json:"status"`
	ProjectPath     string    `json:"projectPath"`
	ProjectName     string    `json:"projectName"`
	Branch          string    `json:"branch,omitempty"`
	GitHubURL       string    `json:"githubUrl,omitempty"`
	Model           string    `json:"model,omitempty"`
	LastMessage     string    `json:"lastMessage,omitempty"`
	LastUserMessage string    `json:"lastUserMessage,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	LastActivityAt  time.Time `json:"lastActivityAt"`
	ActiveSubagents int       `json:"activeSubagents,omitempty"`
	CPUPercent      float64   `json:"cpuPercent"`
	MemoryBytes     uint64    `json:"memoryBytes"`
	// ProcessOnly marks a fallback session emitted for a live process with
	// no matching transcript.
	ProcessOnly bool `json:"processOnly,omitempty"`
}

// RenderKey uniquely identifies a session row across polls.
func (s *Session) RenderKey() string {
	return s.Agent.String() + ":" + strconv.Itoa(s.PID) + ":" + s.ID
}

// SessionsResult is the immutable snapshot published after each poll pass.
type SessionsResult struct {
	Sessions           []Session      `json:"sessions"`
	BackgroundSessions []Session      `json:"backgroundSessions"`
	TotalCount         int            `json:"totalCount"`
	WaitingCount       int            `json:"waitingCount"`
	AgentCounts        map[string]int `json:"agentCounts,omitempty"`
	GeneratedAt        time.Time      `json:"generatedAt"`
}
