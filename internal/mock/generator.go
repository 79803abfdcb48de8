// Package mock generates synthetic session results for frontend and viewer
// development without any real agent processes running.
package mock

import (
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/agentdeck/agentdeck/internal/engine"
	"github.com/agentdeck/agentdeck/internal/gitx"
	"github.com/agentdeck/agentdeck/internal/session"
)

// mockSession is one scripted session plus its activity pattern.
type mockSession struct {
	s       session.Session
	pattern string
	ended   bool
}

type Generator struct {
	mu        sync.Mutex
	sessions  []*mockSession
	published session.SessionsResult
	hasResult bool
	subs      []func(session.SessionsResult)
	tick      int

	stop chan struct{}
	done chan struct{}
}

func NewGenerator() *Generator {
	now := time.Now()

	seed := func(id string, agent session.Agent, pid int, dir, name, model, pattern string) *mockSession {
		return &mockSession{
			s: session.Session{
				ID:             id,
				Agent:          agent,
				PID:            pid,
				Status:         session.Processing,
				ProjectPath:    dir,
				ProjectName:    name,
				Branch:         "main",
				Model:          model,
				CreatedAt:      now,
				LastActivityAt: now,
			},
			pattern: pattern,
		}
	}

	return &Generator{
		sessions: []*mockSession{
			seed("mock-refactor", session.ClaudeCode, 9001, "/home/user/myproject", "myproject", "claude-opus-4", "steady"),
			seed("mock-tests", session.ClaudeCode, 9002, "/home/user/webapp", "webapp", "claude-sonnet-4", "stall"),
			seed("mock-migrate", session.Codex, 9003, "/home/user/database", "database", "o3", "bursty"),
			seed("mock-review", session.OpenCode, 9004, "/home/user/library", "library", "gpt-5", "decay"),
		},
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start publishes an initial result and then advances the script on a fixed
// cadence until Stop.
func (g *Generator) Start() {
	g.advance()
	go func() {
		defer close(g.done)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-g.stop:
				return
			case <-ticker.C:
				g.advance()
			}
		}
	}()
}

func (g *Generator) Stop() {
	close(g.stop)
	<-g.done
}

// advance moves every scripted session one step and publishes.
func (g *Generator) advance() {
	g.mu.Lock()
	g.tick++
	now := time.Now()

	var fg []session.Session
	for _, ms := range g.sessions {
		if ms.ended {
			continue
		}
		stepPattern(ms, g.tick, now)
		fg = append(fg, ms.s)
	}

	session.SortForeground(fg)
	total, waiting, byAgent := session.Counts(fg)
	result := session.SessionsResult{
		Sessions:     fg,
		TotalCount:   total,
		WaitingCount: waiting,
		AgentCounts:  byAgent,
		GeneratedAt:  now,
	}
	g.published = result
	g.hasResult = true
	subs := make([]func(session.SessionsResult), len(g.subs))
	copy(subs, g.subs)
	g.mu.Unlock()

	for _, fn := range subs {
		fn(result)
	}
}

func stepPattern(ms *mockSession, tick int, now time.Time) {
	switch ms.pattern {
	case "steady":
		// Mostly processing, a thinking step every few ticks.
		if tick%4 == 0 {
			ms.s.Status = session.Thinking
		} else {
			ms.s.Status = session.Processing
		}
		ms.s.CPUPercent = 20 + rand.Float64()*40
		ms.s.LastActivityAt = now
	case "stall":
		// Work for a while, then sit waiting on the user.
		if tick%24 < 16 {
			ms.s.Status = session.Processing
			ms.s.CPUPercent = 25 + rand.Float64()*20
			ms.s.LastActivityAt = now
		} else {
			ms.s.Status = session.Waiting
			ms.s.CPUPercent = 1
		}
	case "bursty":
		if tick%8 < 3 {
			ms.s.Status = session.Processing
			ms.s.CPUPercent = 60 + rand.Float64()*30
			ms.s.LastActivityAt = now
		} else {
			ms.s.Status = session.Waiting
			ms.s.CPUPercent = 2
		}
	case "decay":
		// Ages through the ladder without new activity.
		ms.s.CPUPercent = 0.5
		switch {
		case tick < 10:
			ms.s.Status = session.Waiting
		case tick < 30:
			ms.s.Status = session.Idle
		default:
			ms.s.Status = session.Stale
		}
	}
}

// Latest implements the session source read side.
func (g *Generator) Latest() (session.SessionsResult, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.published, g.hasResult
}

// TriggerRefresh advances the script immediately.
func (g *Generator) TriggerRefresh() {
	g.advance()
}

// DiffStats fabricates stable per-directory stats so the UI has something
// to render.
func (g *Generator) DiffStats(dir string) gitx.DiffStats {
	h := fnv.New32a()
	h.Write([]byte(dir))
	n := h.Sum32()
	return gitx.DiffStats{
		FilesChanged: int(n%7) + 1,
		Additions:    int(n % 400),
		Deletions:    int(n % 90),
	}
}

// Health reports every agent family healthy; there is nothing to fail.
func (g *Generator) Health() map[string]engine.DetectorHealth {
	return map[string]engine.DetectorHealth{
		"claude":   {Status: engine.StatusHealthy},
		"codex":    {Status: engine.StatusHealthy},
		"opencode": {Status: engine.StatusHealthy},
	}
}

// Subscribe registers a callback invoked after every published step.
func (g *Generator) Subscribe(fn func(session.SessionsResult)) {
	g.mu.Lock()
	g.subs = append(g.subs, fn)
	g.mu.Unlock()
}

// FocusSession is a no-op in mock mode.
func (g *Generator) FocusSession(pid int, projectPath string) error {
	return nil
}

// EndSession removes the scripted session, mirroring what a kill does to a
// real one.
func (g *Generator) EndSession(pid int) error {
	g.mu.Lock()
	for _, ms := range g.sessions {
		if ms.s.PID == pid {
			ms.ended = true
		}
	}
	g.mu.Unlock()
	g.advance()
	return nil
}
