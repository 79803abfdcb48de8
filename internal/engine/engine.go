package engine

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/gitx"
	"github.com/agentdeck/agentdeck/internal/procs"
	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/agentdeck/agentdeck/internal/status"
)

// Engine owns the poll loop: one shared process snapshot per pass, the
// three detectors, aggregation with stable-order merge, and publication to
// subscribers. All coordination state is owned by the coordinator; the
// published result is the only other shared value.
type Engine struct {
	cfg       *config.Config
	inv       *procs.Inventory
	snapshot  func() ([]procs.ProcessSnapshot, error)
	detectors []agent.Detector
	tunings   map[session.Agent]status.Tuning
	diffs     *gitx.DiffCache
	coord     *Coordinator
	health    *healthTracker

	generation atomic.Uint64

	mu          sync.Mutex
	published   session.SessionsResult
	hasResult   bool
	meta        map[string]projectMeta
	subscribers []func(session.SessionsResult)

	stop chan struct{}
	done chan struct{}
}

// projectMeta caches per-project git decoration between polls.
type projectMeta struct {
	branch string
	url    string
	at     time.Time
}

const metaTTL = 30 * time.Second

func New(cfg *config.Config) *Engine {
	e := &Engine{
		cfg: cfg,
		inv: procs.NewInventory(cfg.Engine.ProcessCacheTTL),
		detectors: []agent.Detector{
			agent.NewClaudeDetector(cfg.AgentRoot("claude")),
			agent.NewCodexDetector(cfg.AgentRoot("codex")),
			agent.NewOpenCodeDetector(cfg.AgentRoot("opencode")),
		},
		tunings: make(map[session.Agent]status.Tuning),
		diffs:   gitx.NewDiffCache(cfg.Engine.DiffStatsTTL),
		health:  newHealthTracker(),
		meta:    make(map[string]projectMeta),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	e.coord = NewCoordinator(e.pass)
	e.snapshot = e.inv.Snapshot

	for _, d := range e.detectors {
		sc := cfg.AgentStatus(d.Agent().String())
		e.tunings[d.Agent()] = status.Tuning{
			PendingWindow: sc.PendingWindow,
			CPUThreshold:  sc.CPUThreshold,
			IdleAfter:     sc.IdleAfter,
			StaleAfter:    sc.StaleAfter,
		}
	}
	return e
}

// Start runs the polling loop until Stop is called.
func (e *Engine) Start() {
	go func() {
		defer close(e.done)

		ticker := time.NewTicker(e.cfg.Engine.PollInterval)
		defer ticker.Stop()

		e.coord.Trigger(true)
		for {
			select {
			case <-ticker.C:
				e.coord.Trigger(false)
			case <-e.stop:
				return
			}
		}
	}()
}

// Stop halts the timer and waits for any in-flight pass to finish.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
	e.coord.Wait()
}

// TriggerRefresh requests an immediate pass on behalf of a user action.
func (e *Engine) TriggerRefresh() {
	e.coord.Trigger(true)
}

// Latest returns the most recently published result.
func (e *Engine) Latest() (session.SessionsResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.published, e.hasResult
}

// Subscribe registers a callback invoked after every published pass.
// Callbacks run on the poll goroutine and must return quickly.
func (e *Engine) Subscribe(fn func(session.SessionsResult)) {
	e.mu.Lock()
	e.subscribers = append(e.subscribers, fn)
	e.mu.Unlock()
}

// DiffStats returns the cached diff stats for a project directory; zero
// stats when nothing has been computed yet.
func (e *Engine) DiffStats(dir string) gitx.DiffStats {
	stats, _ := e.diffs.Get(dir)
	return stats
}

// Health reports per-detector health as of the last pass.
func (e *Engine) Health() map[string]DetectorHealth {
	return e.health.snapshot()
}

// pass executes one full detector sweep and publishes the result.
func (e *Engine) pass() {
	now := time.Now()

	snapshot, err := e.snapshot()
	if err != nil {
		// Pass-level failure: keep the last good result, poll again on
		// the next tick.
		log.Printf("[engine] process scan failed: %v", err)
		return
	}

	var fg, bg []session.Session
	for _, d := range e.detectors {
		f, b := e.runDetector(d, snapshot, now)
		fg = append(fg, f...)
		bg = append(bg, b...)
	}

	e.decorate(fg, now)
	session.SortForeground(fg)
	session.SortBackground(bg)

	e.mu.Lock()
	prev := e.published.Sessions
	e.mu.Unlock()

	merged := session.MergeOrdered(prev, fg)
	total, waiting, byAgent := session.Counts(merged)

	result := session.SessionsResult{
		Sessions:           merged,
		BackgroundSessions: bg,
		TotalCount:         total,
		WaitingCount:       waiting,
		AgentCounts:        byAgent,
		GeneratedAt:        now,
	}

	e.mu.Lock()
	e.published = result
	e.hasResult = true
	subs := make([]func(session.SessionsResult), len(e.subscribers))
	copy(subs, e.subscribers)
	e.mu.Unlock()

	for _, fn := range subs {
		fn(result)
	}

	e.refreshDiffStats(merged)
}

// runDetector executes one detector with failure isolation: an error or
// panic yields zero sessions for that agent without disturbing the others.
func (e *Engine) runDetector(d agent.Detector, snapshot []procs.ProcessSnapshot, now time.Time) (fg, bg []session.Session) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[engine] %s detector panicked: %v", d.Agent(), r)
			e.health.recordFailure(d.Agent().String(), fmt.Errorf("panic: %v", r))
			fg, bg = nil, nil
		}
	}()

	ctx := agent.Context{
		Procs:     snapshot,
		Now:       now,
		Tuning:    e.tunings[d.Agent()],
		TailBytes: e.cfg.Engine.TranscriptTail,
	}

	fg, bg, err := d.Sessions(ctx)
	if err != nil {
		log.Printf("[engine] %s detector failed: %v", d.Agent(), err)
		e.health.recordFailure(d.Agent().String(), err)
		return nil, nil
	}
	e.health.recordSuccess(d.Agent().String())
	return fg, bg
}

// decorate fills per-project git metadata from a short-lived cache so each
// project costs at most one git invocation per TTL window.
func (e *Engine) decorate(sessions []session.Session, now time.Time) {
	for i := range sessions {
		s := &sessions[i]
		if s.ProjectPath == "" || s.ProjectPath == "/" {
			continue
		}

		e.mu.Lock()
		m, ok := e.meta[s.ProjectPath]
		e.mu.Unlock()

		if !ok || now.Sub(m.at) > metaTTL {
			m = projectMeta{
				branch: gitx.Branch(s.ProjectPath),
				url:    gitx.RemoteURL(s.ProjectPath),
				at:     now,
			}
			e.mu.Lock()
			e.meta[s.ProjectPath] = m
			e.mu.Unlock()
		}

		if s.Branch == "" {
			s.Branch = m.branch
		}
		if s.GitHubURL == "" {
			s.GitHubURL = m.url
		}
	}
}

// refreshDiffStats recomputes stale per-project diff stats off the poll's
// critical path. The computation carries the generation current at launch;
// a slower, superseded run discards its results instead of overwriting
// fresher ones.
func (e *Engine) refreshDiffStats(sessions []session.Session) {
	seen := make(map[string]bool)
	var dirs []string
	for i := range sessions {
		dir := sessions[i].ProjectPath
		if dir == "" || dir == "/" || seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	stale := e.diffs.StaleDirs(dirs)
	if len(stale) == 0 {
		return
	}

	gen := e.generation.Add(1)
	go func() {
		computed := make(map[string]gitx.DiffStats, len(stale))
		for _, dir := range stale {
			computed[dir] = gitx.Diff(dir)
		}
		if e.generation.Load() != gen {
			return
		}
		for dir, stats := range computed {
			e.diffs.Put(dir, stats)
		}
	}()
}

// KillSession terminates a session's process tree through the escalation
// ladder and triggers a refresh so the list reflects the kill promptly.
func (e *Engine) KillSession(pid int) error {
	if !procs.IsAlive(pid) {
		return fmt.Errorf("pid %d is not running", pid)
	}
	err := procs.KillTree(pid)
	e.inv.Invalidate()
	e.TriggerRefresh()
	return err
}
