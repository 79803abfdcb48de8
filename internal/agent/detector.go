package agent

import (
	"os"
	"strconv"
	"time"

	"github.com/agentdeck/agentdeck/internal/procs"
	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/agentdeck/agentdeck/internal/status"
)

// Context carries the shared per-pass inputs into each detector. Detectors
// only read from it, so one Context is safely shared by a whole pass.
type Context struct {
	Procs     []procs.ProcessSnapshot
	Now       time.Time
	Tuning    status.Tuning
	TailBytes int64
}

// Detector finds one agent family's live sessions. Implementations filter
// the shared process snapshot for their agent, locate its transcript store,
// correlate, and emit normalized sessions split into foreground and
// background (low-signal helper) lists.
type Detector interface {
	Agent() session.Agent
	Matches(p procs.ProcessSnapshot) bool
	Sessions(ctx Context) (foreground, background []session.Session, err error)
}

// matching filters the snapshot through the detector's process matcher,
// preserving inventory order so index-based transcript assignment is stable
// across polls.
func matching(d Detector, ctx Context) []procs.ProcessSnapshot {
	var out []procs.ProcessSnapshot
	for _, p := range ctx.Procs {
		if d.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// groupByCwd buckets processes by working directory, keeping first-seen
// order of both the groups and their members.
func groupByCwd(list []procs.ProcessSnapshot) (order []string, groups map[string][]procs.ProcessSnapshot) {
	groups = make(map[string][]procs.ProcessSnapshot)
	for _, p := range list {
		cwd := p.WorkingDir
		if _, seen := groups[cwd]; !seen {
			order = append(order, cwd)
		}
		groups[cwd] = append(groups[cwd], p)
	}
	return order, groups
}

// fallbackSession builds a process-only session for a live process with no
// matching transcript. Conservative metadata; a live process is never
// dropped from the result.
func fallbackSession(agent session.Agent, p procs.ProcessSnapshot, ctx Context) session.Session {
	started := p.StartedAt
	if started.IsZero() {
		started = ctx.Now
	}

	// With no transcript, the working directory's mtime is the best
	// activity signal available; a long-lived process should not read as
	// stale just because it started long ago.
	last := started
	if p.WorkingDir != "" && p.WorkingDir != "/" {
		if info, err := os.Stat(p.WorkingDir); err == nil {
			if m := info.ModTime(); m.After(last) && !m.After(ctx.Now) {
				last = m
			}
		}
	}

	st := session.Stale
	if p.CPUPercent > ctx.Tuning.CPUThreshold {
		st = session.Processing
	} else {
		st = status.AgeLadder(last, ctx.Now, ctx.Tuning)
	}

	return session.Session{
		ID:             agent.String() + "-" + strconv.Itoa(p.PID),
		Agent:          agent,
		PID:            p.PID,
		Status:         st,
		ProjectPath:    p.WorkingDir,
		ProjectName:    ProjectNameFromPath(p.WorkingDir),
		CreatedAt:      started,
		LastActivityAt: last,
		CPUPercent:     p.CPUPercent,
		MemoryBytes:    p.RSS,
		ProcessOnly:    true,
	}
}

// isBackground classifies a fallback session as a low-signal helper: no
// resolvable project directory means there is nothing to show a user.
func isBackground(s session.Session) bool {
	return s.ProcessOnly && (s.ProjectPath == "" || s.ProjectPath == "/")
}
