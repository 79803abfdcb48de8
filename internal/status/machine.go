package status

import (
	"time"

	"github.com/agentdeck/agentdeck/internal/session"
)

// Tuning holds the per-agent thresholds for status inference. Values come
// from config; the zero value is unusable, call DefaultTuning.
type Tuning struct {
	// PendingWindow bounds how long a pending task keeps reading as active
	// without fresh transcript events.
	PendingWindow time.Duration
	// CPUThreshold is the cpu% above which a process counts as working
	// regardless of transcript state.
	CPUThreshold float64
	// IdleAfter and StaleAfter form the age ladder applied to the last
	// activity time once nothing suggests active work.
	IdleAfter  time.Duration
	StaleAfter time.Duration
}

func DefaultTuning() Tuning {
	return Tuning{
		PendingWindow: 3 * time.Minute,
		CPUThreshold:  15.0,
		IdleAfter:     5 * time.Minute,
		StaleAfter:    10 * time.Minute,
	}
}

// PendingTaskState is recomputed from scratch on every pass; it carries no
// memory between polls, which keeps status a pure function of the inputs.
type PendingTaskState struct {
	LatestTrigger  time.Time
	LatestTerminal time.Time
	IsPending      bool
}

// ComputePending walks the event stream and reduces it to trigger-vs-terminal
// recency. Newest wins: a trigger after the latest terminal means a task is
// in flight, a terminal after the latest trigger means it is not.
func ComputePending(events []Event) PendingTaskState {
	var st PendingTaskState
	for _, e := range events {
		switch {
		case e.isTrigger():
			if e.Time.After(st.LatestTrigger) {
				st.LatestTrigger = e.Time
			}
		case e.isTerminal():
			if e.Time.After(st.LatestTerminal) {
				st.LatestTerminal = e.Time
			}
		}
	}
	st.IsPending = !st.LatestTrigger.IsZero() && st.LatestTrigger.After(st.LatestTerminal)
	return st
}

// Resolve infers a status from one session's ordered event stream, the
// owning process's cpu%, and the clock. Deterministic: identical inputs
// always produce the identical status.
func Resolve(events []Event, cpu float64, now time.Time, tun Tuning) session.Status {
	// A process with no transcript events yet has just started; the agent
	// is sitting at its prompt.
	if len(events) == 0 {
		if cpu > tun.CPUThreshold {
			return session.Processing
		}
		return session.Waiting
	}

	last := events[len(events)-1]
	pending := ComputePending(events)

	if pending.IsPending && now.Sub(last.Time) <= tun.PendingWindow {
		if last.Kind == ReasoningStep {
			return session.Thinking
		}
		return session.Processing
	}

	if cpu > tun.CPUThreshold {
		return session.Processing
	}

	// An interrupt or completion that just happened pins the session at
	// waiting even when a stale trigger would otherwise read as activity.
	if last.isTerminal() && now.Sub(last.Time) <= tun.PendingWindow {
		return session.Waiting
	}

	return AgeLadder(last.Time, now, tun)
}

// AgeLadder maps elapsed time since the last observed activity onto
// waiting → idle → stale. Also used directly for process-only fallback
// sessions where file mtime is the only activity signal.
func AgeLadder(lastActivity time.Time, now time.Time, tun Tuning) session.Status {
	age := now.Sub(lastActivity)
	switch {
	case age >= tun.StaleAfter:
		return session.Stale
	case age >= tun.IdleAfter:
		return session.Idle
	default:
		return session.Waiting
	}
}
