//go:build linux || darwin

package procs

import (
	"errors"
	"fmt"
	"syscall"
	"time"
)

// ErrStillRunning is returned when the full kill escalation fails to
// terminate a process.
var ErrStillRunning = errors.New("process survived kill escalation")

func pgidOf(pid int) int {
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		return 0
	}
	return pgid
}

// Signal delivers sig to one pid.
func Signal(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

// SignalGroup delivers sig to every member of a process group.
func SignalGroup(pgid int, sig syscall.Signal) error {
	if pgid <= 1 {
		return fmt.Errorf("refusing to signal process group %d", pgid)
	}
	return syscall.Kill(-pgid, sig)
}

// KillTree terminates pid and everything under it. Escalation order:
// descendants bottom-up, then the pid, then its process group, then a short
// wait and liveness check, then one full retry against whatever respawned.
func KillTree(pid int) error {
	if pid <= 1 {
		return fmt.Errorf("refusing to kill pid %d", pid)
	}

	for attempt := 0; attempt < 2; attempt++ {
		for _, child := range Descendants(pid) {
			_ = Signal(child, syscall.SIGKILL)
		}
		_ = Signal(pid, syscall.SIGKILL)
		if pgid := pgidOf(pid); pgid > 1 {
			_ = SignalGroup(pgid, syscall.SIGKILL)
		}

		time.Sleep(50 * time.Millisecond)
		if !IsAlive(pid) {
			return nil
		}
	}

	return fmt.Errorf("killing pid %d: %w", pid, ErrStillRunning)
}
