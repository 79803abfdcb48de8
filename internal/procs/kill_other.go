//go:build !linux && !darwin

package procs

import (
	"errors"
	"syscall"
)

var ErrStillRunning = errors.New("process survived kill escalation")

var errUnsupported = errors.New("process signaling not supported on this platform")

func pgidOf(pid int) int { return 0 }

func Signal(pid int, sig syscall.Signal) error { return errUnsupported }

func SignalGroup(pgid int, sig syscall.Signal) error { return errUnsupported }

func KillTree(pid int) error { return errUnsupported }
