// Package actions implements the session action callbacks exposed to
// consumers: kill, focus, and open-project. The engine never calls these
// itself; they run on behalf of the UI or the floating viewer.
package actions

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/agentdeck/agentdeck/internal/procs"
)

// ErrNoProject is returned when an action needs a project path and none is
// available.
var ErrNoProject = errors.New("session has no project path")

type Actions struct {
	// EditorCommand opens a project directory, e.g. "code".
	EditorCommand string
	// Refresh, when set, is invoked after a mutating action so the next
	// published result reflects it promptly.
	Refresh func()
}

// EndSession kills a session's process tree through the escalation ladder.
func (a *Actions) EndSession(pid int) error {
	if !procs.IsAlive(pid) {
		return fmt.Errorf("pid %d is not running", pid)
	}

	err := procs.KillTree(pid)
	if a.Refresh != nil {
		a.Refresh()
	}
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// FocusSession brings a session's terminal to the foreground. Terminal
// focus (tmux) is attempted first; when the process isn't running in a
// pane, fall back to opening the project.
func (a *Actions) FocusSession(pid int, projectPath string) error {
	if target, ok := newTmuxResolver().resolve(pid); ok {
		return focusTmuxTarget(target)
	}
	return a.OpenProject(projectPath)
}

// OpenProject launches the configured editor on a project directory.
func (a *Actions) OpenProject(path string) error {
	if path == "" || path == "/" {
		return ErrNoProject
	}

	command := a.EditorCommand
	if command == "" {
		command = "code"
	}
	parts := strings.Fields(command)
	args := append(parts[1:], path)

	if err := exec.Command(parts[0], args...).Start(); err != nil {
		return fmt.Errorf("open project %s: %w", path, err)
	}
	return nil
}
