package actions

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// tmuxPane is one pane and the shell PID running inside it.
type tmuxPane struct {
	SessionName string
	WindowIndex int
	PaneIndex   int
	PanePID     int
	Target      string // pre-formatted "main:2.0"
}

// tmuxResolver maps agent PIDs to their containing tmux pane by walking
// the process tree up to a pane's shell PID.
type tmuxResolver struct {
	targetByPID map[int]string
	parentOf    func(pid int) int
}

// newTmuxResolver queries tmux for all panes. Returns nil (not an error)
// when tmux is not installed or no server is running.
func newTmuxResolver() *tmuxResolver {
	panes, err := listTmuxPanes()
	if err != nil || len(panes) == 0 {
		return nil
	}
	targetByPID := make(map[int]string, len(panes))
	for _, p := range panes {
		targetByPID[p.PanePID] = p.Target
	}
	return &tmuxResolver{targetByPID: targetByPID, parentOf: parentPID}
}

// resolve walks from pid upward looking for a pane shell. Capped at 10
// ancestors to avoid runaway loops on weird trees.
func (r *tmuxResolver) resolve(pid int) (string, bool) {
	if r == nil {
		return "", false
	}

	current := pid
	for i := 0; i < 10; i++ {
		if target, ok := r.targetByPID[current]; ok {
			return target, true
		}
		parent := r.parentOf(current)
		if parent <= 1 || parent == current {
			break
		}
		current = parent
	}
	return "", false
}

func parentPID(pid int) int {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	ppid, err := p.Ppid()
	if err != nil {
		return 0
	}
	return int(ppid)
}

func listTmuxPanes() ([]tmuxPane, error) {
	path, err := exec.LookPath("tmux")
	if err != nil {
		return nil, err
	}

	out, err := exec.Command(path, "list-panes", "-a", "-F",
		"#{pane_pid}\t#{session_name}\t#{window_index}\t#{pane_index}").Output()
	if err != nil {
		return nil, err
	}
	return parseTmuxPanes(string(out)), nil
}

// parseTmuxPanes parses the tab-separated list-panes output.
func parseTmuxPanes(output string) []tmuxPane {
	var panes []tmuxPane
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			continue
		}

		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		winIdx, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		paneIdx, err := strconv.Atoi(fields[3])
		if err != nil {
			continue
		}

		panes = append(panes, tmuxPane{
			SessionName: fields[1],
			WindowIndex: winIdx,
			PaneIndex:   paneIdx,
			PanePID:     pid,
			Target:      fmt.Sprintf("%s:%d.%d", fields[1], winIdx, paneIdx),
		})
	}
	return panes
}

// focusTmuxTarget brings a pane to the foreground: attach the client to
// the session, then select the window and pane.
func focusTmuxTarget(target string) error {
	sessionName := target
	if i := strings.Index(target, ":"); i > 0 {
		sessionName = target[:i]
	}

	if err := exec.Command("tmux", "switch-client", "-t", sessionName).Run(); err != nil {
		return fmt.Errorf("tmux switch-client: %w", err)
	}
	window := target
	if i := strings.LastIndex(target, "."); i > 0 {
		window = target[:i]
	}
	if err := exec.Command("tmux", "select-window", "-t", window).Run(); err != nil {
		return fmt.Errorf("tmux select-window: %w", err)
	}
	if err := exec.Command("tmux", "select-pane", "-t", target).Run(); err != nil {
		return fmt.Errorf("tmux select-pane: %w", err)
	}
	return nil
}
