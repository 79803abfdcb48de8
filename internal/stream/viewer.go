package stream

import (
	"fmt"
	"log"
	"os/exec"
	"strings"

	"github.com/agentdeck/agentdeck/internal/gitx"
)

// Viewer runs the floating-viewer helper as a child process, feeding it the
// payload stream on stdin and consuming actions from its stdout.
type Viewer struct {
	*Publisher
	cmd *exec.Cmd
}

// LaunchViewer starts the helper named by command (split on whitespace) and
// wires both directions of the pipe. The read loop runs until the child
// exits.
func LaunchViewer(command string, h ActionHandler, diff func(string) gitx.DiffStats) (*Viewer, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty viewer command")
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting viewer %q: %w", parts[0], err)
	}

	v := &Viewer{
		Publisher: NewPublisher(stdin, diff),
		cmd:       cmd,
	}

	go func() {
		v.ReadLoop(stdout, h)
		if err := cmd.Wait(); err != nil {
			log.Printf("[stream] viewer exited: %v", err)
		}
	}()

	return v, nil
}

// Close terminates the viewer process.
func (v *Viewer) Close() error {
	if v.cmd.Process != nil {
		return v.cmd.Process.Kill()
	}
	return nil
}
