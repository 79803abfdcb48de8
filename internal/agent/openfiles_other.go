//go:build !linux

package agent

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// openFiles lists files the process holds open via lsof. Field output mode
// (-Fn) emits one "n<path>" line per descriptor. Bounded by a hard timeout
// since lsof can wedge on dead network mounts.
func openFiles(pid int) []string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := exec.CommandContext(ctx, "lsof", "-Fn", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return nil
	}

	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "n/") {
			out = append(out, line[1:])
		}
	}
	return out
}
