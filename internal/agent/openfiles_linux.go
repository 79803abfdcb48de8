//go:build linux

package agent

import (
	"fmt"
	"os"
)

// openFiles lists regular files the process holds open, read from the fd
// table. Unreadable entries (permissions, races with fd churn) are skipped.
func openFiles(pid int) []string {
	fdDir := fmt.Sprintf("/proc/%d/fd", pid)
	entries, err := os.ReadDir(fdDir)
	if err != nil {
		return nil
	}

	var out []string
	for _, e := range entries {
		target, err := os.Readlink(fdDir + "/" + e.Name())
		if err != nil || len(target) == 0 || target[0] != '/' {
			continue
		}
		out = append(out, target)
	}
	return out
}
