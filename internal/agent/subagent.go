package agent

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// subagentActiveWindow bounds how recently a subagent transcript must have
// been written to count as active.
const subagentActiveWindow = 30 * time.Second

// isSubagentFile reports whether a transcript filename belongs to a
// subagent rather than a main session. Subagents write their own
// agent-*.jsonl files alongside the parent's transcript.
func isSubagentFile(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "agent-")
}

// countActiveSubagents counts subagent transcripts in a project directory
// that were written within the active window and belong to the given parent
// session.
func countActiveSubagents(dir, sessionID string, now time.Time) int {
	if sessionID == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	count := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isSubagentFile(name) || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) > subagentActiveWindow {
			continue
		}
		if subagentSessionID(filepath.Join(dir, name)) == sessionID {
			count++
		}
	}
	return count
}

// subagentSessionID reads the parent session id from the head of a subagent
// transcript. Only the first few lines are examined; every entry carries
// the id so the head is sufficient.
func subagentSessionID(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for i := 0; i < 5 && scanner.Scan(); i++ {
		var entry struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry.SessionID != "" {
			return entry.SessionID
		}
	}
	return ""
}
