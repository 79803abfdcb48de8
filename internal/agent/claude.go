package agent

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentdeck/agentdeck/internal/procs"
	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/agentdeck/agentdeck/internal/status"
)

// ClaudeDetector finds Claude Code sessions by pairing claude processes
// with their JSONL transcripts under the projects directory.
type ClaudeDetector struct {
	// Root is the projects directory holding one encoded directory per
	// working directory.
	Root string
	// stateDir is the agent's own dotdir; processes working inside it are
	// internal helpers, not user sessions.
	stateDir string
}

func NewClaudeDetector(root string) *ClaudeDetector {
	home, _ := os.UserHomeDir()
	stateDir := filepath.Join(home, ".claude")
	if root == "" {
		root = filepath.Join(stateDir, "projects")
	}
	return &ClaudeDetector{Root: root, stateDir: stateDir}
}

func (d *ClaudeDetector) Agent() session.Agent { return session.ClaudeCode }

func (d *ClaudeDetector) Matches(p procs.ProcessSnapshot) bool {
	if len(p.Cmdline) == 0 {
		return false
	}
	exe := filepath.Base(p.Cmdline[0])

	if exe == "claude" || exe == "claude-code" {
		return true
	}

	// Editor-embedded adapters spawn their own claude children; the
	// adapter itself is not a terminal session.
	if exe == "claude-code-acp" {
		return false
	}

	if exe == "node" {
		for _, arg := range p.Cmdline[1:] {
			if strings.Contains(arg, "claude") && !strings.Contains(arg, "node_modules/.bin") {
				return true
			}
		}
	}
	return false
}

func (d *ClaudeDetector) Sessions(ctx Context) ([]session.Session, []session.Session, error) {
	list := d.filterNested(matching(d, ctx))
	order, groups := groupByCwd(list)

	var fg, bg []session.Session
	used := make(map[string]bool)

	for _, cwd := range order {
		group := groups[cwd]
		var unmatched []procs.ProcessSnapshot

		// Direct resolution first: the transcript the process actually
		// holds open beats any directory heuristic.
		for _, p := range group {
			if path := d.openTranscript(p.PID); path != "" && !used[path] {
				if s, ok := d.buildSession(path, p, ctx); ok {
					used[path] = true
					fg = append(fg, s)
					continue
				}
			}
			unmatched = append(unmatched, p)
		}

		if len(unmatched) == 0 {
			continue
		}

		// Expensive path: scan the encoded project directory and assign
		// transcripts newest-first by index.
		candidates := d.dirTranscripts(d.transcriptDir(cwd))
		idx := 0
		for _, p := range unmatched {
			var assigned string
			for idx < len(candidates) {
				c := candidates[idx]
				idx++
				if !used[c] {
					assigned = c
					break
				}
			}

			if assigned != "" {
				if s, ok := d.buildSession(assigned, p, ctx); ok {
					used[assigned] = true
					fg = append(fg, s)
					continue
				}
			}

			fb := fallbackSession(session.ClaudeCode, p, ctx)
			if isBackground(fb) {
				bg = append(bg, fb)
			} else {
				fg = append(fg, fb)
			}
		}
	}

	return fg, bg, nil
}

// filterNested drops claude processes whose parent is also a claude process
// (subagent children) and processes working inside the agent's own state
// directory.
func (d *ClaudeDetector) filterNested(list []procs.ProcessSnapshot) []procs.ProcessSnapshot {
	pids := make(map[int]bool, len(list))
	for _, p := range list {
		pids[p.PID] = true
	}

	var out []procs.ProcessSnapshot
	for _, p := range list {
		if pids[p.PPID] {
			continue
		}
		if p.WorkingDir == d.stateDir || strings.HasPrefix(p.WorkingDir, d.stateDir+"/") {
			continue
		}
		out = append(out, p)
	}
	return out
}

// openTranscript returns the newest transcript file the process holds open
// under the projects root, or "".
func (d *ClaudeDetector) openTranscript(pid int) string {
	var best string
	var bestMtime int64

	for _, f := range openFiles(pid) {
		if !strings.HasPrefix(f, d.Root+"/") || !strings.HasSuffix(f, ".jsonl") {
			continue
		}
		if isSubagentFile(f) {
			continue
		}
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if m := info.ModTime().UnixNano(); best == "" || m > bestMtime {
			best, bestMtime = f, m
		}
	}
	return best
}

// transcriptDir resolves the encoded directory for a working directory,
// first by exact encoding and then by loose scan, since encoded names and
// paths disagree on dashes, underscores and case.
func (d *ClaudeDetector) transcriptDir(cwd string) string {
	if cwd == "" {
		return ""
	}

	exact := filepath.Join(d.Root, EncodeProjectPath(cwd))
	if info, err := os.Stat(exact); err == nil && info.IsDir() {
		return exact
	}

	want := NormalizeForMatch(EncodeProjectPath(cwd))
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() && NormalizeForMatch(e.Name()) == want {
			return filepath.Join(d.Root, e.Name())
		}
	}
	return ""
}

// dirTranscripts lists a project directory's session transcripts newest
// first, excluding subagent files.
func (d *ClaudeDetector) dirTranscripts(dir string) []string {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	type candidate struct {
		path  string
		mtime int64
	}
	var found []candidate
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl") || isSubagentFile(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{filepath.Join(dir, name), info.ModTime().UnixNano()})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].mtime > found[j].mtime })

	out := make([]string, len(found))
	for i, c := range found {
		out[i] = c.path
	}
	return out
}

func (d *ClaudeDetector) buildSession(path string, p procs.ProcessSnapshot, ctx Context) (session.Session, bool) {
	parse, err := parseClaudeTranscript(path, ctx.TailBytes)
	if err != nil {
		return session.Session{}, false
	}

	id := parse.SessionID
	if id == "" {
		id = sessionIDFromPath(path)
	}

	projectPath := parse.Cwd
	if projectPath == "" {
		projectPath = p.WorkingDir
	}
	if projectPath == "" {
		projectPath = DecodeProjectPath(filepath.Base(filepath.Dir(path)))
	}

	created := parse.FirstTime
	if created.IsZero() {
		created = p.StartedAt
	}
	lastActivity := parse.LastTime
	if info, err := os.Stat(path); err == nil && info.ModTime().After(lastActivity) {
		lastActivity = info.ModTime()
	}

	return session.Session{
		ID:              id,
		Agent:           session.ClaudeCode,
		PID:             p.PID,
		Status:          status.Resolve(parse.Events, p.CPUPercent, ctx.Now, ctx.Tuning),
		ProjectPath:     projectPath,
		ProjectName:     ProjectNameFromPath(projectPath),
		Branch:          parse.Branch,
		Model:           parse.Model,
		LastMessage:     parse.LastMessage,
		LastUserMessage: parse.LastUserMessage,
		CreatedAt:       created,
		LastActivityAt:  lastActivity,
		ActiveSubagents: countActiveSubagents(filepath.Dir(path), id, ctx.Now),
		CPUPercent:      p.CPUPercent,
		MemoryBytes:     p.RSS,
	}, true
}

// sessionIDFromPath derives the session id from a transcript filename.
func sessionIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".jsonl")
}
