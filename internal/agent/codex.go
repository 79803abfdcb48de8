package agent

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentdeck/agentdeck/internal/procs"
	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/agentdeck/agentdeck/internal/status"
)

// CodexDetector finds Codex CLI sessions from rollout transcripts under
// <codex home>/sessions/YYYY/MM/DD/.
type CodexDetector struct {
	Root string
}

// codexScanWindow bounds which rollout files are considered live; anything
// older cannot belong to a running process we would still want to label.
const codexScanWindow = 24 * time.Hour

// codexScanLimit caps how many rollout tails one pass will parse.
const codexScanLimit = 64

func NewCodexDetector(root string) *CodexDetector {
	if root == "" {
		if ch := os.Getenv("CODEX_HOME"); ch != "" {
			root = ch
		} else {
			home, _ := os.UserHomeDir()
			root = filepath.Join(home, ".codex")
		}
	}
	return &CodexDetector{Root: root}
}

func (d *CodexDetector) Agent() session.Agent { return session.Codex }

func (d *CodexDetector) Matches(p procs.ProcessSnapshot) bool {
	if len(p.Cmdline) == 0 {
		return false
	}
	exe := filepath.Base(p.Cmdline[0])
	if exe == "codex" {
		return true
	}
	if exe == "node" {
		for _, arg := range p.Cmdline[1:] {
			if strings.Contains(arg, "codex") && !strings.Contains(arg, "node_modules/.bin") {
				return true
			}
		}
	}
	return false
}

func (d *CodexDetector) Sessions(ctx Context) ([]session.Session, []session.Session, error) {
	list := matching(d, ctx)
	if len(list) == 0 {
		return nil, nil, nil
	}

	parses := d.recentRollouts(ctx)

	// Ranked queues per working directory, plus a fallback queue of
	// transcripts whose directory could not be determined.
	byCwd := make(map[string][]*codexParse)
	var unplaced []*codexParse
	for _, cp := range parses {
		cwd := cp.bestCwd()
		if cwd == "" {
			unplaced = append(unplaced, cp)
			continue
		}
		key := NormalizeForMatch(cwd)
		byCwd[key] = append(byCwd[key], cp)
	}

	var fg, bg []session.Session
	order, groups := groupByCwd(list)

	for _, cwd := range order {
		queue := byCwd[NormalizeForMatch(cwd)]
		idx := 0
		for _, p := range groups[cwd] {
			var cp *codexParse
			if idx < len(queue) {
				cp = queue[idx]
				idx++
			} else if len(unplaced) > 0 {
				cp = unplaced[0]
				unplaced = unplaced[1:]
			}

			if cp != nil {
				fg = append(fg, d.buildSession(cp, p, ctx))
				continue
			}

			fb := fallbackSession(session.Codex, p, ctx)
			if isBackground(fb) {
				bg = append(bg, fb)
			} else {
				fg = append(fg, fb)
			}
		}
	}

	return fg, bg, nil
}

// recentRollouts parses the tails of recently written rollout files, newest
// first. Unreadable files are skipped.
func (d *CodexDetector) recentRollouts(ctx Context) []*codexParse {
	type candidate struct {
		path  string
		mtime time.Time
	}
	var files []candidate

	sessionsDir := filepath.Join(d.Root, "sessions")
	_ = filepath.WalkDir(sessionsDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "rollout-") || !strings.HasSuffix(name, ".jsonl") {
			return nil
		}
		info, err := entry.Info()
		if err != nil || ctx.Now.Sub(info.ModTime()) > codexScanWindow {
			return nil
		}
		files = append(files, candidate{path, info.ModTime()})
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].mtime.After(files[j].mtime) })
	if len(files) > codexScanLimit {
		files = files[:codexScanLimit]
	}

	var out []*codexParse
	for _, f := range files {
		cp, err := parseCodexRollout(f.path, ctx.TailBytes)
		if err != nil {
			continue
		}
		cp.path = f.path
		cp.mtime = f.mtime
		out = append(out, cp)
	}
	return out
}

func (d *CodexDetector) buildSession(cp *codexParse, p procs.ProcessSnapshot, ctx Context) session.Session {
	id := cp.SessionID
	if id == "" {
		id = codexSessionIDFromFilename(cp.path)
	}

	projectPath := cp.bestCwd()
	if projectPath == "" {
		projectPath = p.WorkingDir
	}

	created := cp.FirstTime
	if created.IsZero() {
		created = p.StartedAt
	}
	lastActivity := cp.LastTime
	if cp.mtime.After(lastActivity) {
		lastActivity = cp.mtime
	}

	return session.Session{
		ID:              id,
		Agent:           session.Codex,
		PID:             p.PID,
		Status:          status.Resolve(cp.Events, p.CPUPercent, ctx.Now, ctx.Tuning),
		ProjectPath:     projectPath,
		ProjectName:     ProjectNameFromPath(projectPath),
		Model:           cp.Model,
		LastMessage:     cp.LastMessage,
		LastUserMessage: cp.LastUserMessage,
		CreatedAt:       created,
		LastActivityAt:  lastActivity,
		CPUPercent:      p.CPUPercent,
		MemoryBytes:     p.RSS,
	}
}

// codexParse is the normalized result of reading one rollout tail.
type codexParse struct {
	SessionID       string
	MetaCwd         string
	TurnCwd         string
	EnvCwd          string
	Model           string
	Events          []status.Event
	LastMessage     string
	LastUserMessage string
	FirstTime       time.Time
	LastTime        time.Time

	path  string
	mtime time.Time
}

// bestCwd picks the working directory by signal strength: the live turn
// context beats the environment block, which beats session metadata.
func (cp *codexParse) bestCwd() string {
	if cp.TurnCwd != "" {
		return cp.TurnCwd
	}
	if cp.EnvCwd != "" {
		return cp.EnvCwd
	}
	return cp.MetaCwd
}

type codexEnvelope struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

func parseCodexRollout(path string, tailBytes int64) (*codexParse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	seeked := false
	if tailBytes > 0 && info.Size() > tailBytes {
		if _, err := f.Seek(info.Size()-tailBytes, io.SeekStart); err != nil {
			return nil, err
		}
		seeked = true
	}

	reader := bufio.NewReaderSize(f, 256*1024)
	if seeked {
		if _, err := reader.ReadString('\n'); err != nil {
			return &codexParse{}, nil
		}
	}

	cp := &codexParse{}
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			cp.ingestLine([]byte(line))
		}
		if err != nil {
			break
		}
	}
	return cp, nil
}

func (cp *codexParse) ingestLine(line []byte) {
	var env codexEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return
	}

	ts, ok := parseTimestamp(env.Timestamp)
	if ok {
		if cp.FirstTime.IsZero() {
			cp.FirstTime = ts
		}
		if ts.After(cp.LastTime) {
			cp.LastTime = ts
		}
	}

	switch env.Type {
	case "session_meta":
		var meta struct {
			ID  string `json:"id"`
			Cwd string `json:"cwd"`
		}
		if err := json.Unmarshal(env.Payload, &meta); err == nil {
			if meta.ID != "" {
				cp.SessionID = meta.ID
			}
			if meta.Cwd != "" {
				cp.MetaCwd = meta.Cwd
			}
		}
	case "turn_context":
		var tc struct {
			Cwd   string `json:"cwd"`
			Model string `json:"model"`
		}
		if err := json.Unmarshal(env.Payload, &tc); err == nil {
			if tc.Cwd != "" {
				cp.TurnCwd = tc.Cwd
			}
			if tc.Model != "" {
				cp.Model = tc.Model
			}
		}
	case "event_msg":
		cp.ingestEventMsg(env.Payload, ts)
	case "response_item":
		cp.ingestResponseItem(env.Payload, ts)
	}
}

func (cp *codexParse) ingestEventMsg(payload json.RawMessage, ts time.Time) {
	var ev struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}

	switch ev.Type {
	case "user_message":
		cp.ingestUserText(ev.Message, ts)
	case "agent_message":
		if ev.Message != "" {
			cp.addEvent(status.AssistantMessage, ts)
			cp.LastMessage = Truncate(ev.Message)
		}
	case "agent_reasoning":
		cp.addEvent(status.ReasoningStep, ts)
	case "task_started":
		cp.addEvent(status.TaskStarted, ts)
	case "task_complete":
		cp.addEvent(status.TaskComplete, ts)
	case "turn_aborted":
		cp.addEvent(status.Interrupt, ts)
	}
}

func (cp *codexParse) ingestResponseItem(payload json.RawMessage, ts time.Time) {
	var item struct {
		Type    string `json:"type"`
		Role    string `json:"role"`
		Name    string `json:"name"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(payload, &item); err != nil {
		return
	}

	switch item.Type {
	case "message":
		var text string
		for _, c := range item.Content {
			if c.Type == "input_text" || c.Type == "output_text" || c.Type == "text" {
				if text != "" && c.Text != "" {
					text += "\n"
				}
				text += c.Text
			}
		}
		switch item.Role {
		case "user":
			cp.ingestUserText(text, ts)
		case "assistant":
			if text != "" {
				cp.addEvent(status.AssistantMessage, ts)
				cp.LastMessage = Truncate(text)
			}
		}
	case "function_call":
		cp.addEvent(status.ToolCall, ts)
	case "function_call_output":
		cp.addEvent(status.ToolResult, ts)
	case "reasoning":
		cp.addEvent(status.ReasoningStep, ts)
	}
}

// ingestUserText handles a user message, which in Codex transcripts may be
// an injected context block rather than something the user typed.
func (cp *codexParse) ingestUserText(text string, ts time.Time) {
	if text == "" {
		return
	}
	if cwd := extractEnvironmentCwd(text); cwd != "" {
		cp.EnvCwd = cwd
	}
	if isCodexContextBlock(text) {
		return
	}
	if IsSuppressed(text) {
		return
	}
	cp.addEvent(status.UserMessage, ts)
	cp.LastUserMessage = Truncate(text)
	cp.LastMessage = Truncate(text)
}

func (cp *codexParse) addEvent(kind status.EventKind, ts time.Time) {
	cp.Events = append(cp.Events, status.Event{Kind: kind, Time: ts})
}

// isCodexContextBlock reports whether a "user" message is really an
// injected instruction or environment block.
func isCodexContextBlock(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "<environment_context>") ||
		strings.HasPrefix(trimmed, "<permissions") ||
		strings.HasPrefix(trimmed, "<user_instructions>") ||
		strings.HasPrefix(trimmed, "# AGENTS.md instructions")
}

// extractEnvironmentCwd pulls the working directory out of an environment
// context block's <cwd> element.
func extractEnvironmentCwd(text string) string {
	if !strings.Contains(text, "<environment_context>") {
		return ""
	}
	start := strings.Index(text, "<cwd>")
	if start < 0 {
		return ""
	}
	start += len("<cwd>")
	end := strings.Index(text[start:], "</cwd>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(text[start : start+end])
}

// codexSessionIDFromFilename extracts the session UUID from a rollout
// filename of the form rollout-<timestamp>-<uuid>.jsonl.
func codexSessionIDFromFilename(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	if len(base) >= 36 {
		return base[len(base)-36:]
	}
	return base
}
