package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentdeck/agentdeck/internal/procs"
	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/agentdeck/agentdeck/internal/status"
)

// OpenCodeDetector finds OpenCode sessions from its structured store: one
// JSON document per project, session, message and message part, queryable
// by most-recent update.
type OpenCodeDetector struct {
	Root string
}

// ocEventLimit bounds how many trailing messages feed status inference.
const ocEventLimit = 20

func NewOpenCodeDetector(root string) *OpenCodeDetector {
	if root == "" {
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			home, _ := os.UserHomeDir()
			dataHome = filepath.Join(home, ".local", "share")
		}
		root = filepath.Join(dataHome, "opencode", "storage")
	}
	return &OpenCodeDetector{Root: root}
}

func (d *OpenCodeDetector) Agent() session.Agent { return session.OpenCode }

func (d *OpenCodeDetector) Matches(p procs.ProcessSnapshot) bool {
	if len(p.Cmdline) == 0 {
		return false
	}
	exe := filepath.Base(p.Cmdline[0])
	if exe == "opencode" {
		return true
	}
	if exe == "node" || exe == "bun" {
		for _, arg := range p.Cmdline[1:] {
			if strings.Contains(arg, "opencode") && !strings.Contains(arg, "node_modules/.bin") {
				return true
			}
		}
	}
	return false
}

type ocProject struct {
	ID       string `json:"id"`
	Worktree string `json:"worktree"`
}

type ocSession struct {
	ID        string `json:"id"`
	Directory string `json:"directory"`
	Title     string `json:"title"`
	Time      struct {
		Created int64 `json:"created"`
		Updated int64 `json:"updated"`
	} `json:"time"`
}

type ocMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	ModelID string `json:"modelID"`
	Time    struct {
		Created   int64 `json:"created"`
		Completed int64 `json:"completed"`
	} `json:"time"`
}

func (d *OpenCodeDetector) Sessions(ctx Context) ([]session.Session, []session.Session, error) {
	list := matching(d, ctx)
	if len(list) == 0 {
		return nil, nil, nil
	}

	projects := d.loadProjects()

	var fg, bg []session.Session
	usedSessions := make(map[string]bool)

	for _, p := range list {
		proj := matchProject(projects, p.WorkingDir)
		var built *session.Session
		if proj != nil {
			if oc := d.latestSession(proj.ID, p.WorkingDir, usedSessions); oc != nil {
				usedSessions[oc.ID] = true
				s := d.buildSession(oc, p, ctx)
				built = &s
			}
		}

		if built != nil {
			fg = append(fg, *built)
			continue
		}

		fb := fallbackSession(session.OpenCode, p, ctx)
		if isBackground(fb) {
			bg = append(bg, fb)
		} else {
			fg = append(fg, fb)
		}
	}

	return fg, bg, nil
}

func (d *OpenCodeDetector) loadProjects() []ocProject {
	entries, err := os.ReadDir(filepath.Join(d.Root, "project"))
	if err != nil {
		return nil
	}

	var out []ocProject
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.Root, "project", e.Name()))
		if err != nil {
			continue
		}
		var proj ocProject
		if err := json.Unmarshal(data, &proj); err != nil || proj.ID == "" {
			continue
		}
		out = append(out, proj)
	}
	return out
}

// matchProject picks the project whose worktree corresponds to the process
// working directory: exact loose match first, then the deepest worktree the
// cwd sits under (worktree sandboxes run in subdirectories).
func matchProject(projects []ocProject, cwd string) *ocProject {
	if cwd == "" {
		return nil
	}

	var prefix *ocProject
	prefixLen := 0
	for i := range projects {
		wt := projects[i].Worktree
		if wt == "" || wt == "/" {
			continue
		}
		if PathsMatchLoose(wt, cwd) {
			return &projects[i]
		}
		if strings.HasPrefix(cwd, strings.TrimSuffix(wt, "/")+"/") && len(wt) > prefixLen {
			prefix = &projects[i]
			prefixLen = len(wt)
		}
	}
	return prefix
}

// latestSession returns the project's most recently updated session whose
// directory matches the process cwd (sessions record the directory they ran
// in; older store versions leave it empty).
func (d *OpenCodeDetector) latestSession(projectID, cwd string, used map[string]bool) *ocSession {
	dir := filepath.Join(d.Root, "session", projectID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var best *ocSession
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var oc ocSession
		if err := json.Unmarshal(data, &oc); err != nil || oc.ID == "" {
			continue
		}
		if used[oc.ID] {
			continue
		}
		if oc.Directory != "" && cwd != "" && !PathsMatchLoose(oc.Directory, cwd) &&
			!strings.HasPrefix(cwd, strings.TrimSuffix(oc.Directory, "/")+"/") {
			continue
		}
		if best == nil || oc.Time.Updated > best.Time.Updated {
			c := oc
			best = &c
		}
	}
	return best
}

func (d *OpenCodeDetector) buildSession(oc *ocSession, p procs.ProcessSnapshot, ctx Context) session.Session {
	messages := d.loadMessages(oc.ID)

	var events []status.Event
	var model, lastMessage, lastUserMessage string

	for i := range messages {
		m := &messages[i]
		created := time.UnixMilli(m.Time.Created)

		switch m.Role {
		case "user":
			text := d.messageText(m.ID)
			if text == "" || IsSuppressed(text) {
				continue
			}
			events = append(events, status.Event{Kind: status.UserMessage, Time: created})
			lastUserMessage = Truncate(text)
			lastMessage = Truncate(text)
		case "assistant":
			if m.ModelID != "" {
				model = m.ModelID
			}
			events = append(events, status.Event{Kind: status.AssistantMessage, Time: created})
			if text := d.messageText(m.ID); text != "" {
				lastMessage = Truncate(text)
			}
			// A completed assistant turn is this store's task-complete
			// signal; there is no separate terminal record.
			if m.Time.Completed > 0 {
				events = append(events, status.Event{Kind: status.TaskComplete, Time: time.UnixMilli(m.Time.Completed)})
			}
		}
	}

	projectPath := oc.Directory
	if projectPath == "" {
		projectPath = p.WorkingDir
	}

	created := time.UnixMilli(oc.Time.Created)
	lastActivity := time.UnixMilli(oc.Time.Updated)
	if len(events) > 0 && events[len(events)-1].Time.After(lastActivity) {
		lastActivity = events[len(events)-1].Time
	}

	return session.Session{
		ID:              oc.ID,
		Agent:           session.OpenCode,
		PID:             p.PID,
		Status:          status.Resolve(events, p.CPUPercent, ctx.Now, ctx.Tuning),
		ProjectPath:     projectPath,
		ProjectName:     ProjectNameFromPath(projectPath),
		Model:           model,
		LastMessage:     lastMessage,
		LastUserMessage: lastUserMessage,
		CreatedAt:       created,
		LastActivityAt:  lastActivity,
		CPUPercent:      p.CPUPercent,
		MemoryBytes:     p.RSS,
	}
}

// loadMessages returns a session's trailing messages in chronological order.
func (d *OpenCodeDetector) loadMessages(sessionID string) []ocMessage {
	dir := filepath.Join(d.Root, "message", sessionID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out []ocMessage
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var m ocMessage
		if err := json.Unmarshal(data, &m); err != nil || m.ID == "" {
			continue
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Time.Created < out[j].Time.Created })
	if len(out) > ocEventLimit {
		out = out[len(out)-ocEventLimit:]
	}
	return out
}

// messageText assembles display text from a message's parts: text parts
// preferred, reasoning as fallback, injected system/XML prompts skipped.
func (d *OpenCodeDetector) messageText(messageID string) string {
	dir := filepath.Join(d.Root, "part", messageID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var text, reasoning string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var part struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &part); err != nil {
			continue
		}
		trimmed := strings.TrimSpace(part.Text)
		if trimmed == "" || strings.HasPrefix(trimmed, "<") {
			continue
		}
		switch part.Type {
		case "text":
			if text != "" {
				text += "\n"
			}
			text += trimmed
		case "reasoning":
			if reasoning == "" {
				reasoning = trimmed
			}
		}
	}

	if text != "" {
		return text
	}
	return reasoning
}
