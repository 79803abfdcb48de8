package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"log"
	"sync"
	"time"

	"github.com/agentdeck/agentdeck/internal/gitx"
	"github.com/agentdeck/agentdeck/internal/session"
)

// ProjectGroup is one project's slice of the viewer payload: its sessions
// plus diff-stat decoration.
type ProjectGroup struct {
	Path      string            `json:"path"`
	Name      string            `json:"name"`
	Branch    string            `json:"branch,omitempty"`
	DiffStats gitx.DiffStats    `json:"diffStats"`
	Sessions  []session.Session `json:"sessions"`
}

// Payload is one line of the engine→viewer stream.
type Payload struct {
	Projects     []ProjectGroup `json:"projects"`
	TotalCount   int            `json:"totalCount"`
	WaitingCount int            `json:"waitingCount"`
	GeneratedAt  time.Time      `json:"generatedAt"`
}

// controlMessage is the alternate line shape legal in either direction of
// the stream.
type controlMessage struct {
	Command   string `json:"command"`
	IsVisible *bool  `json:"isVisible,omitempty"`
}

// actionMessage is one viewer→engine request.
type actionMessage struct {
	Action      string `json:"action"`
	PID         int    `json:"pid"`
	ProjectPath string `json:"projectPath"`
}

// ActionHandler receives requests sent back by the viewer process.
type ActionHandler interface {
	FocusSession(pid int, projectPath string) error
	EndSession(pid int) error
}

// Publisher writes the line-delimited JSON stream consumed by the floating
// viewer: one payload object per line, with setVisibility control lines
// interleaved. While the viewer reports itself hidden, payloads are
// skipped; the viewer repaints from the next payload after reappearing.
type Publisher struct {
	mu      sync.Mutex
	enc     *json.Encoder
	visible bool
	diff    func(dir string) gitx.DiffStats
}

func NewPublisher(w io.Writer, diff func(string) gitx.DiffStats) *Publisher {
	if diff == nil {
		diff = func(string) gitx.DiffStats { return gitx.DiffStats{} }
	}
	return &Publisher{
		enc:     json.NewEncoder(w),
		visible: true,
		diff:    diff,
	}
}

// Publish groups a result by project and writes it as one line.
func (p *Publisher) Publish(result session.SessionsResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.visible {
		return nil
	}
	return p.enc.Encode(p.buildPayload(result))
}

// SetVisibility records the viewer's visibility and forwards the control
// line downstream.
func (p *Publisher) SetVisibility(visible bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.visible = visible
	v := visible
	return p.enc.Encode(controlMessage{Command: "setVisibility", IsVisible: &v})
}

func (p *Publisher) buildPayload(result session.SessionsResult) Payload {
	var order []string
	groups := make(map[string]*ProjectGroup)

	for _, s := range result.Sessions {
		path := s.ProjectPath
		g, ok := groups[path]
		if !ok {
			g = &ProjectGroup{
				Path:      path,
				Name:      s.ProjectName,
				Branch:    s.Branch,
				DiffStats: p.diff(path),
			}
			groups[path] = g
			order = append(order, path)
		}
		g.Sessions = append(g.Sessions, s)
	}

	payload := Payload{
		TotalCount:   result.TotalCount,
		WaitingCount: result.WaitingCount,
		GeneratedAt:  result.GeneratedAt,
	}
	for _, path := range order {
		payload.Projects = append(payload.Projects, *groups[path])
	}
	return payload
}

// ReadLoop consumes the viewer's reply stream line by line, dispatching
// actions and visibility changes. Malformed lines are logged and skipped.
// Returns when the reader closes.
func (p *Publisher) ReadLoop(r io.Reader, h ActionHandler) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.handleLine(scanner.Bytes(), h)
	}
}

func (p *Publisher) handleLine(line []byte, h ActionHandler) {
	if len(line) == 0 {
		return
	}

	var ctrl controlMessage
	if err := json.Unmarshal(line, &ctrl); err == nil && ctrl.Command == "setVisibility" && ctrl.IsVisible != nil {
		p.mu.Lock()
		p.visible = *ctrl.IsVisible
		p.mu.Unlock()
		return
	}

	var act actionMessage
	if err := json.Unmarshal(line, &act); err != nil || act.Action == "" {
		log.Printf("[stream] ignoring malformed line: %.120s", line)
		return
	}

	var err error
	switch act.Action {
	case "focusSession":
		err = h.FocusSession(act.PID, act.ProjectPath)
	case "endSession":
		err = h.EndSession(act.PID)
	default:
		log.Printf("[stream] unknown action %q", act.Action)
		return
	}
	if err != nil {
		log.Printf("[stream] action %s failed: %v", act.Action, err)
	}
}
