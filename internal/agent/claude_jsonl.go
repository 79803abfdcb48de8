package agent

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/agentdeck/agentdeck/internal/status"
)

// transcriptEntry is one line of a Claude transcript. Only the fields the
// engine consumes are declared; unknown fields are ignored.
type transcriptEntry struct {
	Type      string             `json:"type"`
	Timestamp string             `json:"timestamp"`
	SessionID string             `json:"sessionId"`
	Cwd       string             `json:"cwd"`
	GitBranch string             `json:"gitBranch"`
	Message   *transcriptMessage `json:"message"`
}

type transcriptMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Name string `json:"name"`
}

// transcriptParse is the normalized result of reading one transcript tail.
type transcriptParse struct {
	SessionID       string
	Cwd             string
	Branch          string
	Model           string
	Events          []status.Event
	LastMessage     string
	LastUserMessage string
	LastTool        string
	FirstTime       time.Time
	LastTime        time.Time
}

// parseClaudeTranscript reads the last tailBytes of an append-only
// transcript and normalizes it. Large logs are never read in full; the tail
// window is enough for status inference and display text. Malformed lines
// (including a partial first line after seeking, and a partial trailing
// line mid-write) are skipped.
func parseClaudeTranscript(path string, tailBytes int64) (*transcriptParse, error) {
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
		// Discard the partial line the seek landed in.
		if _, err := reader.ReadString('\n'); err != nil {
			return &transcriptParse{}, nil
		}
	}

	result := &transcriptParse{}
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			result.ingestLine([]byte(line))
		}
		if err != nil {
			break
		}
	}

	return result, nil
}

func (r *transcriptParse) ingestLine(line []byte) {
	var entry transcriptEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		return
	}

	ts, ok := parseTimestamp(entry.Timestamp)
	if ok {
		if r.FirstTime.IsZero() {
			r.FirstTime = ts
		}
		if ts.After(r.LastTime) {
			r.LastTime = ts
		}
	}

	if entry.SessionID != "" {
		r.SessionID = entry.SessionID
	}
	if entry.Cwd != "" {
		r.Cwd = entry.Cwd
	}
	if entry.GitBranch != "" {
		r.Branch = entry.GitBranch
	}

	switch entry.Type {
	case "user":
		r.ingestUser(entry, ts)
	case "assistant":
		r.ingestAssistant(entry, ts)
	case "task_started":
		r.addEvent(status.TaskStarted, ts, "")
	case "task_complete":
		r.addEvent(status.TaskComplete, ts, "")
	}
}

func (r *transcriptParse) ingestUser(entry transcriptEntry, ts time.Time) {
	if entry.Message == nil {
		return
	}

	text, hasToolResult := extractContent(entry.Message.Content)

	switch {
	case text == "" && hasToolResult:
		r.addEvent(status.ToolResult, ts, "")
	case IsInterruptMarker(text):
		r.addEvent(status.Interrupt, ts, "")
	case IsLocalCommandEcho(text):
		// Client-side command echo: neither a trigger nor display text.
	case text != "":
		r.addEvent(status.UserMessage, ts, text)
		r.LastUserMessage = Truncate(text)
		r.LastMessage = Truncate(text)
	}
}

func (r *transcriptParse) ingestAssistant(entry transcriptEntry, ts time.Time) {
	if entry.Message == nil {
		return
	}
	if entry.Message.Model != "" {
		r.Model = entry.Message.Model
	}

	var blocks []contentBlock
	if err := json.Unmarshal(entry.Message.Content, &blocks); err != nil {
		return
	}

	for _, b := range blocks {
		switch b.Type {
		case "thinking":
			r.addEvent(status.ReasoningStep, ts, "")
		case "text":
			if b.Text != "" {
				r.addEvent(status.AssistantMessage, ts, b.Text)
				r.LastMessage = Truncate(b.Text)
			}
		case "tool_use":
			r.addEvent(status.ToolCall, ts, "")
			if b.Name != "" {
				r.LastTool = b.Name
			}
		}
	}
}

func (r *transcriptParse) addEvent(kind status.EventKind, ts time.Time, text string) {
	r.Events = append(r.Events, status.Event{Kind: kind, Time: ts, Text: Truncate(text)})
}

// extractContent handles both content shapes: a bare string, or a block
// array. Returns the concatenated text and whether a tool_result block was
// present.
func extractContent(raw json.RawMessage) (text string, hasToolResult bool) {
	if len(raw) == 0 {
		return "", false
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, false
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", false
	}

	for _, b := range blocks {
		switch b.Type {
		case "text":
			if text != "" && b.Text != "" {
				text += "\n"
			}
			text += b.Text
		case "tool_result":
			hasToolResult = true
		}
	}
	return text, hasToolResult
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
