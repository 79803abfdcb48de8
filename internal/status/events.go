package status

import "time"

// EventKind classifies one transcript event after per-agent vocabulary has
// been normalized away. Detectors map their own line formats onto these.
type EventKind int

const (
	UserMessage EventKind = iota
	AssistantMessage
	ToolCall
	ToolResult
	ReasoningStep
	TaskStarted
	TaskComplete
	Interrupt
)

var kindNames = map[EventKind]string{
	UserMessage:      "user_message",
	AssistantMessage: "assistant_message",
	ToolCall:         "tool_call",
	ToolResult:       "tool_result",
	ReasoningStep:    "reasoning_step",
	TaskStarted:      "task_started",
	TaskComplete:     "task_complete",
	Interrupt:        "interrupt",
}

func (k EventKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is one normalized transcript event. Events are ordered by Time;
// detectors append them in file order, which is chronological for the
// append-only transcript formats.
type Event struct {
	Kind EventKind
	Time time.Time
	Text string
}

// isTrigger reports whether the event starts a task the agent should be
// working on.
func (e Event) isTrigger() bool {
	return e.Kind == UserMessage || e.Kind == TaskStarted
}

// isTerminal reports whether the event ends the task in flight.
func (e Event) isTerminal() bool {
	return e.Kind == TaskComplete || e.Kind == Interrupt
}
