package httpapi

import "github.com/agentdeck/agentdeck/internal/session"

type MessageType string

const (
	MsgSessions MessageType = "sessions"
	MsgError    MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type SessionsPayload struct {
	Result session.SessionsResult `json:"result"`
}
