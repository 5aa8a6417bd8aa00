package realtime

import "github.com/google/uuid"

type SSEEvent string

const (
	SSEEventChatHistory SSEEvent = "ChatHistory"
	SSEEventChatMessage SSEEvent = "ChatMessage"
	SSEEventChatTyping  SSEEvent = "ChatTyping"
	SSEEventChatError   SSEEvent = "ChatError"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// ChatChannel is the per-user channel chat events are published on.
func ChatChannel(userID uuid.UUID) string {
	return "chat:" + userID.String()
}
