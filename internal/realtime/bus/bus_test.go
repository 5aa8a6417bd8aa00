package bus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wrenkin/repochat-backend/internal/realtime"
)

func TestDecodeChatEventRebuildsChannel(t *testing.T) {
	userID := uuid.New()
	raw, err := json.Marshal(chatEnvelope{
		UserID: userID,
		Event:  realtime.SSEEventChatMessage,
		Data:   json.RawMessage(`{"text":"hi"}`),
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	msg, err := decodeChatEvent(raw)
	if err != nil {
		t.Fatalf("decodeChatEvent: %v", err)
	}
	if msg.Channel != realtime.ChatChannel(userID) {
		t.Fatalf("channel: want=%s got=%s", realtime.ChatChannel(userID), msg.Channel)
	}
	if msg.Event != realtime.SSEEventChatMessage {
		t.Fatalf("event: got %s", msg.Event)
	}
	if msg.Data == nil {
		t.Fatalf("payload lost in transit")
	}
}

func TestDecodeChatEventRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `{{`,
		"missing user":  `{"event":"ChatMessage"}`,
		"unknown event": `{"user_id":"` + uuid.NewString() + `","event":"RepoIndexed"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := decodeChatEvent([]byte(payload)); err == nil {
				t.Fatalf("expected decode error for %q", payload)
			}
		})
	}
}
