package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/google/uuid"

	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
	"github.com/wrenkin/repochat-backend/internal/realtime"
)

// chatEnvelope is the wire form of a chat event on the redis channel.
// The channel name is derived from the user ID on the receiving side so
// instances never have to agree on channel string formatting.
type chatEnvelope struct {
	UserID uuid.UUID         `json:"user_id"`
	Event  realtime.SSEEvent `json:"event"`
	Data   json.RawMessage   `json:"data,omitempty"`
	SentAt time.Time         `json:"sent_at"`
}

var knownChatEvents = map[realtime.SSEEvent]bool{
	realtime.SSEEventChatHistory: true,
	realtime.SSEEventChatMessage: true,
	realtime.SSEEventChatTyping:  true,
	realtime.SSEEventChatError:   true,
}

// decodeChatEvent turns a raw bus payload into the hub message form,
// rebuilding the channel from the user ID.
func decodeChatEvent(payload []byte) (realtime.SSEMessage, error) {
	var env chatEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return realtime.SSEMessage{}, fmt.Errorf("decode chat payload: %w", err)
	}
	if env.UserID == uuid.Nil {
		return realtime.SSEMessage{}, fmt.Errorf("chat event without a user")
	}
	if !knownChatEvents[env.Event] {
		return realtime.SSEMessage{}, fmt.Errorf("unknown chat event %q", env.Event)
	}
	var data any
	if len(env.Data) > 0 {
		data = env.Data
	}
	return realtime.SSEMessage{
		Channel: realtime.ChatChannel(env.UserID),
		Event:   env.Event,
		Data:    data,
	}, nil
}

type redisChatBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisChatBus connects to REDIS_ADDR so chat events raised on one
// instance reach clients streaming from another. Callers treat a missing
// REDIS_ADDR as "single instance" and run without a bus.
func NewRedisChatBus(log *logger.Logger) (ChatBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHAT_CHANNEL"))
	if ch == "" {
		ch = "chat-events"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisChatBus{
		log:     log.With("service", "RedisChatBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *redisChatBus) PublishChat(ctx context.Context, userID uuid.UUID, event realtime.SSEEvent, data any) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis chat bus not initialized")
	}
	if userID == uuid.Nil {
		return fmt.Errorf("chat event requires a user")
	}
	if !knownChatEvents[event] {
		return fmt.Errorf("unknown chat event %q", event)
	}

	var payload json.RawMessage
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal chat payload: %w", err)
		}
		payload = raw
	}

	raw, err := json.Marshal(chatEnvelope{
		UserID: userID,
		Event:  event,
		Data:   payload,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisChatBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis chat bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				msg, err := decodeChatEvent([]byte(m.Payload))
				if err != nil {
					b.log.Warn("dropping bad chat bus payload", "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()

	return nil
}

func (b *redisChatBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
