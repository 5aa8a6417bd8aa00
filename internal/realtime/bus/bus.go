package bus

import (
	"context"

	"github.com/google/uuid"

	"github.com/wrenkin/repochat-backend/internal/realtime"
)

// ChatBus carries chat events between backend instances. An instance
// publishes to the bus instead of its own hub and relies on the
// forwarder loop, which every instance runs against its local hub, to
// deliver the event back; local and remote delivery share one path.
type ChatBus interface {
	PublishChat(ctx context.Context, userID uuid.UUID, event realtime.SSEEvent, data any) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
