package realtime

import (
	"github.com/google/uuid"

	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
)

// SSEClient is one EventSource connection on a user's chat stream. A
// client is bound to its owner's channel for its whole lifetime; a user
// with several tabs open holds several clients on the same channel.
type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channel  string
	Outbound chan SSEMessage
	done     chan struct{}
	Logger   *logger.Logger
}
