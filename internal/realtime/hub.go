package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
)

// SSEHub fans chat events out to the EventSource connections of the
// users they belong to. Channels are always per-user chat channels, so
// clients subscribe once at creation and stay subscribed until closed.
type SSEHub struct {
	mu            sync.RWMutex
	logger        *logger.Logger
	subscriptions map[string]map[*SSEClient]bool
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		logger:        log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*SSEClient]bool),
	}
}

// NewSSEClient creates a connection bound to the user's chat channel and
// registers it with the hub immediately.
func (hub *SSEHub) NewSSEClient(userID uuid.UUID) *SSEClient {
	id := uuid.New()
	client := &SSEClient{
		ID:       id,
		UserID:   userID,
		Channel:  ChatChannel(userID),
		Outbound: make(chan SSEMessage, 10),
		done:     make(chan struct{}),
		Logger:   hub.logger.With("clientID", id),
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	clients, exists := hub.subscriptions[client.Channel]
	if !exists {
		clients = make(map[*SSEClient]bool)
		hub.subscriptions[client.Channel] = clients
	}
	clients[client] = true

	hub.logger.Debug("SSE client connected", "clientID", id, "channel", client.Channel)
	return client
}

func (hub *SSEHub) removeClient(client *SSEClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if subMap, ok := hub.subscriptions[client.Channel]; ok {
		delete(subMap, client)
		if len(subMap) == 0 {
			delete(hub.subscriptions, client.Channel)
		}
	}
	hub.logger.Debug("SSE client disconnected", "clientID", client.ID, "channel", client.Channel)
}

// Broadcast delivers to every subscriber of the message's channel. A
// client whose outbound buffer is full loses the message rather than
// blocking the hub.
func (hub *SSEHub) Broadcast(msg SSEMessage) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if msg.Channel == "" {
		return
	}
	clientsMap, ok := hub.subscriptions[msg.Channel]
	if !ok {
		return
	}
	for c := range clientsMap {
		select {
		case c.Outbound <- msg:
		default:
			hub.logger.Warn("Dropping SSE message; outbound buffer full", "clientID", c.ID)
		}
	}
}

// Send queues a message directly to one client, bypassing channel fanout.
func (hub *SSEHub) Send(client *SSEClient, msg SSEMessage) {
	select {
	case client.Outbound <- msg:
	default:
		hub.logger.Warn("Dropping SSE message; outbound buffer full", "clientID", client.ID)
	}
}

func (hub *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *SSEClient) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.logger.Debug("SSE client context done", "clientID", client.ID, "err", ctx.Err())
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-client.Outbound:
			jsonBytes, err := json.Marshal(msg)
			if err != nil {
				hub.logger.Warn("Failed to marshal SSE message", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: message\n")
			_, _ = fmt.Fprintf(w, "data: %s\n\n", string(jsonBytes))
			flusher.Flush()
		}
	}
}

func (hub *SSEHub) CloseClient(client *SSEClient) {
	close(client.done)
	hub.removeClient(client)
	close(client.Outbound)
}
