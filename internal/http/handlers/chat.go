package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wrenkin/repochat-backend/internal/http/response"
	"github.com/wrenkin/repochat-backend/internal/pkg/ctxutil"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
	"github.com/wrenkin/repochat-backend/internal/realtime"
	"github.com/wrenkin/repochat-backend/internal/services"
)

type ChatHandler struct {
	log  *logger.Logger
	chat services.ChatService
	hub  *realtime.SSEHub
}

func NewChatHandler(log *logger.Logger, chat services.ChatService, hub *realtime.SSEHub) *ChatHandler {
	return &ChatHandler{
		log:  log.With("handler", "ChatHandler"),
		chat: chat,
		hub:  hub,
	}
}

// GET /api/chat/stream
// Opens the SSE stream. The backlog goes out as the first event so a
// reconnecting client repaints without a separate history fetch.
func (h *ChatHandler) Stream(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	client := h.hub.NewSSEClient(rd.UserID)
	h.log.Info("Chat stream open", "user_id", rd.UserID.String(), "client_id", client.ID.String())

	history, err := h.chat.History(c.Request.Context())
	if err != nil {
		h.log.Warn("Failed to load chat history for stream", "user_id", rd.UserID.String(), "error", err)
	} else {
		h.hub.Send(client, realtime.SSEMessage{
			Channel: client.Channel,
			Event:   realtime.SSEEventChatHistory,
			Data:    gin.H{"messages": history},
		})
	}

	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.hub.CloseClient(client)
}

type sendMessageReq struct {
	Message     string `json:"message"`
	RepoID      string `json:"repoId"`
	SearchQuery string `json:"searchQuery"`
}

// POST /api/chat/messages
// body: { "message": "...", "repoId": "owner/name", "searchQuery": "..." }
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	msg, err := h.chat.Send(c.Request.Context(), req.Message, req.RepoID, req.SearchQuery)
	if err != nil {
		response.RespondAppError(c, "send_message_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": msg})
}

// POST /api/chat/typing
func (h *ChatHandler) Typing(c *gin.Context) {
	if err := h.chat.Typing(c.Request.Context()); err != nil {
		response.RespondAppError(c, "typing_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
