package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	chatrepo "github.com/wrenkin/repochat-backend/internal/data/repos/chat"
	indexrepo "github.com/wrenkin/repochat-backend/internal/data/repos/index"
	types "github.com/wrenkin/repochat-backend/internal/domain"
	"github.com/wrenkin/repochat-backend/internal/indexing"
	"github.com/wrenkin/repochat-backend/internal/pkg/apperr"
	"github.com/wrenkin/repochat-backend/internal/pkg/ctxutil"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
	"github.com/wrenkin/repochat-backend/internal/platform/gemini"
	"github.com/wrenkin/repochat-backend/internal/realtime"
	"github.com/wrenkin/repochat-backend/internal/realtime/bus"
)

const (
	historyLimit     = 50
	promptHistory    = 10
	chatContextLimit = 3
	assistantName    = "AI Assistant"
)

type ChatService interface {
	// History returns the user's last messages, oldest first.
	History(ctx context.Context) ([]*types.ChatMessage, error)

	// Send persists the user message, answers it with the provider, and
	// broadcasts both over the realtime hub. When repoID and searchQuery
	// are set, the top matching indexed files are fed to the provider as
	// context; a missing index degrades to a plain chat.
	Send(ctx context.Context, text, repoID, searchQuery string) (*types.ChatMessage, error)

	// Typing broadcasts a typing notification. Nothing is persisted.
	Typing(ctx context.Context) error
}

type chatService struct {
	db          *gorm.DB
	log         *logger.Logger
	messageRepo chatrepo.ChatMessageRepo
	vectorRepo  indexrepo.VectorRepo
	ai          gemini.Client
	hub         *realtime.SSEHub
	bus         bus.ChatBus
}

func NewChatService(
	db *gorm.DB,
	baseLog *logger.Logger,
	messageRepo chatrepo.ChatMessageRepo,
	vectorRepo indexrepo.VectorRepo,
	ai gemini.Client,
	hub *realtime.SSEHub,
	chatBus bus.ChatBus,
) ChatService {
	return &chatService{
		db:          db,
		log:         baseLog.With("service", "ChatService"),
		messageRepo: messageRepo,
		vectorRepo:  vectorRepo,
		ai:          ai,
		hub:         hub,
		bus:         chatBus,
	}
}

// emit fans a chat event out through the redis bus when one is
// configured, so other instances' hubs see it too; the forwarder loops
// it back to the local hub. Without a bus the hub gets it directly.
func (cs *chatService) emit(ctx context.Context, userID uuid.UUID, event realtime.SSEEvent, data any) {
	if cs.bus != nil {
		if err := cs.bus.PublishChat(ctx, userID, event, data); err == nil {
			return
		} else {
			cs.log.Warn("Bus publish failed; falling back to local hub", "error", err)
		}
	}
	cs.hub.Broadcast(realtime.SSEMessage{
		Channel: realtime.ChatChannel(userID),
		Event:   event,
		Data:    data,
	})
}

func (cs *chatService) History(ctx context.Context) ([]*types.ChatMessage, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return nil, apperr.ErrUnauthorized
	}
	return cs.messageRepo.ListRecentByUser(ctx, nil, rd.UserID, historyLimit)
}

func (cs *chatService) Send(ctx context.Context, text, repoID, searchQuery string) (*types.ChatMessage, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return nil, apperr.ErrUnauthorized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty message", apperr.ErrInvalidArgument)
	}

	userMsg, err := cs.messageRepo.Create(ctx, nil, &types.ChatMessage{
		UserID:   rd.UserID,
		Username: rd.Username,
		Text:     text,
		Kind:     types.ChatKindUser,
	})
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	cs.emit(ctx, rd.UserID, realtime.SSEEventChatMessage, userMsg)

	contextBlock := cs.retrieveContext(ctx, rd.UserID, repoID, searchQuery)

	history, err := cs.promptHistory(ctx, rd.UserID, userMsg.ID)
	if err != nil {
		cs.log.Warn("Failed to load prompt history; answering without it", "error", err)
		history = nil
	}

	prompt := text
	if contextBlock != "" {
		prompt = contextBlock + "\n\nUser question: " + text
	}

	answer, err := cs.ai.Chat(ctx, history, prompt)
	if err != nil {
		// The user's message stays; the client is told the answer failed.
		cs.emit(ctx, rd.UserID, realtime.SSEEventChatError, map[string]any{"message": "failed to generate a response"})
		return nil, fmt.Errorf("generate response: %w", err)
	}

	assistantMsg, err := cs.messageRepo.Create(ctx, nil, &types.ChatMessage{
		UserID:   rd.UserID,
		Username: assistantName,
		Text:     answer,
		Kind:     types.ChatKindAssistant,
	})
	if err != nil {
		return nil, fmt.Errorf("persist response: %w", err)
	}
	cs.emit(ctx, rd.UserID, realtime.SSEEventChatMessage, assistantMsg)

	return assistantMsg, nil
}

// retrieveContext embeds the search query and folds the closest indexed
// files into a context block. Any failure here degrades to "" so the
// chat still answers without repository context.
func (cs *chatService) retrieveContext(ctx context.Context, userID uuid.UUID, repoID, searchQuery string) string {
	if repoID == "" || searchQuery == "" {
		return ""
	}

	queryVector, err := cs.ai.Embed(ctx, searchQuery)
	if err != nil {
		cs.log.Warn("Context query embedding failed", "repo_id", repoID, "error", err)
		return ""
	}

	records, err := cs.vectorRepo.ListByUserRepo(ctx, nil, userID, repoID)
	if err != nil {
		cs.log.Warn("Context vector load failed", "repo_id", repoID, "error", err)
		return ""
	}
	matches := indexing.Rank(queryVector, records, chatContextLimit)
	if len(matches) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant file contents:\n")
	for _, m := range matches {
		b.WriteString(m.Record.FilePath)
		b.WriteString(":\n")
		b.WriteString(m.Record.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// promptHistory converts the last stored messages into provider turns,
// excluding the message currently being answered.
func (cs *chatService) promptHistory(ctx context.Context, userID, excludeID uuid.UUID) ([]gemini.Turn, error) {
	msgs, err := cs.messageRepo.ListRecentByUser(ctx, nil, userID, promptHistory)
	if err != nil {
		return nil, err
	}

	turns := make([]gemini.Turn, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == excludeID {
			continue
		}
		role := "user"
		if m.Kind == types.ChatKindAssistant {
			role = "model"
		}
		turns = append(turns, gemini.Turn{Role: role, Text: m.Text})
	}
	return turns, nil
}

func (cs *chatService) Typing(ctx context.Context) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return apperr.ErrUnauthorized
	}
	cs.emit(ctx, rd.UserID, realtime.SSEEventChatTyping, map[string]any{"username": rd.Username})
	return nil
}
