package domain

import (
	"github.com/wrenkin/repochat-backend/internal/domain/chat"
	"github.com/wrenkin/repochat-backend/internal/domain/index"
	"github.com/wrenkin/repochat-backend/internal/domain/user"
)

type (
	User = user.User

	RepoIndexState = index.RepoIndexState
	VectorRecord   = index.VectorRecord

	ChatMessage = chat.ChatMessage
)

const (
	IndexStatusPending   = index.StatusPending
	IndexStatusIndexing  = index.StatusIndexing
	IndexStatusCompleted = index.StatusCompleted
	IndexStatusError     = index.StatusError

	ChatKindUser      = chat.KindUser
	ChatKindAssistant = chat.KindAssistant
)

var EncodeVector = index.EncodeVector
