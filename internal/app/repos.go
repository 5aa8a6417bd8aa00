package app

import (
	"gorm.io/gorm"

	chatrepo "github.com/wrenkin/repochat-backend/internal/data/repos/chat"
	indexrepo "github.com/wrenkin/repochat-backend/internal/data/repos/index"
	userrepo "github.com/wrenkin/repochat-backend/internal/data/repos/user"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
)

type Repos struct {
	User        userrepo.UserRepo
	IndexState  indexrepo.RepoIndexStateRepo
	Vector      indexrepo.VectorRepo
	ChatMessage chatrepo.ChatMessageRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:        userrepo.NewUserRepo(db, log),
		IndexState:  indexrepo.NewRepoIndexStateRepo(db, log),
		Vector:      indexrepo.NewVectorRepo(db, log),
		ChatMessage: chatrepo.NewChatMessageRepo(db, log),
	}
}
