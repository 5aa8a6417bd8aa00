package app

import (
	"gorm.io/gorm"

	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
	"github.com/wrenkin/repochat-backend/internal/realtime"
	"github.com/wrenkin/repochat-backend/internal/services"
)

type Services struct {
	Auth    services.AuthService
	User    services.UserService
	Github  services.GithubService
	Indexer services.IndexerService
	Search  services.SearchService
	Chat    services.ChatService
	AI      services.AIService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, sseHub *realtime.SSEHub) Services {
	log.Info("Wiring services...")
	return Services{
		Auth:    services.NewAuthService(db, log, repos.User, clients.Github, cfg.JWTSecretKey, cfg.TokenTTL),
		User:    services.NewUserService(db, log, repos.User),
		Github:  services.NewGithubService(log, clients.Github),
		Indexer: services.NewIndexerService(db, log, repos.IndexState, repos.Vector, clients.Github, clients.Gemini),
		Search:  services.NewSearchService(db, log, repos.Vector, clients.Gemini),
		Chat:    services.NewChatService(db, log, repos.ChatMessage, repos.Vector, clients.Gemini, sseHub, clients.ChatBus),
		AI:      services.NewAIService(log, clients.Gemini),
	}
}
