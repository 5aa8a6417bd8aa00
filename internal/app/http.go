package app

import (
	apphttp "github.com/wrenkin/repochat-backend/internal/http"
	httpH "github.com/wrenkin/repochat-backend/internal/http/handlers"
	httpMW "github.com/wrenkin/repochat-backend/internal/http/middleware"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
	"github.com/wrenkin/repochat-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health *httpH.HealthHandler
	Auth   *httpH.AuthHandler
	User   *httpH.UserHandler
	Github *httpH.GithubHandler
	Vector *httpH.VectorHandler
	Chat   *httpH.ChatHandler
	AI     *httpH.AIHandler
}

func wireHandlers(log *logger.Logger, services Services, sseHub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(),
		Auth:   httpH.NewAuthHandler(services.Auth),
		User:   httpH.NewUserHandler(services.User),
		Github: httpH.NewGithubHandler(services.Github),
		Vector: httpH.NewVectorHandler(services.Indexer, services.Search),
		Chat:   httpH.NewChatHandler(log, services.Chat, sseHub),
		AI:     httpH.NewAIHandler(services.AI),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *apphttp.Server {
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:            log,
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: cfg.AllowedOrigins,
		TracingEnabled: cfg.TracingEnabled,
		AuthMiddleware: middleware.Auth,
		HealthHandler:  handlers.Health,
		AuthHandler:    handlers.Auth,
		UserHandler:    handlers.User,
		GithubHandler:  handlers.Github,
		VectorHandler:  handlers.Vector,
		ChatHandler:    handlers.Chat,
		AIHandler:      handlers.AI,
	})
}
