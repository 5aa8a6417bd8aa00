package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/wrenkin/repochat-backend/internal/http/handlers"
	httpMW "github.com/wrenkin/repochat-backend/internal/http/middleware"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins string
	TracingEnabled bool

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler *httpH.HealthHandler
	AuthHandler   *httpH.AuthHandler
	UserHandler   *httpH.UserHandler
	GithubHandler *httpH.GithubHandler
	VectorHandler *httpH.VectorHandler
	ChatHandler   *httpH.ChatHandler
	AIHandler     *httpH.AIHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingEnabled {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.CORS(cfg.AllowedOrigins))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/auth/login", cfg.AuthHandler.Login)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// User (Me)
		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
		}

		// GitHub
		if cfg.GithubHandler != nil {
			protected.GET("/github/repos", cfg.GithubHandler.ListRepos)
		}

		// Vectors
		if cfg.VectorHandler != nil {
			protected.POST("/vectors/index/:owner/:repo", cfg.VectorHandler.StartIndexing)
			protected.GET("/vectors/status", cfg.VectorHandler.Status)
			protected.POST("/vectors/search", cfg.VectorHandler.Search)
			protected.POST("/vectors/reset", cfg.VectorHandler.ResetAll)
			protected.GET("/vectors/:owner/:repo", cfg.VectorHandler.ListVectors)
			protected.DELETE("/vectors/:owner/:repo", cfg.VectorHandler.DeleteIndex)
		}

		// Chat (SSE + messages)
		if cfg.ChatHandler != nil {
			protected.GET("/chat/stream", cfg.ChatHandler.Stream)
			protected.POST("/chat/messages", cfg.ChatHandler.SendMessage)
			protected.POST("/chat/typing", cfg.ChatHandler.Typing)
		}

		// One-shot code assistance
		if cfg.AIHandler != nil {
			protected.POST("/ai/analyze", cfg.AIHandler.Analyze)
			protected.POST("/ai/suggest", cfg.AIHandler.Suggest)
			protected.POST("/ai/fix", cfg.AIHandler.Fix)
		}
	}

	return r
}
