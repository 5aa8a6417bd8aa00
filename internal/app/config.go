package app

import (
	"time"

	"github.com/wrenkin/repochat-backend/internal/observability"
	"github.com/wrenkin/repochat-backend/internal/pkg/envutil"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
)

type Config struct {
	ServiceName    string
	JWTSecretKey   string
	TokenTTL       time.Duration
	AllowedOrigins string
	TracingEnabled bool
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	tokenTTLSeconds := envutil.GetEnvAsInt("TOKEN_TTL", 86400, log)
	return Config{
		ServiceName:    envutil.GetEnv("SERVICE_NAME", "repochat", log),
		JWTSecretKey:   jwtSecretKey,
		TokenTTL:       time.Duration(tokenTTLSeconds) * time.Second,
		AllowedOrigins: envutil.GetEnv("CORS_ALLOWED_ORIGINS", "", log),
		TracingEnabled: observability.Enabled(),
	}
}
