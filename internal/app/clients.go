package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
	"github.com/wrenkin/repochat-backend/internal/platform/gemini"
	ghplatform "github.com/wrenkin/repochat-backend/internal/platform/github"
	"github.com/wrenkin/repochat-backend/internal/realtime/bus"
)

type Clients struct {
	Gemini  gemini.Client
	Github  ghplatform.Factory
	ChatBus bus.ChatBus
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis bus is optional; without it chat fanout stays single-instance.
	var chatBus bus.ChatBus
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		b, err := bus.NewRedisChatBus(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis chat bus: %w", err)
		}
		chatBus = b
	}

	geminiClient, err := gemini.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init gemini client: %w", err)
	}

	return Clients{
		Gemini:  geminiClient,
		Github:  ghplatform.NewFactory(log),
		ChatBus: chatBus,
	}, nil
}
