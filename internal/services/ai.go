package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/wrenkin/repochat-backend/internal/pkg/apperr"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
	"github.com/wrenkin/repochat-backend/internal/platform/gemini"
)

// AIService exposes the one-shot code assistance operations. Unlike the
// chat path these are stateless; nothing is persisted or broadcast.
type AIService interface {
	// AnalyzeCode reviews a snippet and points out potential improvements.
	AnalyzeCode(ctx context.Context, code string) (string, error)

	// SuggestCode drafts code for a plain-language description.
	SuggestCode(ctx context.Context, description string) (string, error)

	// FixCode proposes a correction for code that produced the given error.
	FixCode(ctx context.Context, code, errorText string) (string, error)
}

type aiService struct {
	log *logger.Logger
	ai  gemini.Client
}

func NewAIService(baseLog *logger.Logger, ai gemini.Client) AIService {
	return &aiService{
		log: baseLog.With("service", "AIService"),
		ai:  ai,
	}
}

func (as *aiService) AnalyzeCode(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%w: empty code", apperr.ErrInvalidArgument)
	}
	prompt := "Analyze the following code and suggest potential improvements:\n\n" + code
	out, err := as.ai.GenerateText(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("analyze code: %w", err)
	}
	return out, nil
}

func (as *aiService) SuggestCode(ctx context.Context, description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", fmt.Errorf("%w: empty description", apperr.ErrInvalidArgument)
	}
	prompt := "Write code for the following description:\n\n" + description
	out, err := as.ai.GenerateText(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("suggest code: %w", err)
	}
	return out, nil
}

func (as *aiService) FixCode(ctx context.Context, code, errorText string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%w: empty code", apperr.ErrInvalidArgument)
	}
	prompt := "Fix the error in the following code.\n\nCode:\n" + code
	if errorText = strings.TrimSpace(errorText); errorText != "" {
		prompt += "\n\nError:\n" + errorText
	}
	out, err := as.ai.GenerateText(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("fix code: %w", err)
	}
	return out, nil
}
