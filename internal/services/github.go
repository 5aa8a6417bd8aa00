package services

import (
	"context"
	"fmt"

	"github.com/wrenkin/repochat-backend/internal/pkg/apperr"
	"github.com/wrenkin/repochat-backend/internal/pkg/ctxutil"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
	ghplatform "github.com/wrenkin/repochat-backend/internal/platform/github"
)

type GithubService interface {
	ListRepos(ctx context.Context) ([]ghplatform.Repo, error)
}

type githubService struct {
	log       *logger.Logger
	ghFactory ghplatform.Factory
}

func NewGithubService(baseLog *logger.Logger, ghFactory ghplatform.Factory) GithubService {
	return &githubService{
		log:       baseLog.With("service", "GithubService"),
		ghFactory: ghFactory,
	}
}

func (gs *githubService) ListRepos(ctx context.Context) ([]ghplatform.Repo, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.GithubToken == "" {
		return nil, apperr.ErrUnauthorized
	}

	repos, err := gs.ghFactory.ForToken(rd.GithubToken).ListUserRepos(ctx)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	return repos, nil
}
