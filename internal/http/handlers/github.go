package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/wrenkin/repochat-backend/internal/http/response"
	"github.com/wrenkin/repochat-backend/internal/services"
)

type GithubHandler struct {
	github services.GithubService
}

func NewGithubHandler(github services.GithubService) *GithubHandler {
	return &GithubHandler{github: github}
}

// GET /api/github/repos
func (h *GithubHandler) ListRepos(c *gin.Context) {
	repos, err := h.github.ListRepos(c.Request.Context())
	if err != nil {
		response.RespondAppError(c, "list_repos_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"repos": repos})
}
