package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wrenkin/repochat-backend/internal/http/response"
	"github.com/wrenkin/repochat-backend/internal/services"
)

type AuthHandler struct {
	auth services.AuthService
}

func NewAuthHandler(auth services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginReq struct {
	GithubToken string `json:"github_token"`
}

// POST /api/auth/login
// body: { "github_token": "gho_..." }
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	token, user, err := h.auth.Login(c.Request.Context(), req.GithubToken)
	if err != nil {
		response.RespondAppError(c, "login_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"token": token, "user": user})
}
