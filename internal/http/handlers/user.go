package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wrenkin/repochat-backend/internal/http/response"
	"github.com/wrenkin/repochat-backend/internal/pkg/ctxutil"
	"github.com/wrenkin/repochat-backend/internal/services"
)

type UserHandler struct {
	users services.UserService
}

func NewUserHandler(users services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// GET /api/me
func (h *UserHandler) GetMe(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	me, err := h.users.GetByID(c.Request.Context(), rd.UserID)
	if err != nil {
		response.RespondAppError(c, "get_me_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"me": me})
}
