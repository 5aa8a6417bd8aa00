package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wrenkin/repochat-backend/internal/http/response"
	"github.com/wrenkin/repochat-backend/internal/services"
)

type AIHandler struct {
	ai services.AIService
}

func NewAIHandler(ai services.AIService) *AIHandler {
	return &AIHandler{ai: ai}
}

type analyzeCodeReq struct {
	Code string `json:"code"`
}

// POST /api/ai/analyze
// body: { "code": "..." }
func (h *AIHandler) Analyze(c *gin.Context) {
	var req analyzeCodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	analysis, err := h.ai.AnalyzeCode(c.Request.Context(), req.Code)
	if err != nil {
		response.RespondAppError(c, "analyze_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"analysis": analysis})
}

type suggestCodeReq struct {
	Description string `json:"description"`
}

// POST /api/ai/suggest
// body: { "description": "..." }
func (h *AIHandler) Suggest(c *gin.Context) {
	var req suggestCodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	suggestion, err := h.ai.SuggestCode(c.Request.Context(), req.Description)
	if err != nil {
		response.RespondAppError(c, "suggest_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"suggestion": suggestion})
}

type fixCodeReq struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// POST /api/ai/fix
// body: { "code": "...", "error": "..." }
func (h *AIHandler) Fix(c *gin.Context) {
	var req fixCodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	fix, err := h.ai.FixCode(c.Request.Context(), req.Code, req.Error)
	if err != nil {
		response.RespondAppError(c, "fix_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"fix": fix})
}
