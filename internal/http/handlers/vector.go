package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wrenkin/repochat-backend/internal/http/response"
	"github.com/wrenkin/repochat-backend/internal/services"
)

type VectorHandler struct {
	indexer services.IndexerService
	search  services.SearchService
}

func NewVectorHandler(indexer services.IndexerService, search services.SearchService) *VectorHandler {
	return &VectorHandler{indexer: indexer, search: search}
}

// POST /api/vectors/index/:owner/:repo
// Kicks off a background indexing run; an already running one is a 409.
func (h *VectorHandler) StartIndexing(c *gin.Context) {
	owner := strings.TrimSpace(c.Param("owner"))
	repo := strings.TrimSpace(c.Param("repo"))

	state, err := h.indexer.StartIndexing(c.Request.Context(), owner, repo)
	if err != nil {
		response.RespondAppError(c, "start_indexing_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message": "indexing started",
		"repo":    state.RepoID(),
		"status":  state.Status,
	})
}

// GET /api/vectors/status
func (h *VectorHandler) Status(c *gin.Context) {
	statuses, err := h.indexer.Status(c.Request.Context())
	if err != nil {
		response.RespondAppError(c, "status_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"repos": statuses})
}

type searchReq struct {
	RepoID string `json:"repoId"`
	Query  string `json:"query"`
}

// POST /api/vectors/search
// body: { "repoId": "owner/name", "query": "..." }
func (h *VectorHandler) Search(c *gin.Context) {
	var req searchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	results, err := h.search.Search(c.Request.Context(), req.RepoID, req.Query)
	if err != nil {
		response.RespondAppError(c, "search_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"results": results})
}

// GET /api/vectors/:owner/:repo
func (h *VectorHandler) ListVectors(c *gin.Context) {
	owner := strings.TrimSpace(c.Param("owner"))
	repo := strings.TrimSpace(c.Param("repo"))

	vectors, err := h.indexer.ListVectors(c.Request.Context(), owner, repo)
	if err != nil {
		response.RespondAppError(c, "list_vectors_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"vectors": vectors})
}

// DELETE /api/vectors/:owner/:repo
func (h *VectorHandler) DeleteIndex(c *gin.Context) {
	owner := strings.TrimSpace(c.Param("owner"))
	repo := strings.TrimSpace(c.Param("repo"))

	if err := h.indexer.DeleteIndex(c.Request.Context(), owner, repo); err != nil {
		response.RespondAppError(c, "delete_index_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "repository index deleted"})
}

// POST /api/vectors/reset
// Drops every vector and index state the user owns.
func (h *VectorHandler) ResetAll(c *gin.Context) {
	if err := h.indexer.ResetAll(c.Request.Context()); err != nil {
		response.RespondAppError(c, "reset_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "index data reset"})
}
