package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docchat/internal/gateway"
	"docchat/internal/transport/http/response"
)

type QueryRequest struct {
	Query string `json:"query"`
}

// IndexHandler exposes the index service directly.
type IndexHandler struct {
	index gateway.Index
}

func NewIndexHandler(index gateway.Index) *IndexHandler {
	return &IndexHandler{index: index}
}

func (h *IndexHandler) Index(c *gin.Context) {
	name := strings.TrimSpace(c.Query("file_name"))
	if name == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file_name is required")
		return
	}

	if err := h.index.IndexByName(c.Request.Context(), name); err != nil {
		response.ErrorWithCause(c, http.StatusInternalServerError, response.CodeIndexFailed, "Error indexing document", err)
		return
	}
	response.Message(c, "Document indexed successfully", gin.H{"file_name": name})
}

func (h *IndexHandler) Delete(c *gin.Context) {
	name := strings.TrimSpace(c.Query("file_name"))
	if name == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file_name is required")
		return
	}

	err := h.index.RemoveByName(c.Request.Context(), name)
	if err != nil && !errors.Is(err, gateway.ErrNotIndexed) {
		response.ErrorWithCause(c, http.StatusInternalServerError, response.CodeIndexFailed, "Error deleting indexes", err)
		return
	}
	response.Message(c, "Deleted indexes for "+name, nil)
}

func (h *IndexHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "query is required")
		return
	}

	answer, err := h.index.Query(c.Request.Context(), strings.TrimSpace(req.Query))
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrNotIndexed):
			response.ErrorWithCause(c, http.StatusInternalServerError, response.CodeNotIndexed, "No documents have been indexed yet", err)
		default:
			response.ErrorWithCause(c, http.StatusInternalServerError, response.CodeInternalServer, "Error retrieving response", err)
		}
		return
	}
	response.OK(c, gin.H{"response": answer})
}
