package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/model"
	"docchat/internal/pkg/pdfcheck"
	"docchat/internal/transport/http/response"
)

// DocumentManager runs orchestrated document tasks.
type DocumentManager interface {
	Upload(ctx context.Context, input app.UploadInput) (*model.UploadTask, error)
	Delete(ctx context.Context, name string) (*model.DeleteTask, error)
	Refresh(ctx context.Context) ([]model.Document, error)
	Documents() []model.Document
}

type DocumentsHandler struct {
	docs     DocumentManager
	maxBytes int64
}

func NewDocumentsHandler(docs DocumentManager, maxBytes int64) *DocumentsHandler {
	return &DocumentsHandler{docs: docs, maxBytes: maxBytes}
}

func (h *DocumentsHandler) Upload(c *gin.Context) {
	// content is validated by the service
	name, content, ok := readPDFUpload(c, h.maxBytes, nil)
	if !ok {
		return
	}

	task, err := h.docs.Upload(c.Request.Context(), app.UploadInput{Name: name, Content: content})
	if err != nil {
		var (
			storeErr *app.StoreError
			indexErr *app.IndexError
		)
		body := response.ErrorBody{Message: "upload failed", Error: err.Error(), Task: task}
		switch {
		case errors.Is(err, pdfcheck.ErrNotPDF):
			body.Code, body.Message = response.CodeNotPDF, "Only PDF files are allowed"
			response.TaskError(c, http.StatusBadRequest, body)
		case errors.Is(err, app.ErrInvalidInput):
			body.Code = response.CodeBadRequest
			response.TaskError(c, http.StatusBadRequest, body)
		case errors.Is(err, app.ErrTaskBusy):
			body.Code = response.CodeTaskBusy
			response.TaskError(c, http.StatusConflict, body)
		case errors.As(err, &storeErr):
			body.Code, body.Message = response.CodeStoreFailed, "Error uploading file"
			response.TaskError(c, http.StatusBadGateway, body)
		case errors.As(err, &indexErr):
			body.Code, body.Message = response.CodeIndexFailed, "File stored but indexing failed"
			body.Side = app.SideIndex
			response.TaskError(c, http.StatusBadGateway, body)
		default:
			body.Code = response.CodeInternalServer
			response.TaskError(c, http.StatusInternalServerError, body)
		}
		return
	}
	response.OK(c, task)
}

func (h *DocumentsHandler) List(c *gin.Context) {
	refresh, _ := strconv.ParseBool(c.DefaultQuery("refresh", "false"))
	if !refresh {
		response.OK(c, h.docs.Documents())
		return
	}

	docs, err := h.docs.Refresh(c.Request.Context())
	if err != nil {
		response.ErrorWithCause(c, http.StatusInternalServerError, response.CodeStoreFailed, "Error listing documents", err)
		return
	}
	response.OK(c, docs)
}

func (h *DocumentsHandler) Delete(c *gin.Context) {
	name := strings.TrimSpace(c.Query("filename"))
	if name == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "Filename is required")
		return
	}

	task, err := h.docs.Delete(c.Request.Context(), name)
	if err != nil {
		var delErr *app.DeleteError
		body := response.ErrorBody{Message: "delete failed", Error: err.Error(), Task: task}
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			body.Code = response.CodeBadRequest
			response.TaskError(c, http.StatusBadRequest, body)
		case errors.Is(err, app.ErrTaskBusy):
			body.Code = response.CodeTaskBusy
			response.TaskError(c, http.StatusConflict, body)
		case errors.As(err, &delErr):
			body.Side = delErr.Side()
			if delErr.Partial() {
				body.Code, body.Message = response.CodePartialDelete, "Document was only partially deleted"
			} else {
				body.Code, body.Message = response.CodeDeleteFailed, "Error deleting document"
			}
			response.TaskError(c, http.StatusBadGateway, body)
		default:
			body.Code = response.CodeInternalServer
			response.TaskError(c, http.StatusInternalServerError, body)
		}
		return
	}
	response.OK(c, task)
}
