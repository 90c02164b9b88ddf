package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"docchat/internal/gateway"
	"docchat/internal/pkg/pdfcheck"
	"docchat/internal/transport/http/response"
)

// Validator checks an uploaded file before anything is written.
type Validator func(name string, content []byte) error

// FilesHandler exposes the object store directly, one round trip per request.
type FilesHandler struct {
	store    gateway.ObjectStore
	validate Validator
	maxBytes int64
}

func NewFilesHandler(store gateway.ObjectStore, validate Validator, maxBytes int64) *FilesHandler {
	return &FilesHandler{store: store, validate: validate, maxBytes: maxBytes}
}

func (h *FilesHandler) Upload(c *gin.Context) {
	name, content, ok := readPDFUpload(c, h.maxBytes, h.validate)
	if !ok {
		return
	}

	if err := h.store.Put(c.Request.Context(), name, bytes.NewReader(content), int64(len(content))); err != nil {
		response.ErrorWithCause(c, http.StatusInternalServerError, response.CodeStoreFailed, "Error uploading file", err)
		return
	}
	response.Message(c, "File uploaded successfully", gin.H{"file_name": name})
}

func (h *FilesHandler) List(c *gin.Context) {
	names, err := h.store.List(c.Request.Context())
	if err != nil {
		response.ErrorWithCause(c, http.StatusInternalServerError, response.CodeStoreFailed, "Error listing files", err)
		return
	}
	response.OK(c, names)
}

func (h *FilesHandler) Delete(c *gin.Context) {
	name := strings.TrimSpace(c.Query("filename"))
	if name == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "Filename is required")
		return
	}

	err := h.store.Remove(c.Request.Context(), name)
	if err != nil && !errors.Is(err, gateway.ErrObjectNotFound) {
		response.ErrorWithCause(c, http.StatusInternalServerError, response.CodeStoreFailed, "Error deleting document", err)
		return
	}
	response.Message(c, "Document deleted successfully", nil)
}

// readPDFUpload reads the multipart "file" field and writes a 400 when it is
// missing, too large or rejected by validate.
func readPDFUpload(c *gin.Context, maxBytes int64, validate Validator) (string, []byte, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "No file provided")
		return "", nil, false
	}
	if maxBytes > 0 && file.Size > maxBytes {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, fmt.Sprintf("File too large (max %d bytes)", maxBytes))
		return "", nil, false
	}

	name := filepath.Base(file.Filename)
	content, err := readFormFile(file, maxBytes)
	if err != nil {
		response.ErrorWithCause(c, http.StatusInternalServerError, response.CodeInternalServer, "Failed to read file", err)
		return "", nil, false
	}

	if validate != nil {
		if err := validate(name, content); err != nil {
			code := response.CodeBadRequest
			if errors.Is(err, pdfcheck.ErrNotPDF) {
				code = response.CodeNotPDF
			}
			response.ErrorWithCause(c, http.StatusBadRequest, code, "Only PDF files are allowed", err)
			return "", nil, false
		}
	}
	return name, content, true
}

func readFormFile(file *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	return io.ReadAll(r)
}
