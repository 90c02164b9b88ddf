package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docchat/internal/model"
	"docchat/internal/transport/http/response"
)

type ReportLister interface {
	ListRecent(limit int) ([]model.InconsistencyReport, error)
	ListByDocument(document string) ([]model.InconsistencyReport, error)
}

// InconsistencyHandler lists documents the worker recorded as present in one store only.
type InconsistencyHandler struct {
	reports ReportLister
}

func NewInconsistencyHandler(reports ReportLister) *InconsistencyHandler {
	return &InconsistencyHandler{reports: reports}
}

func (h *InconsistencyHandler) List(c *gin.Context) {
	var (
		reports []model.InconsistencyReport
		err     error
	)
	if doc := strings.TrimSpace(c.Query("document")); doc != "" {
		reports, err = h.reports.ListByDocument(doc)
	} else {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		reports, err = h.reports.ListRecent(limit)
	}
	if err != nil {
		response.ErrorWithCause(c, http.StatusInternalServerError, response.CodeInternalServer, "list inconsistency reports failed", err)
		return
	}
	response.OK(c, reports)
}
