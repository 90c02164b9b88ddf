package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/app"
	"docchat/internal/model"
	"docchat/internal/pkg/pdfcheck"
	"docchat/internal/testutil"
	"docchat/internal/transport/http/handler"
	"docchat/internal/transport/http/response"
)

var pdfBytes = []byte("%PDF-1.4\n%test\n")

type fakeHealth map[string]error

func (f fakeHealth) Health(context.Context) map[string]error { return f }

type fakeReports struct {
	byDoc []model.InconsistencyReport
	limit int
}

func (f *fakeReports) ListRecent(limit int) ([]model.InconsistencyReport, error) {
	f.limit = limit
	return []model.InconsistencyReport{{EventID: "e1", Document: "a.pdf"}}, nil
}

func (f *fakeReports) ListByDocument(document string) ([]model.InconsistencyReport, error) {
	return f.byDoc, nil
}

type testServer struct {
	router *gin.Engine
	store  *testutil.Store
	index  *testutil.Index
	docs   *app.DocumentService
}

func newTestServer(t *testing.T, health fakeHealth, reports handler.ReportLister) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, index := testutil.NewStore(), testutil.NewIndex()
	validate := func(name string, content []byte) error {
		return pdfcheck.Validate(name, content, false)
	}
	docs := app.NewDocumentService(store, index, app.DocumentServiceOptions{
		Validate: validate,
		MaxBytes: 1 << 20,
		LockWait: time.Second,
	})

	router := gin.New()
	registerRoutes(router, routeDeps{
		Store:     store,
		Index:     index,
		Documents: docs,
		Chat:      app.NewChatService(docs),
		Health:    handler.NewHealthHandler(health, "docchat", "test", time.Now()),
		Reports:   reports,
		Validate:  validate,
		MaxBytes:  1 << 20,
	})
	return &testServer{router: router, store: store, index: index, docs: docs}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, target, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestFilesEndpoints(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := s.do(t, multipartRequest(t, "/api/v1/files", "report.pdf", pdfBytes))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "File uploaded successfully", body["message"])
	assert.Equal(t, "report.pdf", body["file_name"])
	assert.Zero(t, s.index.Calls())

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"report.pdf"}, decode[[]string](t, w))

	w = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/files", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Filename is required", decode[response.ErrorBody](t, w).Message)

	w = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/files?filename=report.pdf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Document deleted successfully", decode[map[string]string](t, w)["message"])
	assert.False(t, s.store.Has("report.pdf"))
}

func TestFilesUpload_Rejections(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := s.do(t, multipartRequest(t, "/api/v1/files", "notes.txt", []byte("plain")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeNotPDF, decode[response.ErrorBody](t, w).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", nil)
	w = s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Zero(t, s.store.PutCalls)
}

func TestFilesEndpoints_StoreFailure(t *testing.T) {
	s := newTestServer(t, nil, nil)
	s.store.ListErr = errors.New("minio unreachable")

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[response.ErrorBody](t, w)
	assert.Equal(t, "Error listing files", body.Message)
	assert.Contains(t, body.Error, "minio unreachable")
}

func TestIndexEndpoints(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/index", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/index?file_name=a.pdf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.index.Has("a.pdf"))

	w = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/index?file_name=a.pdf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.index.Has("a.pdf"))

	s.index.IndexErr = errors.New("embedder down")
	w = s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/index?file_name=b.pdf", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, response.CodeIndexFailed, decode[response.ErrorBody](t, w).Code)
}

func TestQueryEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := s.do(t, jsonRequest(http.MethodPost, "/api/v1/query", `{"query":"what?"}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, response.CodeNotIndexed, decode[response.ErrorBody](t, w).Code)

	w = s.do(t, jsonRequest(http.MethodPost, "/api/v1/query", `{"query":"  "}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.index.Indexed["a.pdf"] = true
	s.index.Answer = "42"
	w = s.do(t, jsonRequest(http.MethodPost, "/api/v1/query", `{"query":"what?"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", decode[map[string]string](t, w)["response"])

	s.index.QueryErr = errors.New("llm quota")
	w = s.do(t, jsonRequest(http.MethodPost, "/api/v1/query", `{"query":"what?"}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, response.CodeInternalServer, decode[response.ErrorBody](t, w).Code)
}

func TestDocumentsLifecycle(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := s.do(t, multipartRequest(t, "/api/v1/documents", "report.pdf", pdfBytes))
	require.Equal(t, http.StatusOK, w.Code)
	task := decode[model.UploadTask](t, w)
	assert.Equal(t, model.PhaseIndexed, task.Phase)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []model.Document{{ID: "report.pdf", Name: "report.pdf"}}, decode[[]model.Document](t, w))

	s.index.RemoveErr = errors.New("timeout")
	w = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/documents?filename=report.pdf", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decode[struct {
		Code string           `json:"code"`
		Side string           `json:"side"`
		Task model.DeleteTask `json:"task"`
	}](t, w)
	assert.Equal(t, response.CodePartialDelete, body.Code)
	assert.Equal(t, app.SideIndex, body.Side)
	assert.Equal(t, model.LegOK, body.Task.StoreResult.Status)
	assert.Equal(t, model.LegErr, body.Task.IndexResult.Status)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents?refresh=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]model.Document](t, w))

	s.index.RemoveErr = nil
	w = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/documents?filename=report.pdf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	deleted := decode[model.DeleteTask](t, w)
	assert.True(t, deleted.Succeeded())
	assert.False(t, s.index.Has("report.pdf"))
}

func TestDocumentsUpload_Failures(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := s.do(t, multipartRequest(t, "/api/v1/documents", "notes.txt", pdfBytes))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeNotPDF, decode[response.ErrorBody](t, w).Code)

	s.store.PutErr = errors.New("bucket missing")
	w = s.do(t, multipartRequest(t, "/api/v1/documents", "a.pdf", pdfBytes))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, response.CodeStoreFailed, decode[response.ErrorBody](t, w).Code)
	assert.Zero(t, s.index.IndexCalls)

	s.store.PutErr = nil
	s.index.IndexErr = errors.New("embedder down")
	w = s.do(t, multipartRequest(t, "/api/v1/documents", "a.pdf", pdfBytes))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decode[struct {
		Code string           `json:"code"`
		Task model.UploadTask `json:"task"`
	}](t, w)
	assert.Equal(t, response.CodeIndexFailed, body.Code)
	assert.Equal(t, model.FailureIndex, body.Task.Failure)
	assert.True(t, s.store.Has("a.pdf"))
}

func TestDocumentsDelete_Busy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	locker := app.NewMemoryLocker()
	store, index := testutil.NewStore("a.pdf"), testutil.NewIndex("a.pdf")
	docs := app.NewDocumentService(store, index, app.DocumentServiceOptions{
		Locker:   locker,
		LockWait: 20 * time.Millisecond,
	})
	router := gin.New()
	registerRoutes(router, routeDeps{Store: store, Index: index, Documents: docs, Chat: app.NewChatService(docs)})

	unlock, err := locker.Lock(context.Background(), "a.pdf")
	require.NoError(t, err)
	defer unlock()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/documents?filename=a.pdf", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, response.CodeTaskBusy, decode[response.ErrorBody](t, w).Code)
}

func TestChatEndpoints(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := s.do(t, jsonRequest(http.MethodPost, "/api/v1/chat/messages", `{"content":"  "}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeMessageEmpty, decode[response.ErrorBody](t, w).Code)

	w = s.do(t, jsonRequest(http.MethodPost, "/api/v1/chat/messages", `{"content":"what is in the report?"}`))
	require.Equal(t, http.StatusOK, w.Code)
	sent := decode[struct {
		Messages []model.Message `json:"messages"`
	}](t, w)
	require.Len(t, sent.Messages, 2)
	assert.Equal(t, model.NotIndexedMessage, sent.Messages[1].Content)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/chat/messages", nil))
	require.Equal(t, http.StatusOK, w.Code)
	log := decode[struct {
		State    app.ChatState   `json:"state"`
		Messages []model.Message `json:"messages"`
	}](t, w)
	assert.Equal(t, app.ChatIdle, log.State)
	require.Len(t, log.Messages, 3)
	assert.Equal(t, model.GreetingMessage, log.Messages[0].Content)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, fakeHealth{"minio": nil}, nil)
	w := s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	s = newTestServer(t, fakeHealth{"minio": nil, "redis": errors.New("refused")}, nil)
	w = s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "refused")
}

func TestInconsistencies(t *testing.T) {
	s := newTestServer(t, nil, nil)
	w := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/inconsistencies", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	reports := &fakeReports{byDoc: []model.InconsistencyReport{{EventID: "e9", Document: "b.pdf"}}}
	s = newTestServer(t, nil, reports)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/inconsistencies?limit=10", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, reports.limit)
	assert.Equal(t, "e1", decode[[]model.InconsistencyReport](t, w)[0].EventID)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/inconsistencies?document=b.pdf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "e9", decode[[]model.InconsistencyReport](t, w)[0].EventID)
}
