package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/gateway"
	"docchat/internal/indexsvc"
	"docchat/internal/model"
	"docchat/internal/pkg/pdfcheck"
	"docchat/internal/testutil"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

func newDocumentService(store *testutil.Store, index *testutil.Index, pub *testutil.Publisher) *DocumentService {
	opts := DocumentServiceOptions{
		Validate: func(name string, content []byte) error {
			return pdfcheck.Validate(name, content, false)
		},
		MaxBytes: 1 << 20,
		LockWait: time.Second,
	}
	if pub != nil {
		opts.Events = pub
	}
	return NewDocumentService(store, index, opts)
}

func oversized() []byte {
	b := make([]byte, 1<<20+1)
	copy(b, pdfBytes)
	return b
}

func names(docs []model.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Name)
	}
	return out
}

func TestUpload_StoresIndexesAndLists(t *testing.T) {
	store, index, pub := testutil.NewStore(), testutil.NewIndex(), &testutil.Publisher{}
	svc := newDocumentService(store, index, pub)

	task, err := svc.Upload(context.Background(), UploadInput{Name: "report.pdf", Content: pdfBytes})
	require.NoError(t, err)
	assert.Equal(t, model.PhaseIndexed, task.Phase)
	assert.True(t, task.Terminal())
	assert.NotEmpty(t, task.ID)
	assert.NotNil(t, task.FinishedAt)

	assert.True(t, store.Has("report.pdf"))
	assert.True(t, index.Has("report.pdf"))
	assert.Equal(t, []string{"report.pdf"}, names(svc.Documents()))
	assert.Equal(t, []model.EventKind{model.EventIndexed}, pub.Kinds())
}

func TestUpload_ValidationHasNoSideEffects(t *testing.T) {
	tests := []struct {
		name    string
		input   UploadInput
		wantPDF bool
	}{
		{name: "wrong extension", input: UploadInput{Name: "notes.txt", Content: pdfBytes}, wantPDF: true},
		{name: "missing magic", input: UploadInput{Name: "fake.pdf", Content: []byte("hello")}, wantPDF: true},
		{name: "empty name", input: UploadInput{Name: "  ", Content: pdfBytes}},
		{name: "path separator", input: UploadInput{Name: "../etc/a.pdf", Content: pdfBytes}},
		{name: "empty file", input: UploadInput{Name: "a.pdf"}},
		{name: "too large", input: UploadInput{Name: "a.pdf", Content: oversized()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, index, pub := testutil.NewStore(), testutil.NewIndex(), &testutil.Publisher{}
			svc := newDocumentService(store, index, pub)

			task, err := svc.Upload(context.Background(), tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, tt.wantPDF, errors.Is(err, pdfcheck.ErrNotPDF))
			assert.Equal(t, model.PhaseFailed, task.Phase)
			assert.Equal(t, model.FailureValidation, task.Failure)

			assert.Zero(t, store.PutCalls)
			assert.Zero(t, index.Calls())
			assert.Empty(t, pub.Kinds())
		})
	}
}

func TestUpload_StoreFailureSkipsIndexing(t *testing.T) {
	store, index, pub := testutil.NewStore(), testutil.NewIndex(), &testutil.Publisher{}
	store.PutErr = errors.New("connection refused")
	svc := newDocumentService(store, index, pub)

	task, err := svc.Upload(context.Background(), UploadInput{Name: "report.pdf", Content: pdfBytes})
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "report.pdf", storeErr.Name)
	assert.Equal(t, model.FailureStore, task.Failure)
	assert.Contains(t, task.Reason, "connection refused")

	assert.Zero(t, index.IndexCalls)
	assert.Empty(t, svc.Documents())
	assert.Empty(t, pub.Kinds())
}

func TestUpload_IndexFailureLeavesObjectStored(t *testing.T) {
	store, index, pub := testutil.NewStore(), testutil.NewIndex(), &testutil.Publisher{}
	index.IndexErr = errors.New("embedder unavailable")
	svc := newDocumentService(store, index, pub)

	task, err := svc.Upload(context.Background(), UploadInput{Name: "report.pdf", Content: pdfBytes})
	var indexErr *IndexError
	require.ErrorAs(t, err, &indexErr)
	assert.Equal(t, model.PhaseFailed, task.Phase)
	assert.Equal(t, model.FailureIndex, task.Failure)

	assert.True(t, store.Has("report.pdf"))
	assert.False(t, index.Has("report.pdf"))
	assert.Equal(t, 1, index.IndexCalls)

	require.Len(t, pub.Events, 1)
	assert.Equal(t, model.EventIndexFailed, pub.Events[0].Kind)
	assert.True(t, pub.Events[0].Inconsistent())
	assert.Contains(t, pub.Events[0].Reason, "embedder unavailable")
}

func TestUpload_RefreshFailureDoesNotFailUpload(t *testing.T) {
	store, index := testutil.NewStore(), testutil.NewIndex()
	store.ListErr = errors.New("list timeout")
	svc := newDocumentService(store, index, nil)

	task, err := svc.Upload(context.Background(), UploadInput{Name: "report.pdf", Content: pdfBytes})
	require.NoError(t, err)
	assert.Equal(t, model.PhaseIndexed, task.Phase)
	assert.Empty(t, svc.Documents())
}

func TestDelete_IndexTimeoutThenRetry(t *testing.T) {
	store, index, pub := testutil.NewStore(), testutil.NewIndex(), &testutil.Publisher{}
	svc := newDocumentService(store, index, pub)
	ctx := context.Background()

	_, err := svc.Upload(ctx, UploadInput{Name: "report.pdf", Content: pdfBytes})
	require.NoError(t, err)

	index.RemoveErr = errors.New("context deadline exceeded")
	task, err := svc.Delete(ctx, "report.pdf")
	var delErr *DeleteError
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, SideIndex, delErr.Side())
	assert.True(t, delErr.Partial())
	assert.Equal(t, model.LegOK, task.StoreResult.Status)
	assert.Equal(t, model.LegErr, task.IndexResult.Status)
	assert.Contains(t, task.IndexResult.Reason, "deadline")
	assert.Equal(t, []string{"report.pdf"}, names(svc.Documents()))
	assert.False(t, store.Has("report.pdf"))

	index.RemoveErr = nil
	task, err = svc.Delete(ctx, "report.pdf")
	require.NoError(t, err)
	assert.True(t, task.Succeeded())
	assert.Empty(t, svc.Documents())
	assert.False(t, index.Has("report.pdf"))

	assert.Equal(t, []model.EventKind{model.EventIndexed, model.EventDeletePartial, model.EventDeleted}, pub.Kinds())
}

func TestDelete_IndexRouteNotFoundKeepsDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not Found"}`))
	}))
	t.Cleanup(srv.Close)

	store := testutil.NewStore("report.pdf")
	svc := NewDocumentService(store, indexsvc.NewClient(indexsvc.Config{
		BaseURL:    srv.URL,
		DeletePath: "/delete_milvus",
	}), DocumentServiceOptions{LockWait: time.Second})
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	task, err := svc.Delete(context.Background(), "report.pdf")
	var delErr *DeleteError
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, SideIndex, delErr.Side())
	assert.Equal(t, model.LegOK, task.StoreResult.Status)
	assert.Equal(t, model.LegErr, task.IndexResult.Status)
	assert.Contains(t, task.IndexResult.Reason, "404")
	assert.Equal(t, []string{"report.pdf"}, names(svc.Documents()))
}

func TestDelete_BothLegsFail(t *testing.T) {
	store, index := testutil.NewStore("a.pdf"), testutil.NewIndex("a.pdf")
	store.RemoveErr = errors.New("store down")
	index.RemoveErr = errors.New("index down")
	pub := &testutil.Publisher{}
	svc := newDocumentService(store, index, pub)
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), "a.pdf")
	var delErr *DeleteError
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, SideBoth, delErr.Side())
	assert.False(t, delErr.Partial())
	assert.Contains(t, err.Error(), "store down")
	assert.Contains(t, err.Error(), "index down")
	assert.Equal(t, []string{"a.pdf"}, names(svc.Documents()))
	assert.Empty(t, pub.Kinds())
}

func TestDelete_StoreSideFailure(t *testing.T) {
	store, index := testutil.NewStore("a.pdf"), testutil.NewIndex("a.pdf")
	store.RemoveErr = errors.New("access denied")
	svc := newDocumentService(store, index, nil)
	_, _ = svc.Refresh(context.Background())

	_, err := svc.Delete(context.Background(), "a.pdf")
	var delErr *DeleteError
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, SideStore, delErr.Side())
	assert.Equal(t, []string{"a.pdf"}, names(svc.Documents()))
}

func TestDelete_MissingOnBothSidesIsOK(t *testing.T) {
	store, index := testutil.NewStore(), testutil.NewIndex()
	svc := newDocumentService(store, index, nil)

	task, err := svc.Delete(context.Background(), "gone.pdf")
	require.NoError(t, err)
	assert.True(t, task.Succeeded())
	assert.Equal(t, 1, store.RemoveCalls)
	assert.Equal(t, 1, index.RemoveCalls)
}

func TestDelete_EmptyNameRejected(t *testing.T) {
	store, index := testutil.NewStore(), testutil.NewIndex()
	svc := newDocumentService(store, index, nil)

	_, err := svc.Delete(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, store.RemoveCalls)
	assert.Zero(t, index.Calls())
}

func TestDelete_LegsRunConcurrently(t *testing.T) {
	store, index := testutil.NewStore("a.pdf"), testutil.NewIndex("a.pdf")
	var arrived atomic.Int32
	release := make(chan struct{})
	barrier := func() {
		if arrived.Add(1) == 2 {
			close(release)
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}
	store.RemoveHook = barrier
	index.RemoveHook = barrier
	svc := newDocumentService(store, index, nil)

	start := time.Now()
	_, err := svc.Delete(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDelete_SameNameIsSerialized(t *testing.T) {
	store, index := testutil.NewStore("a.pdf"), testutil.NewIndex("a.pdf")
	svc := NewDocumentService(store, index, DocumentServiceOptions{LockWait: 50 * time.Millisecond})

	unlock, err := svc.locker.Lock(context.Background(), "a.pdf")
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), "a.pdf")
	assert.ErrorIs(t, err, ErrTaskBusy)
	assert.Zero(t, store.RemoveCalls)

	_, err = svc.Delete(context.Background(), "b.pdf")
	assert.NoError(t, err)

	unlock()
	_, err = svc.Delete(context.Background(), "a.pdf")
	assert.NoError(t, err)
}

func TestUpload_BusyNameIsNotValidationFailure(t *testing.T) {
	store, index := testutil.NewStore(), testutil.NewIndex()
	svc := NewDocumentService(store, index, DocumentServiceOptions{LockWait: 50 * time.Millisecond})

	unlock, err := svc.locker.Lock(context.Background(), "a.pdf")
	require.NoError(t, err)
	defer unlock()

	task, err := svc.Upload(context.Background(), UploadInput{Name: "a.pdf", Content: pdfBytes})
	assert.ErrorIs(t, err, ErrTaskBusy)
	assert.NotErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, model.PhaseFailed, task.Phase)
	assert.Equal(t, model.FailureBusy, task.Failure)
	assert.Zero(t, store.PutCalls)
	assert.Zero(t, index.IndexCalls)
}

func TestRefresh_ReplacesAndSorts(t *testing.T) {
	store := testutil.NewStore("b.pdf", "a.pdf", "c.pdf")
	svc := newDocumentService(store, testutil.NewIndex(), nil)

	docs, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, names(docs))

	delete(store.Objects, "b.pdf")
	docs, err = svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "c.pdf"}, names(docs))
	for _, d := range docs {
		assert.Equal(t, d.Name, d.ID)
	}
}

func TestRefresh_FailureKeepsPreviousSet(t *testing.T) {
	store := testutil.NewStore("a.pdf")
	svc := newDocumentService(store, testutil.NewIndex(), nil)
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	store.ListErr = errors.New("unreachable")
	_, err = svc.Refresh(context.Background())
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, []string{"a.pdf"}, names(svc.Documents()))
}

func TestDocuments_ReturnsCopy(t *testing.T) {
	svc := newDocumentService(testutil.NewStore("a.pdf"), testutil.NewIndex(), nil)
	_, _ = svc.Refresh(context.Background())

	docs := svc.Documents()
	docs[0].Name = "mutated"
	assert.Equal(t, "a.pdf", svc.Documents()[0].Name)
}

func TestQuery(t *testing.T) {
	index := testutil.NewIndex()
	svc := newDocumentService(testutil.NewStore(), index, nil)

	_, err := svc.Query(context.Background(), "anything?")
	assert.ErrorIs(t, err, gateway.ErrNotIndexed)

	_, err = svc.Query(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	index.Indexed["a.pdf"] = true
	index.Answer = "forty-two"
	answer, err := svc.Query(context.Background(), "meaning?")
	require.NoError(t, err)
	assert.Equal(t, "forty-two", answer)
}

func TestPublishFailureIsNotFatal(t *testing.T) {
	pub := &testutil.Publisher{Err: errors.New("broker down")}
	svc := newDocumentService(testutil.NewStore(), testutil.NewIndex(), pub)

	task, err := svc.Upload(context.Background(), UploadInput{Name: "a.pdf", Content: pdfBytes})
	require.NoError(t, err)
	assert.Equal(t, model.PhaseIndexed, task.Phase)
}
