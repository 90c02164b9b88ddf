package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docchat/internal/gateway"
	"docchat/internal/model"
)

const defaultMaxUploadBytes = 20 << 20

// EventPublisher receives lifecycle events once a task settles.
type EventPublisher interface {
	Publish(ctx context.Context, event model.LifecycleEvent) error
}

// Validator rejects content locally before any gateway call.
type Validator func(name string, content []byte) error

type DocumentServiceOptions struct {
	Validate Validator
	MaxBytes int64
	Locker   NameLocker
	// LockWait bounds how long a task waits for another task on the same name. Zero waits forever.
	LockWait time.Duration
	Events   EventPublisher
}

// DocumentService sequences the document lifecycle across the object store and the
// index service, and owns the visible document set.
type DocumentService struct {
	store    gateway.ObjectStore
	index    gateway.Index
	validate Validator
	maxBytes int64
	locker   NameLocker
	lockWait time.Duration
	events   EventPublisher

	mu   sync.RWMutex
	docs []model.Document
}

func NewDocumentService(store gateway.ObjectStore, index gateway.Index, opts DocumentServiceOptions) *DocumentService {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxUploadBytes
	}
	if opts.Locker == nil {
		opts.Locker = NewMemoryLocker()
	}
	return &DocumentService{
		store:    store,
		index:    index,
		validate: opts.Validate,
		maxBytes: opts.MaxBytes,
		locker:   opts.Locker,
		lockWait: opts.LockWait,
		events:   opts.Events,
		docs:     []model.Document{},
	}
}

type UploadInput struct {
	Name    string
	Content []byte
}

// Upload stores the file, then indexes it, then refreshes the document set.
// The returned task is always non-nil and carries the terminal phase.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*model.UploadTask, error) {
	task := &model.UploadTask{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(input.Name),
		Size:      int64(len(input.Content)),
		Phase:     model.PhaseSelected,
		StartedAt: time.Now(),
	}

	if err := s.validateUpload(task.Name, input.Content); err != nil {
		s.fail(task, model.FailureValidation, err)
		return task, err
	}

	unlock, err := s.lock(ctx, task.Name)
	if err != nil {
		s.fail(task, model.FailureBusy, err)
		return task, err
	}
	defer unlock()

	// a started task runs to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	task.Phase = model.PhaseUploading
	if err := s.store.Put(ctx, task.Name, bytes.NewReader(input.Content), task.Size); err != nil {
		storeErr := &StoreError{Name: task.Name, Err: err}
		s.fail(task, model.FailureStore, storeErr)
		log.Printf("document upload %s: %v", task.ID, storeErr)
		return task, storeErr
	}
	task.Phase = model.PhaseStored

	task.Phase = model.PhaseIndexing
	if err := s.index.IndexByName(ctx, task.Name); err != nil {
		indexErr := &IndexError{Name: task.Name, Err: err}
		s.fail(task, model.FailureIndex, indexErr)
		log.Printf("document upload %s left inconsistent: %v", task.ID, indexErr)
		s.publish(ctx, model.LifecycleEvent{
			Kind:     model.EventIndexFailed,
			Document: task.Name,
			TaskID:   task.ID,
			Reason:   err.Error(),
		})
		return task, indexErr
	}

	task.Phase = model.PhaseIndexed
	task.FinishedAt = ptrTime(time.Now())
	s.publish(ctx, model.LifecycleEvent{
		Kind:     model.EventIndexed,
		Document: task.Name,
		TaskID:   task.ID,
	})

	if _, err := s.Refresh(ctx); err != nil {
		log.Printf("refresh after upload %s failed: %v", task.ID, err)
	}
	return task, nil
}

// Delete removes name from the object store and the index concurrently. The document
// leaves the visible set only when both legs succeed.
func (s *DocumentService) Delete(ctx context.Context, name string) (*model.DeleteTask, error) {
	task := &model.DeleteTask{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		StoreResult: model.LegResult{Status: model.LegPending},
		IndexResult: model.LegResult{Status: model.LegPending},
		StartedAt:   time.Now(),
	}
	if task.Name == "" {
		return task, fmt.Errorf("%w: document name is required", ErrInvalidInput)
	}

	unlock, err := s.lock(ctx, task.Name)
	if err != nil {
		return task, err
	}
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	var (
		wg       sync.WaitGroup
		storeErr error
		indexErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		storeErr = s.store.Remove(ctx, task.Name)
		if errors.Is(storeErr, gateway.ErrObjectNotFound) {
			storeErr = nil
		}
	}()
	go func() {
		defer wg.Done()
		indexErr = s.index.RemoveByName(ctx, task.Name)
		if errors.Is(indexErr, gateway.ErrNotIndexed) {
			indexErr = nil
		}
	}()
	wg.Wait()

	task.StoreResult = legResult(storeErr)
	task.IndexResult = legResult(indexErr)
	task.FinishedAt = ptrTime(time.Now())

	if task.Succeeded() {
		s.remove(task.Name)
		s.publish(ctx, model.LifecycleEvent{
			Kind:        model.EventDeleted,
			Document:    task.Name,
			TaskID:      task.ID,
			StoreResult: &task.StoreResult,
			IndexResult: &task.IndexResult,
		})
		return task, nil
	}

	delErr := &DeleteError{Name: task.Name, StoreErr: storeErr, IndexErr: indexErr}
	log.Printf("document delete %s: %v", task.ID, delErr)
	if delErr.Partial() {
		s.publish(ctx, model.LifecycleEvent{
			Kind:        model.EventDeletePartial,
			Document:    task.Name,
			TaskID:      task.ID,
			Reason:      delErr.Error(),
			StoreResult: &task.StoreResult,
			IndexResult: &task.IndexResult,
		})
	}
	return task, delErr
}

// Refresh replaces the visible set with the names currently in the object store.
func (s *DocumentService) Refresh(ctx context.Context) ([]model.Document, error) {
	names, err := s.store.List(ctx)
	if err != nil {
		return nil, &StoreError{Name: "*", Err: err}
	}

	sort.Strings(names)
	docs := make([]model.Document, 0, len(names))
	for i, name := range names {
		if i > 0 && names[i-1] == name {
			continue
		}
		docs = append(docs, model.NewDocument(name))
	}

	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()
	return s.Documents(), nil
}

// Documents returns a copy of the visible set as of the last refresh or delete.
func (s *DocumentService) Documents() []model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Query forwards a natural-language question to the index service.
func (s *DocumentService) Query(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: query text is required", ErrInvalidInput)
	}
	return s.index.Query(ctx, text)
}

func (s *DocumentService) validateUpload(name string, content []byte) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: file name is required", ErrInvalidInput)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: file name must not contain path separators", ErrInvalidInput)
	case len(content) == 0:
		return fmt.Errorf("%w: file is empty", ErrInvalidInput)
	case int64(len(content)) > s.maxBytes:
		return fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.maxBytes)
	}
	if s.validate != nil {
		if err := s.validate(name, content); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	return nil
}

func (s *DocumentService) lock(ctx context.Context, name string) (func(), error) {
	if s.lockWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lockWait)
		defer cancel()
	}
	return s.locker.Lock(ctx, name)
}

func (s *DocumentService) remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]model.Document, 0, len(s.docs))
	for _, d := range s.docs {
		if d.ID != name {
			kept = append(kept, d)
		}
	}
	s.docs = kept
}

func (s *DocumentService) publish(ctx context.Context, event model.LifecycleEvent) {
	if s.events == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = time.Now()
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("publish %s event for %q failed: %v", event.Kind, event.Document, err)
	}
}

func (s *DocumentService) fail(task *model.UploadTask, kind model.FailureKind, err error) {
	task.Phase = model.PhaseFailed
	task.Failure = kind
	task.Reason = err.Error()
	task.FinishedAt = ptrTime(time.Now())
}

func legResult(err error) model.LegResult {
	if err != nil {
		return model.LegResult{Status: model.LegErr, Reason: err.Error()}
	}
	return model.LegResult{Status: model.LegOK}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
