// Package testutil holds in-memory gateway fakes shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"

	"docchat/internal/gateway"
	"docchat/internal/model"
)

// Store is an in-memory gateway.ObjectStore. Setting an *Err field makes the
// matching call fail without touching the stored objects.
type Store struct {
	mu      sync.Mutex
	Objects map[string][]byte

	PutErr    error
	ListErr   error
	RemoveErr error

	PutCalls    int
	RemoveCalls int
	// RemoveHook runs inside Remove before the result is decided.
	RemoveHook func()
}

var _ gateway.ObjectStore = (*Store)(nil)

func NewStore(names ...string) *Store {
	s := &Store{Objects: make(map[string][]byte)}
	for _, n := range names {
		s.Objects[n] = []byte("%PDF-1.4")
	}
	return s
}

func (s *Store) Put(_ context.Context, name string, r io.Reader, _ int64) error {
	s.mu.Lock()
	s.PutCalls++
	err := s.PutErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.Objects[name] = b
	s.mu.Unlock()
	return nil
}

func (s *Store) List(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	names := make([]string, 0, len(s.Objects))
	for n := range s.Objects {
		names = append(names, n)
	}
	return names, nil
}

func (s *Store) Remove(_ context.Context, name string) error {
	if s.RemoveHook != nil {
		s.RemoveHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RemoveCalls++
	if s.RemoveErr != nil {
		return s.RemoveErr
	}
	if _, ok := s.Objects[name]; !ok {
		return fmt.Errorf("remove %q: %w", name, gateway.ErrObjectNotFound)
	}
	delete(s.Objects, name)
	return nil
}

func (s *Store) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Objects[name]
	return ok
}

// Index is an in-memory gateway.Index.
type Index struct {
	mu      sync.Mutex
	Indexed map[string]bool

	IndexErr  error
	RemoveErr error
	QueryErr  error
	Answer    string

	IndexCalls  int
	RemoveCalls int
	QueryCalls  int
	// RemoveHook runs inside RemoveByName before the result is decided.
	RemoveHook func()
}

var _ gateway.Index = (*Index)(nil)

func NewIndex(names ...string) *Index {
	idx := &Index{Indexed: make(map[string]bool)}
	for _, n := range names {
		idx.Indexed[n] = true
	}
	return idx
}

func (i *Index) IndexByName(_ context.Context, name string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.IndexCalls++
	if i.IndexErr != nil {
		return i.IndexErr
	}
	i.Indexed[name] = true
	return nil
}

func (i *Index) RemoveByName(_ context.Context, name string) error {
	if i.RemoveHook != nil {
		i.RemoveHook()
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.RemoveCalls++
	if i.RemoveErr != nil {
		return i.RemoveErr
	}
	if !i.Indexed[name] {
		return fmt.Errorf("remove index %q: %w", name, gateway.ErrNotIndexed)
	}
	delete(i.Indexed, name)
	return nil
}

func (i *Index) Query(_ context.Context, _ string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.QueryCalls++
	if i.QueryErr != nil {
		return "", i.QueryErr
	}
	if len(i.Indexed) == 0 {
		return "", fmt.Errorf("query: %w", gateway.ErrNotIndexed)
	}
	return i.Answer, nil
}

func (i *Index) Has(name string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.Indexed[name]
}

// Calls returns the total number of round trips made against the index.
func (i *Index) Calls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.IndexCalls + i.RemoveCalls + i.QueryCalls
}

// Publisher records every published lifecycle event.
type Publisher struct {
	mu     sync.Mutex
	Events []model.LifecycleEvent
	Err    error
}

func (p *Publisher) Publish(_ context.Context, event model.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, event)
	return p.Err
}

func (p *Publisher) Kinds() []model.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]model.EventKind, 0, len(p.Events))
	for _, e := range p.Events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
