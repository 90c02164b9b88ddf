package app

import (
	"context"
	"fmt"
	"sync"
)

// NameLocker serializes tasks that target the same document name.
// Lock blocks until the name is free or ctx is done.
type NameLocker interface {
	Lock(ctx context.Context, name string) (unlock func(), err error)
}

type lockEntry struct {
	slot chan struct{}
	refs int
}

// MemoryLocker is a NameLocker for a single process.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]*lockEntry)}
}

func (l *MemoryLocker) Lock(ctx context.Context, name string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[name]
	if !ok {
		entry = &lockEntry{slot: make(chan struct{}, 1)}
		l.entries[name] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.slot <- struct{}{}:
	case <-ctx.Done():
		l.release(name, entry)
		return nil, fmt.Errorf("%w: %v", ErrTaskBusy, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.slot
			l.release(name, entry)
		})
	}, nil
}

func (l *MemoryLocker) release(name string, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, name)
	}
}
