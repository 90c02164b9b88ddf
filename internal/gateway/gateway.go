// Package gateway declares the contracts of the two external systems of record:
// the object store holding uploaded files and the index service answering queries.
package gateway

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrObjectNotFound is returned by ObjectStore.Remove when the name is absent.
	ErrObjectNotFound = errors.New("object not found")
	// ErrNotIndexed is returned by Index.Query when nothing has been indexed yet,
	// and by Index.RemoveByName when the name has no index entries.
	ErrNotIndexed = errors.New("no documents indexed yet")
)

// ObjectStore is a single-round-trip mapping onto a blob store. Put overwrites.
type ObjectStore interface {
	Put(ctx context.Context, name string, r io.Reader, size int64) error
	List(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, name string) error
}

// Index is a single-round-trip mapping onto the indexing/query service.
type Index interface {
	IndexByName(ctx context.Context, name string) error
	RemoveByName(ctx context.Context, name string) error
	Query(ctx context.Context, text string) (string, error)
}
