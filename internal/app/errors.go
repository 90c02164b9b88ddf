package app

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrMessageEmpty = errors.New("message content is empty")
	// ErrTaskBusy means another task for the same document name still holds the lock.
	ErrTaskBusy = errors.New("another task for this document is in progress")
)

// StoreError is returned when an upload could not be written to the object store.
// Indexing is never attempted after a StoreError.
type StoreError struct {
	Name string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %q failed: %v", e.Name, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IndexError is returned when the object was stored but indexing failed. The
// document is then present in the store and absent from the index.
type IndexError struct {
	Name string
	Err  error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %q failed, object is stored but not indexed: %v", e.Name, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

const (
	SideStore = "store"
	SideIndex = "index"
	SideBoth  = "both"
)

// DeleteError reports which legs of a dual-delete failed. At least one of
// StoreErr and IndexErr is set.
type DeleteError struct {
	Name     string
	StoreErr error
	IndexErr error
}

func (e *DeleteError) Side() string {
	switch {
	case e.StoreErr != nil && e.IndexErr != nil:
		return SideBoth
	case e.StoreErr != nil:
		return SideStore
	default:
		return SideIndex
	}
}

// Partial reports whether exactly one leg failed.
func (e *DeleteError) Partial() bool {
	return e.Side() != SideBoth
}

func (e *DeleteError) Error() string {
	switch e.Side() {
	case SideBoth:
		return fmt.Sprintf("delete %q failed on both sides: store: %v; index: %v", e.Name, e.StoreErr, e.IndexErr)
	case SideStore:
		return fmt.Sprintf("delete %q partially failed on the store side: %v", e.Name, e.StoreErr)
	default:
		return fmt.Sprintf("delete %q partially failed on the index side: %v", e.Name, e.IndexErr)
	}
}

func (e *DeleteError) Unwrap() []error {
	var errs []error
	if e.StoreErr != nil {
		errs = append(errs, e.StoreErr)
	}
	if e.IndexErr != nil {
		errs = append(errs, e.IndexErr)
	}
	return errs
}
