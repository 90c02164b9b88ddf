package model

import "time"

type EventKind string

const (
	EventIndexed       EventKind = "document.indexed"
	EventIndexFailed   EventKind = "document.index_failed"
	EventDeleted       EventKind = "document.deleted"
	EventDeletePartial EventKind = "document.delete_partial"
)

// LifecycleEvent is published after an orchestrated task settles.
type LifecycleEvent struct {
	ID          string     `json:"id"`
	Kind        EventKind  `json:"kind"`
	Document    string     `json:"document"`
	TaskID      string     `json:"task_id"`
	Reason      string     `json:"reason,omitempty"`
	StoreResult *LegResult `json:"store_result,omitempty"`
	IndexResult *LegResult `json:"index_result,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// Inconsistent reports whether the event leaves the two stores out of sync.
func (e LifecycleEvent) Inconsistent() bool {
	return e.Kind == EventIndexFailed || e.Kind == EventDeletePartial
}
