package model

import "time"

type UploadPhase string

const (
	PhaseSelected  UploadPhase = "selected"
	PhaseUploading UploadPhase = "uploading"
	PhaseStored    UploadPhase = "stored"
	PhaseIndexing  UploadPhase = "indexing"
	PhaseIndexed   UploadPhase = "indexed"
	PhaseFailed    UploadPhase = "failed"
)

// FailureKind tells which step of an upload failed.
type FailureKind string

const (
	FailureValidation FailureKind = "validation"
	FailureStore      FailureKind = "store"
	FailureIndex      FailureKind = "index"

	// FailureBusy means another task held the name; neither store was touched.
	FailureBusy FailureKind = "busy"
)

type UploadTask struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Size       int64       `json:"size"`
	Phase      UploadPhase `json:"phase"`
	Failure    FailureKind `json:"failure,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

func (t *UploadTask) Terminal() bool {
	return t.Phase == PhaseIndexed || t.Phase == PhaseFailed
}

type LegStatus string

const (
	LegPending LegStatus = "pending"
	LegOK      LegStatus = "ok"
	LegErr     LegStatus = "err"
)

// LegResult is the outcome of one side of a dual-delete.
type LegResult struct {
	Status LegStatus `json:"status"`
	Reason string    `json:"reason,omitempty"`
}

type DeleteTask struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	StoreResult LegResult  `json:"store_result"`
	IndexResult LegResult  `json:"index_result"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

func (t *DeleteTask) Succeeded() bool {
	return t.StoreResult.Status == LegOK && t.IndexResult.Status == LegOK
}
