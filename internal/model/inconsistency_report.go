package model

import "time"

// InconsistencyReport is the persisted record of a document left present in one store only.
type InconsistencyReport struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventID    string    `gorm:"size:64;not null;uniqueIndex" json:"event_id"`
	Kind       string    `gorm:"size:64;not null;index" json:"kind"`
	Document   string    `gorm:"size:512;not null;index" json:"document"`
	TaskID     string    `gorm:"size:64" json:"task_id"`
	Side       string    `gorm:"size:16" json:"side"`
	Reason     string    `gorm:"type:text" json:"reason"`
	OccurredAt time.Time `gorm:"not null" json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}
