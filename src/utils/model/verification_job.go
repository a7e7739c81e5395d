package model

import (
	"time"
)

const (
	TableVerificationJob = "verification_jobs"
)

// Outbox row written together with the dataset. Consumed by the verifier.
type VerificationJob struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	DatasetID string    `gorm:"not null;uniqueIndex;type:uuid" json:"dataset_id"`
	UserID    string    `gorm:"not null" json:"user_id"`
	State     JobState  `gorm:"type:text;not null;index" json:"state"`
	RunAfter  time.Time `gorm:"not null;index" json:"run_after"`
	Attempts  int       `gorm:"not null" json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (VerificationJob) TableName() string {
	return TableVerificationJob
}
