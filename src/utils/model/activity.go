package model

import (
	"time"

	"github.com/jackc/pgtype"
)

const (
	TableActivity = "activities"

	ActivityTypeDatasetUpload   = "dataset_upload"
	ActivityTypeDatasetVerified = "dataset_verified"
	ActivityTypeDatasetRejected = "dataset_rejected"
)

type Activity struct {
	ID           string       `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string       `gorm:"not null;index" json:"user_id"`
	ActivityType string       `gorm:"not null" json:"activity_type"`
	Description  string       `json:"description"`
	Metadata     pgtype.JSONB `gorm:"type:jsonb" json:"metadata"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (Activity) TableName() string {
	return TableActivity
}
