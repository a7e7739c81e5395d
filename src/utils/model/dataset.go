package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	TableDataset = "datasets"
)

type Dataset struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string `gorm:"not null;index" json:"user_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	// Declared content type of the uploaded file
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
	FileUrl  string `json:"file_url"`

	// Object store key, used to remove the file
	StoragePath string `json:"storage_path"`

	// File analysis, stored verbatim
	FileStructure datatypes.JSON `json:"file_structure"`

	Status       DatasetStatus   `gorm:"type:text;not null;index" json:"status"`
	AccessType   AccessType      `gorm:"type:text;not null" json:"access_type"`
	AccessPrice  decimal.Decimal `gorm:"type:numeric;not null" json:"access_price"`
	RewardAmount decimal.Decimal `gorm:"type:numeric;not null" json:"reward_amount"`
	Region       *string         `json:"region"`
	Tags         pq.StringArray  `gorm:"type:text[]" json:"tags"`

	// Written by the verification, null until then
	VerificationDetails datatypes.JSON `json:"verification_details"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	VerifiedAt *time.Time `json:"verified_at"`
}

func (Dataset) TableName() string {
	return TableDataset
}
