package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TableEarning = "earnings"

	EarningTypeDatasetVerificationReward = "dataset_verification_reward"
	EarningStatusCompleted               = "completed"
)

type Earning struct {
	ID              string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID          string          `gorm:"not null;index" json:"user_id"`
	DatasetID       string          `gorm:"not null;uniqueIndex;type:uuid" json:"dataset_id"`
	Amount          decimal.Decimal `gorm:"type:numeric;not null" json:"amount"`
	Type            string          `gorm:"not null" json:"type"`
	TransactionHash string          `gorm:"not null" json:"transaction_hash"`
	Status          string          `gorm:"not null" json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (Earning) TableName() string {
	return TableEarning
}
