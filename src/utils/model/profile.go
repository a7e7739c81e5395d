package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TableProfile = "profiles"
)

// Per user aggregate. Only ever changed with relative increments.
type Profile struct {
	UserID                string          `gorm:"primaryKey" json:"user_id"`
	TokenBalance          decimal.Decimal `gorm:"type:numeric;not null" json:"token_balance"`
	TotalEarnings         decimal.Decimal `gorm:"type:numeric;not null" json:"total_earnings"`
	TotalDatasetsUploaded int64           `gorm:"not null" json:"total_datasets_uploaded"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func (Profile) TableName() string {
	return TableProfile
}
