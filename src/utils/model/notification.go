package model

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgtype"
)

const (
	TableNotification = "notifications"
)

// Append only. At most one terminal notification exists per dataset.
type Notification struct {
	ID        string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string           `gorm:"not null;index" json:"user_id"`
	DatasetID *string          `gorm:"type:uuid;index;uniqueIndex:idx_notifications_terminal,where:terminal = true" json:"dataset_id"`
	Type      NotificationType `gorm:"type:text;not null" json:"type"`
	Title     string           `gorm:"not null" json:"title"`
	Message   string           `gorm:"not null" json:"message"`
	Data      pgtype.JSONB     `gorm:"type:jsonb" json:"data"`
	Terminal  bool             `gorm:"not null" json:"terminal"`
	Read      bool             `gorm:"not null" json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

func (Notification) TableName() string {
	return TableNotification
}

func (self *Notification) MarshalBinary() (data []byte, err error) {
	return json.Marshal(self)
}
