package model

import (
	"github.com/google/uuid"
	"github.com/jackc/pgtype"
)

func NewID() string {
	return uuid.NewString()
}

// Marshals v into a present JSONB value
func NewJSONB(v interface{}) (out pgtype.JSONB, err error) {
	err = out.Set(v)
	return
}
