package model

import (
	"context"
	"fmt"

	"github.com/loteraa/verifier/src/utils/config"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Fresh, private in-memory SQLite database. Lives as long as the returned connection.
func NewMemoryConnection(ctx context.Context, conf *config.Config) (*gorm.DB, error) {
	dbConfig := conf.Database
	dbConfig.Driver = config.DriverSQLite
	dbConfig.SQLitePath = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	return NewSQLiteConnection(ctx, &dbConfig)
}
