// Package databasetest opens throwaway SQLite backed stores for tests.
package databasetest

import (
	"fmt"

	"github.com/localnerve/contentdb/internal/database"
	"github.com/localnerve/contentdb/internal/schema"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open creates an in-memory SQLite database migrated for every model.
// The pool holds a single connection so all statements see one database.
func Open(schemas schema.Provider, opts ...database.StoreOption) (*database.GormStore, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open test database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db, schemas.Models()); err != nil {
		return nil, err
	}
	return database.NewGormStore(db, schemas, opts...), nil
}
