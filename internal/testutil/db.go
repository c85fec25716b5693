// Package testutil opens throwaway databases for tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/config"
	"qawafel-crm/pkg/database"
)

// NewDB opens an in-memory SQLite database with every model migrated and
// installs it as the global database
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	// every connection to :memory: is a separate database, so the pool
	// holds exactly one and never lets it go idle-closed
	db, err := database.Open(sqlite.Open(":memory:"), &config.DBConfig{
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		LogLevel:     logger.Silent,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sqlite handle: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.MigrateModels(model.All()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}
