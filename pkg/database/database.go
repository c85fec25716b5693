package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"qawafel-crm/pkg/config"
)

// DB is the global database instance
var DB *gorm.DB

// ErrNotInitialized is returned before InitDB or Open has run
var ErrNotInitialized = errors.New("database is not initialized")

// InitDB connects to PostgreSQL and installs the connection as the global database
func InitDB(dbConfig *config.DBConfig) (*gorm.DB, error) {
	return Open(postgres.New(postgres.Config{
		DSN:                  dbConfig.GetDSN(),
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}), dbConfig)
}

// Open connects through any gorm dialector, applies the pool settings and
// installs the connection as the global database. Unique index violations
// are translated to gorm.ErrDuplicatedKey where the driver supports it.
func Open(dialector gorm.Dialector, dbConfig *config.DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(dbConfig.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database object: %w", err)
	}
	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	DB = db
	return DB, nil
}

// MigrateModels creates or alters the tables of models
func MigrateModels(models ...interface{}) error {
	if DB == nil {
		return ErrNotInitialized
	}
	if err := DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	return nil
}

// Ping checks that the database answers
func Ping(ctx context.Context) error {
	if DB == nil {
		return ErrNotInitialized
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
