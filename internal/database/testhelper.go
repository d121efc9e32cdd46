package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/plantops/plantops/internal/config"
	_ "modernc.org/sqlite"
)

// NewInMemory creates a migrated in-memory database for tests and demos.
// The pool is pinned to one connection because every :memory: connection
// is a separate database.
func NewInMemory(ctx context.Context) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	db := &DB{
		DB:     sqlDB,
		path:   ":memory:",
		config: &config.DatabaseConfig{},
	}

	migrator, err := NewMigrator(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	if _, err := migrator.MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating: %w", err)
	}

	return db, nil
}
