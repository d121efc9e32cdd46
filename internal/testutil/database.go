// Package testutil provides utilities for testing.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/plantops/plantops/internal/config"
	"github.com/plantops/plantops/internal/database"
)

// TestDB wraps a migrated test database.
type TestDB struct {
	*database.DB
}

// NewTestDB creates a migrated in-memory SQLite database that is closed when
// the test ends.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	db, err := database.NewInMemory(context.Background())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &TestDB{DB: db}
}

// NewTestDBWithFile creates a migrated test database backed by a temporary
// file. Useful for debugging tests and for backup tests.
func NewTestDBWithFile(t *testing.T) *TestDB {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := config.Default().Database
	cfg.BackupIntervalHours = 0

	db, err := database.Open(filepath.Join(tmpDir, "test.db"), &cfg, filepath.Join(tmpDir, "backups"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrator, err := database.NewMigrator(db)
	if err != nil {
		t.Fatalf("failed to create migrator: %v", err)
	}
	if _, err := migrator.MigrateUp(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return &TestDB{DB: db}
}

// Truncate removes all data from specified tables while maintaining schema.
func (tdb *TestDB) Truncate(t *testing.T, tables ...string) {
	t.Helper()

	ctx := context.Background()

	// foreign_keys cannot change inside a transaction
	if _, err := tdb.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		t.Fatalf("failed to disable foreign keys: %v", err)
	}
	defer tdb.ExecContext(ctx, "PRAGMA foreign_keys = ON")

	for _, table := range tables {
		if _, err := tdb.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}

// Count returns the row count for a table with an optional WHERE clause.
func (tdb *TestDB) Count(t *testing.T, table, where string, args ...any) int {
	t.Helper()

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if where != "" {
		query += " WHERE " + where
	}

	var count int
	if err := tdb.QueryRow(query, args...).Scan(&count); err != nil {
		t.Fatalf("failed to count rows in %s: %v", table, err)
	}
	return count
}

// AssertRowCount asserts the row count for a table.
func (tdb *TestDB) AssertRowCount(t *testing.T, table string, expected int) {
	t.Helper()

	if count := tdb.Count(t, table, ""); count != expected {
		t.Errorf("expected %d rows in %s, got %d", expected, table, count)
	}
}

// ExecSQL executes arbitrary SQL (useful for test setup).
func (tdb *TestDB) ExecSQL(t *testing.T, sql string, args ...any) {
	t.Helper()

	if _, err := tdb.Exec(sql, args...); err != nil {
		t.Fatalf("failed to execute SQL: %v\nSQL: %s", err, sql)
	}
}
