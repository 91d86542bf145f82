package testing

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/teranos/strata/db"
)

// CreateTestDB creates a migrated SQLite test database in a temp directory.
// A file-backed database is used so every pooled connection sees the same data.
// Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "strata_test.db")

	conn, err := db.OpenWithMigrations(path, nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// Register cleanup
	t.Cleanup(func() {
		conn.Close()
	})

	return conn
}
