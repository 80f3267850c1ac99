package db

import (
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

const testEncryptionKey = "12345678901234567890123456789012"

// setupTestDB opens an in-memory turn log for testing
func setupTestDB(t *testing.T, key string) *Database {
	t.Helper()

	db, err := NewDatabase(":memory:", key)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		if db.db != nil {
			db.Close()
		}
	})

	return db
}
