package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/mclemens/timekeep/internal/database"
)

// testDB opens a file-backed database in a temp dir so concurrent access
// through the connection pool sees one shared store.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
