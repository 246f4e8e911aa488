package database

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"
)

// OpenTestDB creates a migrated SQLite in-memory DB unique per test, with a
// busy timeout and WAL journal mode to reduce locking during parallel tests.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsnName := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_journal_mode=WAL&_busy_timeout=5000", dsnName)
	db, err := Connect(dsn)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return db
}
