// Package testing provides fixtures, mocks and database helpers shared by
// the stockselect test suites.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/stockselect/internal/database"
)

// NewTestDB creates a migrated SQLite database in a per-test temporary
// directory. The database is closed when the test finishes.
//
// Names with a schema ("universe", "runs") get their tables; any other
// name yields an empty database.
func NewTestDB(t testing.TB, name string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileScratch,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}
	return db
}
