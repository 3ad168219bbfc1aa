// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"movierec/pkg/database"
)

func Open(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
