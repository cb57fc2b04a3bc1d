package sqlite

import (
	"context"
	"testing"

	"github.com/schemascout/schemascout/internal/types"
)

// newTestStore creates a SQLiteStore on a temp file.
//
// File-based databases are more reliable than in-memory for connection pool
// scenarios, and the temp dir gives each test its own isolated database.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	ctx := context.Background()
	store, err := New(ctx, t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		if cerr := store.Close(); cerr != nil {
			t.Fatalf("Failed to close test database: %v", cerr)
		}
	})

	return store
}

// seedFile registers a site and one file for it through the same diff path
// production uses, so id-level tests run against realistic rows.
func seedFile(t *testing.T, store *SQLiteStore, site, userID, schemaMap, fileURL string) {
	t.Helper()
	ctx := context.Background()

	if err := store.AddSite(ctx, site, userID, 24); err != nil {
		t.Fatalf("AddSite failed: %v", err)
	}
	diff, err := store.DiffSiteFiles(ctx, site, userID, schemaMap, []types.MapEntry{{FileURL: fileURL}})
	if err != nil {
		t.Fatalf("DiffSiteFiles failed: %v", err)
	}
	if len(diff.Added) != 1 {
		t.Fatalf("expected 1 added file, got %+v", diff)
	}
}
